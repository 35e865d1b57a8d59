// Package views computes pure, side-effect-free projections of the node and
// timebox state for presentation. Nothing here mutates store state.
package views

import (
	"strings"

	"github.com/daygraph/daygraph/internal/models"
)

// Visibility selects the work/personal display mode for filters.
type Visibility string

const (
	VisibilityAll      Visibility = "all"
	VisibilityWork     Visibility = "work"
	VisibilityPersonal Visibility = "personal"
)

// UnscheduledFilter narrows the unscheduled-node projection.
type UnscheduledFilter struct {
	Visibility Visibility
	Type       *models.NodeType
	// Query is matched as a case-insensitive substring over title,
	// description and tags.
	Query string
}

// ScheduledNodeIDs collects the node ids referenced by any slot's task
// list. Calendar-sourced tasks carry no node id and contribute nothing.
func ScheduledNodeIDs(slots []*models.TimeSlot) map[string]bool {
	out := map[string]bool{}
	for _, slot := range slots {
		for _, t := range slot.Tasks {
			if t.NodeID != "" {
				out[t.NodeID] = true
			}
		}
	}
	return out
}

// Unscheduled returns the nodes that are not completed and not referenced
// by any slot, narrowed by the filter.
func Unscheduled(nodes []*models.Node, scheduled map[string]bool, f UnscheduledFilter) []*models.Node {
	var out []*models.Node
	for _, n := range nodes {
		if n.Completed || scheduled[n.ID] {
			continue
		}
		if !matchesVisibility(n, f.Visibility) {
			continue
		}
		if f.Type != nil && n.Type != *f.Type {
			continue
		}
		if f.Query != "" && !matchesQuery(n, f.Query) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// The "work" tag splits the two visibility modes: work mode shows nodes
// carrying it, personal mode shows the rest.
const workTag = "work"

func matchesVisibility(n *models.Node, v Visibility) bool {
	switch v {
	case VisibilityWork:
		return n.HasTag(workTag)
	case VisibilityPersonal:
		return !n.HasTag(workTag)
	default:
		return true
	}
}

func matchesQuery(n *models.Node, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(n.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(n.Description), q) {
		return true
	}
	for _, tag := range n.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Quadrant buckets a node by urgency and importance.
type Quadrant string

const (
	QuadrantDoFirst   Quadrant = "do_first"
	QuadrantSchedule  Quadrant = "schedule"
	QuadrantDelegate  Quadrant = "delegate"
	QuadrantEliminate Quadrant = "eliminate"
)

// quadrantThreshold splits the 1-10 score range: a score of 6 or more
// counts as high on its axis. One convention everywhere; an unscored axis
// counts as low.
const quadrantThreshold = 6

// Classify maps (urgency, importance) to an Eisenhower quadrant:
// urgent+important do first, important-only gets scheduled, urgent-only
// gets delegated, neither is eliminated.
func Classify(urgency, importance *int) Quadrant {
	urgent := urgency != nil && *urgency >= quadrantThreshold
	important := importance != nil && *importance >= quadrantThreshold

	switch {
	case urgent && important:
		return QuadrantDoFirst
	case important:
		return QuadrantSchedule
	case urgent:
		return QuadrantDelegate
	default:
		return QuadrantEliminate
	}
}

// ByQuadrant groups nodes into their quadrants, preserving input order
// within each bucket. Completed nodes are skipped.
func ByQuadrant(nodes []*models.Node) map[Quadrant][]*models.Node {
	out := map[Quadrant][]*models.Node{}
	for _, n := range nodes {
		if n.Completed {
			continue
		}
		q := Classify(n.Urgency, n.Importance)
		out[q] = append(out[q], n)
	}
	return out
}
