package views

import (
	"testing"

	"github.com/daygraph/daygraph/internal/models"
)

func intp(v int) *int { return &v }

func node(id, title string, tags ...string) *models.Node {
	return &models.Node{ID: id, Title: title, Type: models.NodeTypeTask, Tags: tags}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		urgency    *int
		importance *int
		want       Quadrant
	}{
		{"both high", intp(8), intp(9), QuadrantDoFirst},
		{"both at threshold", intp(6), intp(6), QuadrantDoFirst},
		{"important only", intp(5), intp(6), QuadrantSchedule},
		{"urgent only", intp(6), intp(5), QuadrantDelegate},
		{"both low", intp(5), intp(5), QuadrantEliminate},
		{"both unscored", nil, nil, QuadrantEliminate},
		{"unscored urgency counts as low", nil, intp(10), QuadrantSchedule},
		{"unscored importance counts as low", intp(10), nil, QuadrantDelegate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.urgency, tt.importance); got != tt.want {
				t.Errorf("Classify(%v, %v) = %q, want %q", tt.urgency, tt.importance, got, tt.want)
			}
		})
	}
}

func TestByQuadrantSkipsCompletedAndKeepsOrder(t *testing.T) {
	t.Parallel()

	first := node("a", "first")
	first.Urgency, first.Importance = intp(9), intp(9)
	second := node("b", "second")
	second.Urgency, second.Importance = intp(7), intp(7)
	done := node("c", "done")
	done.Urgency, done.Importance = intp(9), intp(9)
	done.Completed = true

	got := ByQuadrant([]*models.Node{first, second, done})

	bucket := got[QuadrantDoFirst]
	if len(bucket) != 2 || bucket[0].ID != "a" || bucket[1].ID != "b" {
		t.Errorf("do_first bucket = %v", idsOf(bucket))
	}
	for q, nodes := range got {
		for _, n := range nodes {
			if n.ID == "c" {
				t.Errorf("completed node appeared in %q", q)
			}
		}
	}
}

func TestScheduledNodeIDs(t *testing.T) {
	t.Parallel()

	slots := []*models.TimeSlot{
		{ID: "slot-0900", Tasks: []*models.Task{
			{ID: "t1", NodeID: "n1"},
			{ID: "cal-1", IsCalendarEvent: true}, // no node id
		}},
		{ID: "slot-1000", Tasks: []*models.Task{{ID: "t2", NodeID: "n2"}}},
		{ID: "slot-1100"},
	}

	got := ScheduledNodeIDs(slots)
	if len(got) != 2 || !got["n1"] || !got["n2"] {
		t.Errorf("ScheduledNodeIDs() = %v", got)
	}
}

func TestUnscheduled(t *testing.T) {
	t.Parallel()

	workNode := node("n1", "quarterly report", "work")
	personal := node("n2", "buy groceries")
	scheduled := node("n3", "standup prep", "work")
	done := node("n4", "archived")
	done.Completed = true
	idea := &models.Node{ID: "n5", Title: "app concept", Type: models.NodeTypeIdea}

	all := []*models.Node{workNode, personal, scheduled, done, idea}
	onSlots := map[string]bool{"n3": true}

	tests := []struct {
		name   string
		filter UnscheduledFilter
		want   []string
	}{
		{"no filter", UnscheduledFilter{}, []string{"n1", "n2", "n5"}},
		{"all visibility", UnscheduledFilter{Visibility: VisibilityAll}, []string{"n1", "n2", "n5"}},
		{"work visibility", UnscheduledFilter{Visibility: VisibilityWork}, []string{"n1"}},
		{"personal visibility", UnscheduledFilter{Visibility: VisibilityPersonal}, []string{"n2", "n5"}},
		{"type filter", UnscheduledFilter{Type: typp(models.NodeTypeIdea)}, []string{"n5"}},
		{"query over title", UnscheduledFilter{Query: "REPORT"}, []string{"n1"}},
		{"query over tags", UnscheduledFilter{Query: "work"}, []string{"n1"}},
		{"query no match", UnscheduledFilter{Query: "zzz"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := idsOf(Unscheduled(all, onSlots, tt.filter))
			if !equalStrings(got, tt.want) {
				t.Errorf("Unscheduled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func typp(v models.NodeType) *models.NodeType { return &v }

func idsOf(nodes []*models.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
