package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/daygraph/daygraph/internal/models"
	"github.com/daygraph/daygraph/internal/session"
	"github.com/daygraph/daygraph/internal/validation"
	"github.com/daygraph/daygraph/internal/views"
)

// ViewHandler handles derived read-model requests
type ViewHandler struct {
	sessions *session.Manager
	today    func() string
}

// NewViewHandler creates a new view handler
func NewViewHandler(sessions *session.Manager) *ViewHandler {
	return &ViewHandler{
		sessions: sessions,
		today: func() string {
			return time.Now().UTC().Format(models.DateLayout)
		},
	}
}

// RegisterRoutes registers view routes on the given router.
// The router should already have the /views prefix.
func (h *ViewHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/unscheduled", h.Unscheduled).Methods("GET")
	r.HandleFunc("/quadrant", h.Quadrant).Methods("GET")
}

// Unscheduled lists nodes that are neither completed nor scheduled into the
// day's timebox, filtered by visibility, type and free-text query.
func (h *ViewHandler) Unscheduled(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	q := r.URL.Query()

	date := q.Get("date")
	if date == "" {
		date = h.today()
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid date, expected YYYY-MM-DD")
		return
	}

	filter := views.UnscheduledFilter{
		Visibility: views.VisibilityAll,
		Query:      q.Get("q"),
	}
	switch v := q.Get("visibility"); v {
	case "", string(views.VisibilityAll):
	case string(views.VisibilityWork):
		filter.Visibility = views.VisibilityWork
	case string(views.VisibilityPersonal):
		filter.Visibility = views.VisibilityPersonal
	default:
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid visibility")
		return
	}
	if t := q.Get("node_type"); t != "" {
		if !validation.ValidNodeType(t) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid node_type filter")
			return
		}
		nt := models.NodeType(t)
		filter.Type = &nt
	}

	tb, err := sess.Timebox(r.Context(), date)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	scheduled := views.ScheduledNodeIDs(tb.Slots())
	nodes := views.Unscheduled(sess.Nodes().Nodes(), scheduled, filter)

	respondJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"nodes": nodes,
		"total": len(nodes),
	})
}

// Quadrant groups open nodes into the urgency/importance quadrants.
func (h *ViewHandler) Quadrant(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	grouped := views.ByQuadrant(sess.Nodes().Nodes())

	respondJSON(w, http.StatusOK, map[string]any{
		"quadrants": grouped,
	})
}
