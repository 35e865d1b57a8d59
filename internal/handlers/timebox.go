package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/calendar"
	"github.com/daygraph/daygraph/internal/middleware"
	"github.com/daygraph/daygraph/internal/models"
	"github.com/daygraph/daygraph/internal/session"
	"github.com/daygraph/daygraph/internal/timebox"
)

// TimeboxHandler handles timebox day-plan requests
type TimeboxHandler struct {
	sessions   *session.Manager
	calendar   calendar.Source
	calendarID string
	logger     *zap.Logger
}

// NewTimeboxHandler creates a new timebox handler. source may be nil when no
// calendar integration is configured.
func NewTimeboxHandler(sessions *session.Manager, source calendar.Source, calendarID string, logger *zap.Logger) *TimeboxHandler {
	return &TimeboxHandler{
		sessions:   sessions,
		calendar:   source,
		calendarID: calendarID,
		logger:     logger,
	}
}

// RegisterRoutes registers timebox routes on the given router.
// The router should already have the /timebox/{date} prefix.
func (h *TimeboxHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/slots", h.GetSlots).Methods("GET")
	r.HandleFunc("/slots/{slotID}/tasks", h.AddTask).Methods("POST")
	r.HandleFunc("/slots/{slotID}/tasks/{taskID}", h.RemoveTask).Methods("DELETE")
	r.HandleFunc("/slots/{slotID}/block", h.BlockSlot).Methods("POST")
	r.HandleFunc("/slots/{slotID}/block", h.UnblockSlot).Methods("DELETE")
	r.HandleFunc("/tasks/{taskID}/move", h.MoveTask).Methods("POST")
}

// AddTaskRequest represents a request to schedule a task into a slot
type AddTaskRequest struct {
	NodeID          string `json:"node_id"`
	Title           string `json:"title" validate:"required,min=1,max=500"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
}

// MoveTaskRequest represents a request to move a task between slots
type MoveTaskRequest struct {
	FromSlotID string `json:"from_slot_id" validate:"required"`
	ToSlotID   string `json:"to_slot_id" validate:"required"`
}

// BlockSlotRequest represents a request to block a slot
type BlockSlotRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=200"`
	Label  string `json:"label" validate:"omitempty,max=200"`
}

// timeboxFor resolves the day plan for the request's {date} path variable.
func (h *TimeboxHandler) timeboxFor(w http.ResponseWriter, r *http.Request) (*session.Session, *timeboxDay, bool) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return nil, nil, false
	}

	date := mux.Vars(r)["date"]
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid date, expected YYYY-MM-DD")
		return nil, nil, false
	}

	tb, err := sess.Timebox(r.Context(), date)
	if err != nil {
		respondStoreError(w, err)
		return nil, nil, false
	}
	return sess, &timeboxDay{store: tb, date: date}, true
}

// timeboxDay bundles a loaded day plan with its date.
type timeboxDay struct {
	store *timebox.Store
	date  string
}

// GetSlots returns the slot grid for a day, optionally resized and with
// calendar events overlaid.
func (h *TimeboxHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	_, day, ok := h.timeboxFor(w, r)
	if !ok {
		return
	}

	if iv := r.URL.Query().Get("interval"); iv != "" {
		parsed, err := strconv.Atoi(iv)
		if err != nil || parsed <= 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid interval")
			return
		}
		day.store.SetInterval(parsed)
	}

	slots := day.store.Slots()
	if h.calendar != nil && r.URL.Query().Get("overlay") == "calendar" {
		events, err := h.fetchCalendarTasks(r, day.date)
		if err != nil {
			// Calendar is display-only; degrade to the bare grid.
			h.logger.Warn("calendar_overlay_failed", zap.Error(err))
		} else {
			slots = day.store.OverlayCalendar(events)
		}
	}

	// Partition the slice already in hand so a calendar overlay survives
	// view filtering.
	switch r.URL.Query().Get("view") {
	case "past":
		slots, _ = day.store.Partition(slots)
	case "upcoming":
		_, slots = day.store.Partition(slots)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":     day.date,
		"interval": day.store.Interval(),
		"slots":    slots,
	})
}

func (h *TimeboxHandler) fetchCalendarTasks(r *http.Request, date string) ([]*models.Task, error) {
	dayStart, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, err
	}
	events, err := h.calendar.Events(r.Context(), h.calendarID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	identity := middleware.IdentityFromContext(r)
	ownerID := ""
	if identity != nil {
		ownerID = identity.OwnerID
	}
	return calendar.SyntheticTasks(events, ownerID, date), nil
}

// AddTask schedules a task into a slot
func (h *TimeboxHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	_, day, ok := h.timeboxFor(w, r)
	if !ok {
		return
	}

	var req AddTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, &req) {
		return
	}

	task := &models.Task{
		ID:              uuid.NewString(),
		NodeID:          req.NodeID,
		Title:           req.Title,
		DurationMinutes: req.DurationMinutes,
	}

	slotID := mux.Vars(r)["slotID"]
	if err := day.store.AddTask(r.Context(), task, slotID); err != nil {
		respondStoreError(w, err)
		return
	}

	// A missing or blocked slot is a silent no-op in the store; report
	// whether the task actually landed.
	slot := day.store.Slot(slotID)
	scheduled := slot != nil && slot.TaskIndex(task.ID) >= 0
	respondJSON(w, http.StatusCreated, map[string]any{
		"task":      task,
		"scheduled": scheduled,
	})
}

// MoveTask moves a task between slots
func (h *TimeboxHandler) MoveTask(w http.ResponseWriter, r *http.Request) {
	_, day, ok := h.timeboxFor(w, r)
	if !ok {
		return
	}

	var req MoveTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, &req) {
		return
	}

	taskID := mux.Vars(r)["taskID"]
	if err := day.store.MoveTask(r.Context(), taskID, req.FromSlotID, req.ToSlotID); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"moved": true})
}

// RemoveTask unschedules a task from a slot
func (h *TimeboxHandler) RemoveTask(w http.ResponseWriter, r *http.Request) {
	_, day, ok := h.timeboxFor(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	if err := day.store.RemoveTask(r.Context(), vars["taskID"], vars["slotID"]); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"removed": true})
}

// BlockSlot marks a slot unavailable and unschedules its tasks
func (h *TimeboxHandler) BlockSlot(w http.ResponseWriter, r *http.Request) {
	_, day, ok := h.timeboxFor(w, r)
	if !ok {
		return
	}

	var req BlockSlotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, &req) {
		return
	}

	slotID := mux.Vars(r)["slotID"]
	if err := day.store.BlockSlot(r.Context(), slotID, req.Reason, req.Label); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, day.store.Slot(slotID))
}

// UnblockSlot clears the block on a slot
func (h *TimeboxHandler) UnblockSlot(w http.ResponseWriter, r *http.Request) {
	_, day, ok := h.timeboxFor(w, r)
	if !ok {
		return
	}

	slotID := mux.Vars(r)["slotID"]
	if err := day.store.UnblockSlot(r.Context(), slotID); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, day.store.Slot(slotID))
}
