package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/calendar"
	"github.com/daygraph/daygraph/internal/models"
)

const testDate = "2026-01-02"

type slotsResponse struct {
	Date     string             `json:"date"`
	Interval int                `json:"interval"`
	Slots    []*models.TimeSlot `json:"slots"`
}

func scheduleTask(t *testing.T, router http.Handler, slotID, title string) models.Task {
	t.Helper()

	status, env := do(t, router, request(t, "POST",
		fmt.Sprintf("/timebox/%s/slots/%s/tasks", testDate, slotID),
		map[string]any{"title": title}, testOwner))
	if status != http.StatusCreated {
		t.Fatalf("schedule task: status = %d, message %q", status, env.Message)
	}
	var data struct {
		Task      models.Task `json:"task"`
		Scheduled bool        `json:"scheduled"`
	}
	decodeData(t, env, &data)
	if !data.Scheduled {
		t.Fatalf("task %q not scheduled into %s", title, slotID)
	}
	return data.Task
}

func TestGetSlots(t *testing.T) {
	t.Parallel()

	router := timeboxRouter(newSessions(), nil)
	status, env := do(t, router, request(t, "GET", "/timebox/"+testDate+"/slots", nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var data slotsResponse
	decodeData(t, env, &data)
	if data.Date != testDate || data.Interval != 60 {
		t.Errorf("header = %s/%d", data.Date, data.Interval)
	}
	if len(data.Slots) != 16 {
		t.Errorf("len(slots) = %d, want 16", len(data.Slots))
	}
}

func TestGetSlotsValidation(t *testing.T) {
	t.Parallel()

	router := timeboxRouter(newSessions(), nil)

	status, _ := do(t, router, request(t, "GET", "/timebox/not-a-date/slots", nil, testOwner))
	if status != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", status)
	}
	status, _ = do(t, router, request(t, "GET", "/timebox/"+testDate+"/slots?interval=zero", nil, testOwner))
	if status != http.StatusBadRequest {
		t.Errorf("bad interval status = %d, want 400", status)
	}
}

func TestGetSlotsResizesInterval(t *testing.T) {
	t.Parallel()

	router := timeboxRouter(newSessions(), nil)
	status, env := do(t, router, request(t, "GET", "/timebox/"+testDate+"/slots?interval=120", nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var data slotsResponse
	decodeData(t, env, &data)
	if data.Interval != 120 || len(data.Slots) != 8 {
		t.Errorf("grid = %d/%d slots, want 120/8", data.Interval, len(data.Slots))
	}
}

func TestAddTaskReportsUnscheduled(t *testing.T) {
	t.Parallel()

	router := timeboxRouter(newSessions(), nil)

	// The store treats a missing slot as a silent no-op; the response
	// carries the outcome instead.
	status, env := do(t, router, request(t, "POST",
		"/timebox/"+testDate+"/slots/slot-0420/tasks",
		map[string]any{"title": "nowhere to go"}, testOwner))
	if status != http.StatusCreated {
		t.Fatalf("status = %d", status)
	}
	var data struct {
		Scheduled bool `json:"scheduled"`
	}
	decodeData(t, env, &data)
	if data.Scheduled {
		t.Error("scheduled = true for a missing slot")
	}
}

func TestAddTaskValidation(t *testing.T) {
	t.Parallel()

	router := timeboxRouter(newSessions(), nil)
	status, _ := do(t, router, request(t, "POST",
		"/timebox/"+testDate+"/slots/slot-0900/tasks",
		map[string]any{"duration_minutes": 30}, testOwner))
	if status != http.StatusBadRequest {
		t.Errorf("missing title status = %d, want 400", status)
	}
}

func TestMoveTaskEndpoint(t *testing.T) {
	t.Parallel()

	router := timeboxRouter(newSessions(), nil)
	task := scheduleTask(t, router, "slot-0900", "movable")

	status, _ := do(t, router, request(t, "POST",
		"/timebox/"+testDate+"/tasks/"+task.ID+"/move",
		map[string]any{"from_slot_id": "slot-0900", "to_slot_id": "slot-1400"}, testOwner))
	if status != http.StatusOK {
		t.Fatalf("move: status = %d", status)
	}

	status, _ = do(t, router, request(t, "POST",
		"/timebox/"+testDate+"/tasks/"+task.ID+"/move",
		map[string]any{"from_slot_id": "slot-1400", "to_slot_id": "slot-0420"}, testOwner))
	if status != http.StatusNotFound {
		t.Errorf("move to missing slot: status = %d, want 404", status)
	}
}

func TestMoveTaskToBlockedSlotConflicts(t *testing.T) {
	t.Parallel()

	router := timeboxRouter(newSessions(), nil)
	task := scheduleTask(t, router, "slot-0900", "stuck")

	status, _ := do(t, router, request(t, "POST",
		"/timebox/"+testDate+"/slots/slot-1400/block",
		map[string]any{"reason": "meeting"}, testOwner))
	if status != http.StatusOK {
		t.Fatalf("block: status = %d", status)
	}

	status, env := do(t, router, request(t, "POST",
		"/timebox/"+testDate+"/tasks/"+task.ID+"/move",
		map[string]any{"from_slot_id": "slot-0900", "to_slot_id": "slot-1400"}, testOwner))
	if status != http.StatusConflict || env.Success {
		t.Errorf("status = %d, success = %v, want 409 failure", status, env.Success)
	}
}

func TestRemoveTaskEndpoint(t *testing.T) {
	t.Parallel()

	router := timeboxRouter(newSessions(), nil)
	task := scheduleTask(t, router, "slot-0900", "short lived")

	status, _ := do(t, router, request(t, "DELETE",
		"/timebox/"+testDate+"/slots/slot-0900/tasks/"+task.ID, nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("remove: status = %d", status)
	}

	status, _ = do(t, router, request(t, "DELETE",
		"/timebox/"+testDate+"/slots/slot-0900/tasks/"+task.ID, nil, testOwner))
	if status != http.StatusNotFound {
		t.Errorf("double remove: status = %d, want 404", status)
	}
}

func TestBlockAndUnblockSlot(t *testing.T) {
	t.Parallel()

	router := timeboxRouter(newSessions(), nil)
	scheduleTask(t, router, "slot-0900", "displaced")

	status, env := do(t, router, request(t, "POST",
		"/timebox/"+testDate+"/slots/slot-0900/block",
		map[string]any{"reason": "deep work", "label": "Focus"}, testOwner))
	if status != http.StatusOK {
		t.Fatalf("block: status = %d", status)
	}
	var slot models.TimeSlot
	decodeData(t, env, &slot)
	if slot.Blocked == nil || slot.Blocked.Reason != "deep work" {
		t.Errorf("Blocked = %+v", slot.Blocked)
	}
	if len(slot.Tasks) != 0 {
		t.Error("blocked slot kept tasks")
	}

	status, env = do(t, router, request(t, "DELETE",
		"/timebox/"+testDate+"/slots/slot-0900/block", nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("unblock: status = %d", status)
	}
	slot = models.TimeSlot{}
	decodeData(t, env, &slot)
	if slot.Blocked != nil {
		t.Error("slot still blocked")
	}
}

// stubCalendar returns canned events or an error.
type stubCalendar struct {
	events []calendar.Event
	err    error
}

func (s *stubCalendar) Events(ctx context.Context, calendarID string, from, to time.Time) ([]calendar.Event, error) {
	return s.events, s.err
}

func TestGetSlotsCalendarOverlay(t *testing.T) {
	t.Parallel()

	sessions := newSessions()
	source := &stubCalendar{events: []calendar.Event{{
		ID:      "ev1",
		Summary: "standup",
		Start:   calendar.EventTime{DateTime: testDate + "T09:15:00Z"},
		End:     calendar.EventTime{DateTime: testDate + "T09:45:00Z"},
	}}}
	router := timeboxRouter(sessions, NewTimeboxHandler(sessions, source, "primary", zap.NewNop()))

	status, env := do(t, router, request(t, "GET",
		"/timebox/"+testDate+"/slots?overlay=calendar", nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var data slotsResponse
	decodeData(t, env, &data)

	var found bool
	for _, slot := range data.Slots {
		if slot.ID == "slot-0900" && slot.TaskIndex("cal-ev1") >= 0 {
			found = true
		}
	}
	if !found {
		t.Error("calendar event not overlaid into slot-0900")
	}
}

func TestGetSlotsOverlaySurvivesViewFilter(t *testing.T) {
	t.Parallel()

	sessions := newSessions()
	// A day safely in the past makes every slot past regardless of the
	// local clock.
	date := time.Now().UTC().AddDate(0, 0, -2).Format(models.DateLayout)
	source := &stubCalendar{events: []calendar.Event{{
		ID:      "ev1",
		Summary: "standup",
		Start:   calendar.EventTime{DateTime: date + "T09:15:00Z"},
		End:     calendar.EventTime{DateTime: date + "T09:45:00Z"},
	}}}
	router := timeboxRouter(sessions, NewTimeboxHandler(sessions, source, "primary", zap.NewNop()))

	status, env := do(t, router, request(t, "GET",
		"/timebox/"+date+"/slots?overlay=calendar&view=past", nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var past slotsResponse
	decodeData(t, env, &past)
	if len(past.Slots) != 16 {
		t.Fatalf("len(past slots) = %d, want full grid", len(past.Slots))
	}
	var found bool
	for _, slot := range past.Slots {
		if slot.ID == "slot-0900" && slot.TaskIndex("cal-ev1") >= 0 {
			found = true
		}
	}
	if !found {
		t.Error("view filter dropped the calendar overlay")
	}

	status, env = do(t, router, request(t, "GET",
		"/timebox/"+date+"/slots?overlay=calendar&view=upcoming", nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var upcoming slotsResponse
	decodeData(t, env, &upcoming)
	if len(upcoming.Slots) != 0 {
		t.Errorf("len(upcoming slots) for a past day = %d, want 0", len(upcoming.Slots))
	}
}

func TestGetSlotsCalendarFailureDegrades(t *testing.T) {
	t.Parallel()

	sessions := newSessions()
	source := &stubCalendar{err: errors.New("calendar down")}
	router := timeboxRouter(sessions, NewTimeboxHandler(sessions, source, "primary", zap.NewNop()))

	status, env := do(t, router, request(t, "GET",
		"/timebox/"+testDate+"/slots?overlay=calendar", nil, testOwner))
	if status != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, success = %v, want degraded 200", status, env.Success)
	}
	var data slotsResponse
	decodeData(t, env, &data)
	if len(data.Slots) != 16 {
		t.Errorf("len(slots) = %d, want bare grid", len(data.Slots))
	}
}
