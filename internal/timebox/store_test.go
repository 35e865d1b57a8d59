package timebox

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/models"
	"github.com/daygraph/daygraph/internal/remote"
	"github.com/daygraph/daygraph/internal/store"
)

var errBackendDown = errors.New("backend down")

// flakyStore wraps a working store and fails selected operations.
type flakyStore struct {
	remote.Store
	failSet    bool
	failMerge  bool
	failDelete bool
	failBatch  bool
}

func (f *flakyStore) Set(ctx context.Context, owner, collection, id string, doc remote.Document) error {
	if f.failSet {
		return errBackendDown
	}
	return f.Store.Set(ctx, owner, collection, id, doc)
}

func (f *flakyStore) Merge(ctx context.Context, owner, collection, id string, fields remote.Document) error {
	if f.failMerge {
		return errBackendDown
	}
	return f.Store.Merge(ctx, owner, collection, id, fields)
}

func (f *flakyStore) Delete(ctx context.Context, owner, collection, id string) error {
	if f.failDelete {
		return errBackendDown
	}
	return f.Store.Delete(ctx, owner, collection, id)
}

func (f *flakyStore) Batch(ctx context.Context, owner string, ops []remote.BatchOp) error {
	if f.failBatch {
		return errBackendDown
	}
	return f.Store.Batch(ctx, owner, ops)
}

const (
	testOwner = "owner-1"
	testDate  = "2026-01-02"
)

// testNow is 10:30 on the store's date.
func testNow() time.Time {
	return time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC)
}

func newTestTimebox(t *testing.T) (*Store, *flakyStore) {
	t.Helper()

	flaky := &flakyStore{Store: remote.NewMemoryStore()}
	s := New(flaky, zap.NewNop(), testOwner, testDate, WithClock(testNow))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s, flaky
}

func task(id, title string) *models.Task {
	return &models.Task{ID: id, Title: title}
}

func TestAddTaskAssignsAndPersists(t *testing.T) {
	t.Parallel()

	s, flaky := newTestTimebox(t)
	tk := task("t1", "write report")

	if err := s.AddTask(context.Background(), tk, "slot-0900"); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	slot := s.Slot("slot-0900")
	if slot.TaskIndex("t1") < 0 {
		t.Fatal("task not placed in slot")
	}
	if tk.SlotID != "slot-0900" || tk.StartTime != "09:00" {
		t.Errorf("task assignment = %s/%s", tk.SlotID, tk.StartTime)
	}
	if tk.Status != models.TaskStatusPending {
		t.Errorf("Status = %q, want pending", tk.Status)
	}
	if tk.Optimistic {
		t.Error("Optimistic still set after successful persist")
	}

	doc, err := flaky.Get(context.Background(), testOwner, "tasks", "t1")
	if err != nil {
		t.Fatalf("remote Get() error = %v", err)
	}
	if doc["slot_id"] != "slot-0900" {
		t.Errorf("remote slot_id = %v", doc["slot_id"])
	}
}

func TestAddTaskSilentNoOps(t *testing.T) {
	t.Parallel()

	s, _ := newTestTimebox(t)

	// Missing slot: no error, task unplaced.
	if err := s.AddTask(context.Background(), task("t1", "x"), "slot-0420"); err != nil {
		t.Fatalf("AddTask(missing slot) error = %v", err)
	}
	for _, slot := range s.Slots() {
		if slot.TaskIndex("t1") >= 0 {
			t.Fatal("task landed in a slot despite missing target")
		}
	}

	// Blocked slot: same silent rejection.
	if err := s.BlockSlot(context.Background(), "slot-0900", "focus", ""); err != nil {
		t.Fatalf("BlockSlot() error = %v", err)
	}
	if err := s.AddTask(context.Background(), task("t2", "x"), "slot-0900"); err != nil {
		t.Fatalf("AddTask(blocked slot) error = %v", err)
	}
	if got := len(s.Slot("slot-0900").Tasks); got != 0 {
		t.Errorf("blocked slot has %d tasks, want 0", got)
	}

	// Calendar events never enter the mutation path.
	ev := &models.Task{ID: "cal-1", Title: "standup", IsCalendarEvent: true}
	if err := s.AddTask(context.Background(), ev, "slot-1000"); err != nil {
		t.Fatalf("AddTask(calendar event) error = %v", err)
	}
	if s.Slot("slot-1000").TaskIndex("cal-1") >= 0 {
		t.Error("calendar event was scheduled")
	}
}

func TestAddTaskRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	s, flaky := newTestTimebox(t)
	flaky.failSet = true

	err := s.AddTask(context.Background(), task("t1", "doomed"), "slot-0900")
	if !store.IsPersistenceFailure(err) {
		t.Fatalf("AddTask() error = %v, want persistence failure", err)
	}
	if got := len(s.Slot("slot-0900").Tasks); got != 0 {
		t.Errorf("slot has %d tasks after rollback, want 0", got)
	}
	if s.LastError() == nil {
		t.Error("LastError() = nil, want recorded failure")
	}
}

func TestMoveTask(t *testing.T) {
	t.Parallel()

	s, _ := newTestTimebox(t)
	tk := task("t1", "movable")
	if err := s.AddTask(context.Background(), tk, "slot-0900"); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	if err := s.MoveTask(context.Background(), "t1", "slot-0900", "slot-1400"); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if s.Slot("slot-0900").TaskIndex("t1") >= 0 {
		t.Error("task still in source slot")
	}
	if s.Slot("slot-1400").TaskIndex("t1") < 0 {
		t.Error("task not in destination slot")
	}
	if tk.StartTime != "14:00" {
		t.Errorf("StartTime = %q, want 14:00", tk.StartTime)
	}
}

func TestMoveTaskBlockedDestinationKeepsTask(t *testing.T) {
	t.Parallel()

	s, _ := newTestTimebox(t)
	if err := s.AddTask(context.Background(), task("t1", "stuck"), "slot-0900"); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if err := s.BlockSlot(context.Background(), "slot-1400", "meeting", ""); err != nil {
		t.Fatalf("BlockSlot() error = %v", err)
	}

	err := s.MoveTask(context.Background(), "t1", "slot-0900", "slot-1400")
	if !errors.Is(err, store.ErrSlotBlocked) {
		t.Fatalf("MoveTask() error = %v, want ErrSlotBlocked", err)
	}
	// A rejected move must never lose the task.
	if s.Slot("slot-0900").TaskIndex("t1") < 0 {
		t.Error("task lost from source slot after rejected move")
	}
}

func TestMoveTaskRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	s, flaky := newTestTimebox(t)
	if err := s.AddTask(context.Background(), task("t1", "movable"), "slot-0900"); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	flaky.failMerge = true
	err := s.MoveTask(context.Background(), "t1", "slot-0900", "slot-1400")
	if !store.IsPersistenceFailure(err) {
		t.Fatalf("MoveTask() error = %v, want persistence failure", err)
	}
	if s.Slot("slot-0900").TaskIndex("t1") < 0 {
		t.Error("task not restored to source slot")
	}
	if s.Slot("slot-1400").TaskIndex("t1") >= 0 {
		t.Error("task stayed in destination after rollback")
	}
}

func TestMoveTaskMissingTargets(t *testing.T) {
	t.Parallel()

	s, _ := newTestTimebox(t)
	tests := []struct {
		name string
		from string
		to   string
	}{
		{"missing source", "slot-0420", "slot-0900"},
		{"missing destination", "slot-0900", "slot-0420"},
		{"missing task", "slot-0900", "slot-1400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.MoveTask(context.Background(), "ghost", tt.from, tt.to)
			if !errors.Is(err, store.ErrNotFound) {
				t.Errorf("MoveTask() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestRemoveTask(t *testing.T) {
	t.Parallel()

	s, flaky := newTestTimebox(t)
	if err := s.AddTask(context.Background(), task("t1", "done with this"), "slot-0900"); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	if err := s.RemoveTask(context.Background(), "t1", "slot-0900"); err != nil {
		t.Fatalf("RemoveTask() error = %v", err)
	}
	if s.Slot("slot-0900").TaskIndex("t1") >= 0 {
		t.Error("task still in slot")
	}
	if _, err := flaky.Get(context.Background(), testOwner, "tasks", "t1"); err == nil {
		t.Error("task record still persisted")
	}
}

func TestRemoveTaskRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	s, flaky := newTestTimebox(t)
	if err := s.AddTask(context.Background(), task("t1", "sticky"), "slot-0900"); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	flaky.failDelete = true
	err := s.RemoveTask(context.Background(), "t1", "slot-0900")
	if !store.IsPersistenceFailure(err) {
		t.Fatalf("RemoveTask() error = %v, want persistence failure", err)
	}
	if s.Slot("slot-0900").TaskIndex("t1") < 0 {
		t.Error("task not reinserted after rollback")
	}
}

func TestBlockSlotClearsTasks(t *testing.T) {
	t.Parallel()

	s, flaky := newTestTimebox(t)
	if err := s.AddTask(context.Background(), task("t1", "displaced"), "slot-0900"); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	if err := s.BlockSlot(context.Background(), "slot-0900", "deep work", "Focus"); err != nil {
		t.Fatalf("BlockSlot() error = %v", err)
	}

	slot := s.Slot("slot-0900")
	if slot.Blocked == nil || slot.Blocked.Reason != "deep work" {
		t.Errorf("Blocked = %+v", slot.Blocked)
	}
	if len(slot.Tasks) != 0 {
		t.Error("blocked slot kept its tasks")
	}

	// The task record survives but loses its slot assignment.
	doc, err := flaky.Get(context.Background(), testOwner, "tasks", "t1")
	if err != nil {
		t.Fatalf("remote Get() error = %v", err)
	}
	if v, ok := doc["slot_id"]; ok {
		t.Errorf("remote slot_id = %v, want cleared", v)
	}

	if err := s.UnblockSlot(context.Background(), "slot-0900"); err != nil {
		t.Fatalf("UnblockSlot() error = %v", err)
	}
	if s.Slot("slot-0900").Blocked != nil {
		t.Error("slot still blocked after unblock")
	}
}

func TestBlockSurvivesReload(t *testing.T) {
	t.Parallel()

	s, flaky := newTestTimebox(t)
	if err := s.BlockSlot(context.Background(), "slot-0900", "pto", ""); err != nil {
		t.Fatalf("BlockSlot() error = %v", err)
	}

	fresh := New(flaky, zap.NewNop(), testOwner, testDate, WithClock(testNow))
	if err := fresh.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if fresh.Slot("slot-0900").Blocked == nil {
		t.Error("block state did not survive reload")
	}
}

func TestSetIntervalRehomesAssignments(t *testing.T) {
	t.Parallel()

	s, _ := newTestTimebox(t)
	if err := s.AddTask(context.Background(), task("t1", "rehomed"), "slot-0800"); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if err := s.AddTask(context.Background(), task("t2", "dropped from view"), "slot-0900"); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	// 08:00 exists in the two-hour grid; 09:00 does not.
	s.SetInterval(120)
	if s.Interval() != 120 {
		t.Fatalf("Interval() = %d, want 120", s.Interval())
	}
	if s.Slot("slot-0800").TaskIndex("t1") < 0 {
		t.Error("task in surviving slot id was not rehomed")
	}
	if s.Slot("slot-0900") != nil {
		t.Error("slot-0900 should not exist in the two-hour grid")
	}

	// Switching back restores the dropped assignment via reload.
	s.SetInterval(60)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Slot("slot-0900").TaskIndex("t2") < 0 {
		t.Error("assignment did not reappear at the original interval")
	}
}

func TestPastAndUpcomingSlots(t *testing.T) {
	t.Parallel()

	// Clock fixed at 10:30: slots ending at or before 10:30 are past, the
	// running 10:00-11:00 slot is still upcoming.
	s, _ := newTestTimebox(t)

	past := s.PastSlots()
	upcoming := s.UpcomingSlots()
	if len(past) != 4 {
		t.Errorf("len(past) = %d, want 4 (06,07,08,09)", len(past))
	}
	if len(upcoming) != 12 {
		t.Errorf("len(upcoming) = %d, want 12", len(upcoming))
	}
	for _, slot := range past {
		if slot.ID == "slot-1000" {
			t.Error("running slot counted as past")
		}
	}

	// A store for yesterday is entirely past.
	yesterday := New(remote.NewMemoryStore(), zap.NewNop(), testOwner, "2026-01-01", WithClock(testNow))
	if err := yesterday.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := len(yesterday.UpcomingSlots()); got != 0 {
		t.Errorf("yesterday upcoming = %d, want 0", got)
	}
}

func TestExactBoundaryIsPast(t *testing.T) {
	t.Parallel()

	// At exactly 11:00 the 10:00-11:00 slot has just ended.
	at11 := func() time.Time { return time.Date(2026, 1, 2, 11, 0, 0, 0, time.UTC) }
	s := New(remote.NewMemoryStore(), zap.NewNop(), testOwner, testDate, WithClock(at11))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, slot := range s.UpcomingSlots() {
		if slot.ID == "slot-1000" {
			t.Error("slot ending exactly now should be past")
		}
	}
}
