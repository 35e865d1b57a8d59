// Package timebox partitions a day into fixed time slots and manages task
// placement within them, following the same optimistic persistence contract
// as the node store.
package timebox

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/models"
	"github.com/daygraph/daygraph/internal/remote"
	"github.com/daygraph/daygraph/internal/store"
)

const (
	collectionTasks = "tasks"
	collectionSlots = "slots"
)

// Store is one owner's schedule grid for one day.
type Store struct {
	mu     sync.Mutex
	remote remote.Store
	logger *zap.Logger
	events store.EventSink
	now    func() time.Time

	ownerID  string
	date     string // YYYY-MM-DD
	interval int

	slots   []*models.TimeSlot
	byID    map[string]*models.TimeSlot
	lastErr error
}

// Option configures a Store.
type Option func(*Store)

// WithEvents routes committed-mutation events into sink.
func WithEvents(sink store.EventSink) Option {
	return func(s *Store) { s.events = sink }
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a timebox store for one owner and day with a default
// 60-minute grid.
func New(r remote.Store, logger *zap.Logger, ownerID, date string, opts ...Option) *Store {
	s := &Store{
		remote:   r,
		logger:   logger,
		events:   store.NopSink{},
		now:      time.Now,
		ownerID:  ownerID,
		date:     date,
		interval: 60,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.slots = buildSlots(s.interval)
	s.reindex()
	return s
}

func (s *Store) reindex() {
	s.byID = make(map[string]*models.TimeSlot, len(s.slots))
	for _, slot := range s.slots {
		s.byID[slot.ID] = slot
	}
}

// LastError returns the most recent recorded mutation error, if any.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError dismisses the recorded error.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Interval returns the current slot length in minutes.
func (s *Store) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Slots returns the day's slots in order. The slice is a copy; slots are
// shared and read-only for callers.
func (s *Store) Slots() []*models.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.TimeSlot, len(s.slots))
	copy(out, s.slots)
	return out
}

// Slot returns one slot by id, or nil.
func (s *Store) Slot(id string) *models.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

// Load pulls the day's persisted tasks and block states and homes them into
// the grid. Tasks referencing a slot id that no longer exists stay
// unplaced; calendar-sourced tasks are never persisted so none appear here.
func (s *Store) Load(ctx context.Context) error {
	if s.ownerID == "" {
		return store.ErrUnauthenticated
	}

	taskDocs, err := s.remote.List(ctx, s.ownerID, collectionTasks)
	if err != nil {
		perr := &store.PersistenceError{Op: "load tasks", Err: err}
		s.mu.Lock()
		s.lastErr = perr
		s.mu.Unlock()
		return perr
	}
	slotDocs, err := s.remote.List(ctx, s.ownerID, collectionSlots)
	if err != nil {
		perr := &store.PersistenceError{Op: "load slots", Err: err}
		s.mu.Lock()
		s.lastErr = perr
		s.mu.Unlock()
		return perr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots = buildSlots(s.interval)
	s.reindex()

	for _, doc := range slotDocs {
		state, err := decodeSlotState(doc)
		if err != nil || state.Date != s.date {
			continue
		}
		if slot, ok := s.byID[state.SlotID]; ok && state.Blocked != nil {
			slot.Blocked = state.Blocked
		}
	}

	for _, doc := range taskDocs {
		t, err := decodeTask(doc)
		if err != nil {
			s.logger.Warn("skipping_malformed_task_record", zap.Error(err))
			continue
		}
		if t.TimeboxDate != s.date || t.SlotID == "" {
			continue
		}
		slot, ok := s.byID[t.SlotID]
		if !ok || slot.Blocked != nil {
			continue
		}
		slot.Tasks = append(slot.Tasks, t)
	}
	return nil
}

// SetInterval regenerates the grid at a new slot length. Existing task
// assignments are rehomed by matching slot id; assignments whose id does
// not exist in the new grid are dropped from the view (their persisted
// slot_id is untouched, so switching back restores them).
func (s *Store) SetInterval(intervalMinutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if intervalMinutes <= 0 || intervalMinutes == s.interval {
		return
	}

	prevTasks := map[string][]*models.Task{}
	prevBlocks := map[string]*models.SlotBlock{}
	for _, slot := range s.slots {
		if len(slot.Tasks) > 0 {
			prevTasks[slot.ID] = slot.Tasks
		}
		if slot.Blocked != nil {
			prevBlocks[slot.ID] = slot.Blocked
		}
	}

	s.interval = intervalMinutes
	s.slots = buildSlots(intervalMinutes)
	s.reindex()

	for id, tasks := range prevTasks {
		if slot, ok := s.byID[id]; ok {
			slot.Tasks = tasks
		}
	}
	for id, block := range prevBlocks {
		if slot, ok := s.byID[id]; ok {
			slot.Blocked = block
		}
	}
}

// AddTask assigns a task to a slot following the optimistic contract: the
// slot gains the task immediately with an in-flight marker, persistence
// runs, and on failure the task is removed and the error recorded.
//
// A missing slot is a silent no-op: drop-target resolution in the UI can
// race with slot regeneration. A blocked slot likewise rejects the task
// without error. Calendar-sourced tasks are display-only and are never
// accepted.
func (s *Store) AddTask(ctx context.Context, task *models.Task, slotID string) error {
	if task == nil || task.IsCalendarEvent {
		return nil
	}

	s.mu.Lock()
	slot, ok := s.byID[slotID]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("add_task_slot_missing", zap.String("slot_id", slotID))
		return nil
	}
	if slot.Blocked != nil {
		s.mu.Unlock()
		return nil
	}

	now := s.now().UTC().Format(time.RFC3339)
	task.OwnerID = s.ownerID
	task.TimeboxDate = s.date
	task.SlotID = slotID
	task.StartTime = slot.StartTime
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.CreatedAt == "" {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	task.Optimistic = true
	slot.Tasks = append(slot.Tasks, task)

	doc, encErr := encodeTask(task)
	owner := s.ownerID

	m := store.NewMutation(func() {
		slot.RemoveTask(task.ID)
	}).OnCommit(func() {
		task.Optimistic = false
	}).Under(&s.mu)
	s.mu.Unlock()

	if encErr != nil {
		m.Rollback()
		return encErr
	}

	err := m.Run(ctx, "add task", func(ctx context.Context) error {
		return s.remote.Set(ctx, owner, collectionTasks, task.ID, doc)
	})
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	s.events.Publish(ctx, store.EventTaskScheduled, owner, task.ID)
	return nil
}

// MoveTask reassigns a task between slots as one atomic-in-intent
// operation. Unlike AddTask, a blocked or missing destination rejects the
// move loudly and the task stays in its source slot: a failed move must
// never lose the task.
func (s *Store) MoveTask(ctx context.Context, taskID, fromSlotID, toSlotID string) error {
	s.mu.Lock()
	from, ok := s.byID[fromSlotID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	to, ok := s.byID[toSlotID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if to.Blocked != nil {
		s.mu.Unlock()
		return store.ErrSlotBlocked
	}
	idx := from.TaskIndex(taskID)
	if idx < 0 {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	task := from.Tasks[idx]
	if task.IsCalendarEvent {
		s.mu.Unlock()
		return nil
	}

	now := s.now().UTC().Format(time.RFC3339)
	prevSlotID := task.SlotID
	prevStart := task.StartTime
	prevUpdated := task.UpdatedAt

	from.RemoveTask(taskID)
	task.SlotID = toSlotID
	task.StartTime = to.StartTime
	task.UpdatedAt = now
	to.Tasks = append(to.Tasks, task)
	owner := s.ownerID

	m := store.NewMutation(func() {
		to.RemoveTask(taskID)
		task.SlotID = prevSlotID
		task.StartTime = prevStart
		task.UpdatedAt = prevUpdated
		if from.TaskIndex(taskID) < 0 {
			from.Tasks = append(from.Tasks, task)
		}
	}).Under(&s.mu)
	s.mu.Unlock()

	err := m.Run(ctx, "move task", func(ctx context.Context) error {
		return s.remote.Merge(ctx, owner, collectionTasks, taskID, remote.Document{
			"slot_id":    toSlotID,
			"start_time": to.StartTime,
			"updated_at": now,
		})
	})
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	return nil
}

// RemoveTask unassigns a task from a slot and deletes its persisted record.
func (s *Store) RemoveTask(ctx context.Context, taskID, slotID string) error {
	s.mu.Lock()
	slot, ok := s.byID[slotID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	idx := slot.TaskIndex(taskID)
	if idx < 0 {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	task := slot.Tasks[idx]
	if task.IsCalendarEvent {
		s.mu.Unlock()
		return nil
	}
	pos := idx
	slot.Tasks = append(slot.Tasks[:idx], slot.Tasks[idx+1:]...)
	owner := s.ownerID

	m := store.NewMutation(func() {
		if slot.TaskIndex(taskID) >= 0 {
			return
		}
		if pos > len(slot.Tasks) {
			pos = len(slot.Tasks)
		}
		slot.Tasks = append(slot.Tasks[:pos], append([]*models.Task{task}, slot.Tasks[pos:]...)...)
	}).Under(&s.mu)
	s.mu.Unlock()

	err := m.Run(ctx, "remove task", func(ctx context.Context) error {
		return s.remote.Delete(ctx, owner, collectionTasks, taskID)
	})
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	return nil
}

// BlockSlot marks a slot unavailable and clears any assigned tasks. The
// tasks are not relocated; callers must warn before blocking an occupied
// slot. The cleared tasks keep their persisted records but lose their slot
// assignment in the same batch that records the block.
func (s *Store) BlockSlot(ctx context.Context, slotID, reason, label string) error {
	s.mu.Lock()
	slot, ok := s.byID[slotID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}

	now := s.now().UTC().Format(time.RFC3339)
	prevBlock := slot.Blocked
	prevTasks := slot.Tasks

	slot.Blocked = &models.SlotBlock{Reason: reason, Label: label}
	slot.Tasks = nil

	ops := []remote.BatchOp{{
		Kind:       remote.BatchSet,
		Collection: collectionSlots,
		ID:         slotStateID(s.date, slotID),
		Doc: remote.Document{
			"slot_id":    slotID,
			"date":       s.date,
			"blocked":    slot.Blocked,
			"updated_at": now,
		},
	}}
	for _, t := range prevTasks {
		if t.IsCalendarEvent {
			continue
		}
		ops = append(ops, remote.BatchOp{
			Kind:       remote.BatchMerge,
			Collection: collectionTasks,
			ID:         t.ID,
			Doc:        remote.Document{"slot_id": nil, "updated_at": now},
		})
	}
	owner := s.ownerID

	m := store.NewMutation(func() {
		slot.Blocked = prevBlock
		slot.Tasks = prevTasks
	}).Under(&s.mu)
	s.mu.Unlock()

	err := m.Run(ctx, "block slot", func(ctx context.Context) error {
		return s.remote.Batch(ctx, owner, ops)
	})
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	return nil
}

// UnblockSlot clears a slot's blocked state. Tasks cleared by the block are
// not restored.
func (s *Store) UnblockSlot(ctx context.Context, slotID string) error {
	s.mu.Lock()
	slot, ok := s.byID[slotID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}

	prevBlock := slot.Blocked
	slot.Blocked = nil
	owner := s.ownerID
	date := s.date

	m := store.NewMutation(func() {
		slot.Blocked = prevBlock
	}).Under(&s.mu)
	s.mu.Unlock()

	err := m.Run(ctx, "unblock slot", func(ctx context.Context) error {
		return s.remote.Delete(ctx, owner, collectionSlots, slotStateID(date, slotID))
	})
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	return nil
}

// PastSlots returns the slots already over: a slot is past only once the
// wall clock reaches its end time, so the currently running slot still
// counts as upcoming.
func (s *Store) PastSlots() []*models.TimeSlot {
	past, _ := s.Partition(s.Slots())
	return past
}

// UpcomingSlots returns the current and future slots.
func (s *Store) UpcomingSlots() []*models.TimeSlot {
	_, upcoming := s.Partition(s.Slots())
	return upcoming
}

// Partition splits the given slots into past and upcoming relative to the
// store's date and the wall clock, preserving order. It accepts any view of
// the day's grid, including overlaid display copies, so callers can filter
// a decorated slice without losing the decoration.
func (s *Store) Partition(slots []*models.TimeSlot) (past, upcoming []*models.TimeSlot) {
	now := s.now()
	nowMinutes := now.Hour()*60 + now.Minute()
	today := now.Format(models.DateLayout)

	for _, slot := range slots {
		end := clockToMinutes(slot.EndTime)
		switch {
		case s.date < today, s.date == today && end >= 0 && nowMinutes >= end:
			past = append(past, slot)
		default:
			upcoming = append(upcoming, slot)
		}
	}
	return past, upcoming
}

func slotStateID(date, slotID string) string {
	return date + ":" + slotID
}

// slotState is the persisted block record for one slot on one day.
type slotState struct {
	SlotID  string            `json:"slot_id"`
	Date    string            `json:"date"`
	Blocked *models.SlotBlock `json:"blocked,omitempty"`
}

func decodeSlotState(doc remote.Document) (*slotState, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var st slotState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func encodeTask(t *models.Task) (remote.Document, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var doc remote.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeTask(doc remote.Document) (*models.Task, error) {
	sanitized := remote.Document{}
	for k, v := range doc {
		sanitized[k] = v
	}
	for _, k := range []string{"created_at", "updated_at"} {
		if v, ok := sanitized[k]; ok && v != nil {
			sanitized[k] = store.CoerceTimestamp(v)
		}
	}
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return nil, err
	}
	var t models.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
