package models

// TaskStatus represents the scheduling status of a timeboxed task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusDeferred   TaskStatus = "deferred"
)

// AttemptOutcome records how a single work attempt on a task ended.
type AttemptOutcome string

const (
	AttemptCompleted AttemptOutcome = "completed"
	AttemptPartial   AttemptOutcome = "partial"
	AttemptSkipped   AttemptOutcome = "skipped"
	AttemptBlocked   AttemptOutcome = "blocked"
)

// Attempt is one entry in a task's attempt history.
type Attempt struct {
	At              string         `json:"at"`
	Outcome         AttemptOutcome `json:"outcome"`
	DurationMinutes *int           `json:"duration_minutes,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	NextAction      string         `json:"next_action,omitempty"`
}

// Task is a timebox-scheduled unit of work. Most tasks are derived from a
// Node and carry its id in NodeID. Calendar-sourced tasks are synthetic:
// flagged IsCalendarEvent, shown in the slot view but never persisted and
// never accepted by the scheduler's mutation entry points.
type Task struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	NodeID  string `json:"node_id,omitempty"`
	Title   string `json:"title"`

	TimeboxDate     string `json:"timebox_date"`
	SlotID          string `json:"slot_id,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`

	Status   TaskStatus `json:"status"`
	Attempts []Attempt  `json:"attempts,omitempty"`

	IsCalendarEvent bool   `json:"is_calendar_event,omitempty"`
	CalendarEventID string `json:"calendar_event_id,omitempty"`

	// Optimistic marks an in-flight write: the task is visible locally but
	// its persistence has not settled yet. Never serialized.
	Optimistic bool `json:"-"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.Attempts != nil {
		c.Attempts = append([]Attempt(nil), t.Attempts...)
	}
	return &c
}
