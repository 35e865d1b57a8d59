package models

// Period is a coarse time-of-day bucket for a slot.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
	PeriodNight     Period = "night"
)

// SlotBlock marks a slot as unavailable. A blocked slot holds no tasks and
// rejects new assignments until unblocked.
type SlotBlock struct {
	Reason string `json:"reason"`
	Label  string `json:"label,omitempty"`
}

// TimeSlot is one fixed interval of the daily schedule grid. The id is
// derived from the start time alone, so regenerating the grid at the same
// interval reproduces identical ids and task assignments can be rehomed
// across interval changes.
type TimeSlot struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`   // HH:MM
	Display   string `json:"display"`

	// TimeIndex is the slot's offset from the slot containing noon:
	// negative before, zero at, positive after.
	TimeIndex int    `json:"time_index"`
	Period    Period `json:"period"`

	Tasks   []*Task    `json:"tasks,omitempty"`
	Blocked *SlotBlock `json:"blocked,omitempty"`
}

// TaskIndex returns the position of the task with the given id, or -1.
func (s *TimeSlot) TaskIndex(taskID string) int {
	for i, t := range s.Tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

// RemoveTask drops the task with the given id from the slot and returns it.
// Returns nil when the task is not assigned to the slot.
func (s *TimeSlot) RemoveTask(taskID string) *Task {
	i := s.TaskIndex(taskID)
	if i < 0 {
		return nil
	}
	t := s.Tasks[i]
	s.Tasks = append(s.Tasks[:i], s.Tasks[i+1:]...)
	if len(s.Tasks) == 0 {
		s.Tasks = nil
	}
	return t
}
