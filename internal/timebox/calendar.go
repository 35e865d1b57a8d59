package timebox

import (
	"github.com/daygraph/daygraph/internal/models"
)

// OverlayCalendar merges calendar-sourced synthetic tasks into a display
// copy of the day's grid. The store's own state is untouched: calendar
// events are never persisted and never enter the mutation entry points.
// Events are homed into the slot whose interval contains their start time.
func (s *Store) OverlayCalendar(events []*models.Task) []*models.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.TimeSlot, len(s.slots))
	for i, slot := range s.slots {
		view := *slot
		view.Tasks = append([]*models.Task(nil), slot.Tasks...)
		out[i] = &view
	}

	for _, ev := range events {
		if ev == nil || !ev.IsCalendarEvent {
			continue
		}
		start := clockToMinutes(ev.StartTime)
		if start < 0 {
			continue
		}
		for _, view := range out {
			slotStart := clockToMinutes(view.StartTime)
			slotEnd := clockToMinutes(view.EndTime)
			if start >= slotStart && start < slotEnd {
				view.Tasks = append(view.Tasks, ev)
				break
			}
		}
	}
	return out
}
