package timebox

import (
	"fmt"
	"time"

	"github.com/daygraph/daygraph/internal/models"
)

// The daily scheduling window. Slots cover [DayStartHour, DayEndHour).
const (
	DayStartHour = 6
	DayEndHour   = 22
)

const noonMinutes = 12 * 60

// SlotID derives a slot's id purely from its start time, so regenerating
// the grid at the same interval always reproduces identical ids. Task
// assignments survive an interval change wherever their slot id still
// exists.
func SlotID(startMinutes int) string {
	return fmt.Sprintf("slot-%02d%02d", startMinutes/60, startMinutes%60)
}

func minutesToClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func periodFor(startMinutes int) models.Period {
	h := startMinutes / 60
	switch {
	case h < 12:
		return models.PeriodMorning
	case h < 17:
		return models.PeriodAfternoon
	case h < 21:
		return models.PeriodEvening
	default:
		return models.PeriodNight
	}
}

// buildSlots generates the day's fixed grid: consecutive slots of exactly
// intervalMinutes covering the daily window. TimeIndex is each slot's
// offset from the slot containing noon.
func buildSlots(intervalMinutes int) []*models.TimeSlot {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}

	start := DayStartHour * 60
	end := DayEndHour * 60

	var slots []*models.TimeSlot
	noonIdx := 0
	for i, at := 0, start; at+intervalMinutes <= end; i, at = i+1, at+intervalMinutes {
		slotEnd := at + intervalMinutes
		if at <= noonMinutes && noonMinutes < slotEnd {
			noonIdx = i
		}
		slots = append(slots, &models.TimeSlot{
			ID:        SlotID(at),
			StartTime: minutesToClock(at),
			EndTime:   minutesToClock(slotEnd),
			Display:   minutesToClock(at) + " - " + minutesToClock(slotEnd),
			Period:    periodFor(at),
		})
	}
	for i, s := range slots {
		s.TimeIndex = i - noonIdx
	}
	return slots
}

// clockToMinutes parses HH:MM. Returns -1 on malformed input.
func clockToMinutes(clock string) int {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}
