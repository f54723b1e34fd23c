package engine

import "github.com/campushub/enrollment-api/internal/models"

// Slot time constraints.
const (
	minSlotDuration = 30 * 60     // 30 minutes
	maxSlotDuration = 3 * 60 * 60 // 3 hours
	maxStartTime    = 18 * 60 * 60
)

// overlaps reports whether two slots collide. Slots are half-open intervals:
// slots on different weekdays never overlap, and abutting slots on the same
// weekday (end of one equals start of the other) do not overlap either.
func overlaps(a, b models.Slot) bool {
	if a.Weekday != b.Weekday {
		return false
	}
	return maxStart(a, b) < minEnd(a, b)
}

func maxStart(a, b models.Slot) int {
	if a.StartTime > b.StartTime {
		return a.StartTime.Seconds()
	}
	return b.StartTime.Seconds()
}

func minEnd(a, b models.Slot) int {
	if a.EndTime < b.EndTime {
		return a.EndTime.Seconds()
	}
	return b.EndTime.Seconds()
}
