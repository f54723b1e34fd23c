package engine

import (
	"sort"

	"github.com/campushub/enrollment-api/internal/models"
	appErrors "github.com/campushub/enrollment-api/pkg/errors"
)

// ValidateSlotSet checks a single course's candidate slot set: per-slot time
// constraints, course type uniqueness, the mandatory COURSE-type slot and
// pairwise overlap between same-weekday slots. The first violation found is
// returned.
func ValidateSlotSet(slots []models.Slot) error {
	for _, slot := range slots {
		if err := validateSlot(slot); err != nil {
			return err
		}
	}
	if err := validateSlotTypes(slots); err != nil {
		return err
	}
	return checkOverlapWithin(slots)
}

// ValidateNoOverlap checks a candidate course's slot set against a student's
// committed slots. For every weekday the student is already busy on, both
// sets are merged, sorted by start time and adjacent pairs are compared.
func ValidateNoOverlap(courseSlots, committedSlots []models.Slot) error {
	for _, weekday := range busyWeekdays(committedSlots) {
		merged := append(filterByWeekday(committedSlots, weekday), filterByWeekday(courseSlots, weekday)...)
		sortByStart(merged)
		if err := compareAdjacent(merged); err != nil {
			return err
		}
	}
	return nil
}

func validateSlot(slot models.Slot) error {
	if slot.StartTime > slot.EndTime {
		return appErrors.Clone(appErrors.ErrInvalidSchedule, "start time cannot be after end time")
	}
	if slot.StartTime.Minute() != 0 && slot.StartTime.Minute() != 30 {
		return appErrors.Clone(appErrors.ErrInvalidSchedule, "start time must fall on the half hour")
	}
	if slot.EndTime.Minute() != 0 && slot.EndTime.Minute() != 30 {
		return appErrors.Clone(appErrors.ErrInvalidSchedule, "end time must fall on the half hour")
	}
	if slot.StartTime.Seconds() > maxStartTime {
		return appErrors.Clone(appErrors.ErrInvalidSchedule, "start time cannot be after 18:00")
	}
	duration := slot.EndTime.Seconds() - slot.StartTime.Seconds()
	if duration > maxSlotDuration {
		return appErrors.Clone(appErrors.ErrInvalidSchedule, "slot cannot be longer than 3 hours")
	}
	if duration < minSlotDuration {
		return appErrors.Clone(appErrors.ErrInvalidSchedule, "slot must be at least 30 minutes long")
	}
	return nil
}

func validateSlotTypes(slots []models.Slot) error {
	seen := make(map[models.CourseType]bool, len(slots))
	hasCourse := false
	for _, slot := range slots {
		if seen[slot.CourseType] {
			return appErrors.Clone(appErrors.ErrInvalidSchedule, "duplicate course types")
		}
		seen[slot.CourseType] = true
		if slot.CourseType == models.CourseTypeCourse {
			hasCourse = true
		}
	}
	if !hasCourse {
		return appErrors.ErrMandatorySlotMissing
	}
	return nil
}

func checkOverlapWithin(slots []models.Slot) error {
	for _, weekday := range busyWeekdays(slots) {
		sameDay := filterByWeekday(slots, weekday)
		if len(sameDay) == 1 {
			continue
		}
		sortByStart(sameDay)
		if err := compareAdjacent(sameDay); err != nil {
			return err
		}
	}
	return nil
}

// compareAdjacent expects slots on one weekday sorted by start time; with
// that ordering any collision shows up between neighbours.
func compareAdjacent(sorted []models.Slot) error {
	for i := 1; i < len(sorted); i++ {
		if overlaps(sorted[i-1], sorted[i]) {
			return appErrors.ErrScheduleConflict
		}
	}
	return nil
}

func busyWeekdays(slots []models.Slot) []models.Weekday {
	seen := make(map[models.Weekday]bool)
	var days []models.Weekday
	for _, slot := range slots {
		if !seen[slot.Weekday] {
			seen[slot.Weekday] = true
			days = append(days, slot.Weekday)
		}
	}
	return days
}

func filterByWeekday(slots []models.Slot, weekday models.Weekday) []models.Slot {
	var out []models.Slot
	for _, slot := range slots {
		if slot.Weekday == weekday {
			out = append(out, slot)
		}
	}
	return out
}

func sortByStart(slots []models.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].StartTime < slots[j].StartTime
	})
}
