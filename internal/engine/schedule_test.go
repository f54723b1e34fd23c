package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/enrollment-api/internal/models"
	appErrors "github.com/campushub/enrollment-api/pkg/errors"
)

func slot(day models.Weekday, start, end string, courseType models.CourseType) models.Slot {
	return models.Slot{
		Weekday:    day,
		StartTime:  models.MustTimeOfDay(start),
		EndTime:    models.MustTimeOfDay(end),
		CourseType: courseType,
	}
}

func TestOverlapsIsSymmetric(t *testing.T) {
	a := slot(models.Monday, "10:00", "11:00", models.CourseTypeCourse)
	b := slot(models.Monday, "10:30", "11:30", models.CourseTypeSeminar)

	assert.True(t, overlaps(a, b))
	assert.Equal(t, overlaps(a, b), overlaps(b, a))
}

func TestOverlapsDifferentWeekdays(t *testing.T) {
	a := slot(models.Monday, "10:00", "11:00", models.CourseTypeCourse)
	shifted := slot(models.Tuesday, "10:00", "11:00", models.CourseTypeCourse)

	assert.False(t, overlaps(a, shifted))
	assert.False(t, overlaps(shifted, a))
}

func TestOverlapsAbuttingSlots(t *testing.T) {
	a := slot(models.Monday, "10:00", "11:00", models.CourseTypeCourse)
	b := slot(models.Monday, "11:00", "12:00", models.CourseTypeSeminar)

	assert.False(t, overlaps(a, b))
	assert.False(t, overlaps(b, a))
}

func TestOverlapsBySingleSecond(t *testing.T) {
	a := models.Slot{Weekday: models.Monday, StartTime: models.MustTimeOfDay("10:00"), EndTime: models.TimeOfDay(11*3600 + 1)}
	b := models.Slot{Weekday: models.Monday, StartTime: models.MustTimeOfDay("11:00"), EndTime: models.MustTimeOfDay("12:00")}

	assert.True(t, overlaps(a, b))
}

func TestValidateSlotSetAccepts(t *testing.T) {
	slots := []models.Slot{
		slot(models.Monday, "10:00", "11:00", models.CourseTypeCourse),
		slot(models.Monday, "11:00", "12:30", models.CourseTypeSeminar),
		slot(models.Friday, "16:30", "18:00", models.CourseTypeLab),
	}
	require.NoError(t, ValidateSlotSet(slots))
}

func TestValidateSlotSetRejectsMalformedSlots(t *testing.T) {
	cases := []struct {
		name string
		slot models.Slot
	}{
		{"start after end", slot(models.Monday, "12:00", "11:00", models.CourseTypeCourse)},
		{"start off half hour", slot(models.Monday, "10:15", "11:00", models.CourseTypeCourse)},
		{"end off half hour", slot(models.Monday, "10:00", "11:10", models.CourseTypeCourse)},
		{"start past 18:00", slot(models.Monday, "18:30", "19:30", models.CourseTypeCourse)},
		{"longer than 3 hours", slot(models.Monday, "10:00", "13:30", models.CourseTypeCourse)},
		{"shorter than 30 minutes", slot(models.Monday, "10:00", "10:00", models.CourseTypeCourse)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSlotSet([]models.Slot{tc.slot})
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrInvalidSchedule))
		})
	}
}

func TestValidateSlotSetBoundaryDurations(t *testing.T) {
	require.NoError(t, ValidateSlotSet([]models.Slot{slot(models.Monday, "10:00", "10:30", models.CourseTypeCourse)}))
	require.NoError(t, ValidateSlotSet([]models.Slot{slot(models.Monday, "10:00", "13:00", models.CourseTypeCourse)}))
	require.NoError(t, ValidateSlotSet([]models.Slot{slot(models.Monday, "18:00", "19:00", models.CourseTypeCourse)}))
}

func TestValidateSlotSetMandatoryCourseSlotMissing(t *testing.T) {
	slots := []models.Slot{
		slot(models.Monday, "09:00", "10:00", models.CourseTypeSeminar),
		slot(models.Monday, "09:00", "10:00", models.CourseTypeLab),
	}
	err := ValidateSlotSet(slots)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrMandatorySlotMissing))
}

func TestValidateSlotSetDuplicateTypes(t *testing.T) {
	slots := []models.Slot{
		slot(models.Monday, "10:00", "11:00", models.CourseTypeCourse),
		slot(models.Tuesday, "10:00", "11:00", models.CourseTypeCourse),
	}
	err := ValidateSlotSet(slots)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidSchedule))
}

func TestValidateSlotSetInternalOverlap(t *testing.T) {
	slots := []models.Slot{
		slot(models.Monday, "10:00", "11:00", models.CourseTypeCourse),
		slot(models.Monday, "10:30", "11:30", models.CourseTypeSeminar),
	}
	err := ValidateSlotSet(slots)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleConflict))
}

func TestValidateNoOverlapConflict(t *testing.T) {
	courseSlots := []models.Slot{slot(models.Monday, "10:00", "11:00", models.CourseTypeCourse)}
	committed := []models.Slot{slot(models.Monday, "10:30", "11:30", models.CourseTypeCourse)}

	err := ValidateNoOverlap(courseSlots, committed)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleConflict))
}

func TestValidateNoOverlapAbutting(t *testing.T) {
	courseSlots := []models.Slot{slot(models.Monday, "10:00", "11:00", models.CourseTypeCourse)}
	committed := []models.Slot{slot(models.Monday, "11:00", "12:00", models.CourseTypeCourse)}

	require.NoError(t, ValidateNoOverlap(courseSlots, committed))
}

func TestValidateNoOverlapFreeWeekday(t *testing.T) {
	// Candidate slots on weekdays the student is free on are never compared.
	courseSlots := []models.Slot{slot(models.Wednesday, "10:00", "11:00", models.CourseTypeCourse)}
	committed := []models.Slot{slot(models.Monday, "10:00", "11:00", models.CourseTypeCourse)}

	require.NoError(t, ValidateNoOverlap(courseSlots, committed))
}

func TestValidateNoOverlapEmptyCommitted(t *testing.T) {
	courseSlots := []models.Slot{slot(models.Monday, "10:00", "11:00", models.CourseTypeCourse)}
	require.NoError(t, ValidateNoOverlap(courseSlots, nil))
}
