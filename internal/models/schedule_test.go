package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	parsed, err := ParseTimeOfDay("10:30")
	require.NoError(t, err)
	assert.Equal(t, 10, parsed.Hour())
	assert.Equal(t, 30, parsed.Minute())
	assert.Equal(t, 10*3600+30*60, parsed.Seconds())
	assert.Equal(t, "10:30", parsed.String())
}

func TestParseTimeOfDayInvalid(t *testing.T) {
	for _, raw := range []string{"", "25:00", "10:61", "abc"} {
		_, err := ParseTimeOfDay(raw)
		assert.Error(t, err, "%q", raw)
	}
}

func TestTimeOfDayJSONRoundTrip(t *testing.T) {
	slot := Slot{
		Weekday:    Monday,
		CourseType: CourseTypeCourse,
		StartTime:  MustTimeOfDay("09:00"),
		EndTime:    MustTimeOfDay("10:30"),
	}

	raw, err := json.Marshal(slot)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"start_time":"09:00"`)

	var decoded Slot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, slot.StartTime, decoded.StartTime)
	assert.Equal(t, slot.EndTime, decoded.EndTime)
}

func TestParseWeekday(t *testing.T) {
	day, err := ParseWeekday("monday")
	require.NoError(t, err)
	assert.Equal(t, Monday, day)

	_, err = ParseWeekday("FUNDAY")
	assert.Error(t, err)
}

func TestParseCourseType(t *testing.T) {
	ct, err := ParseCourseType(" lab ")
	require.NoError(t, err)
	assert.Equal(t, CourseTypeLab, ct)

	_, err = ParseCourseType("WORKSHOP")
	assert.Error(t, err)
}
