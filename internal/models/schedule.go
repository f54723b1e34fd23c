package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Weekday enumerates the days a slot may recur on.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// Weekdays lists all valid weekdays.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday normalises and validates a weekday value.
func ParseWeekday(raw string) (Weekday, error) {
	day := Weekday(strings.ToUpper(strings.TrimSpace(raw)))
	for _, d := range Weekdays {
		if d == day {
			return day, nil
		}
	}
	return "", fmt.Errorf("invalid weekday %q", raw)
}

// CourseType tags a slot with the course component it belongs to.
type CourseType string

const (
	CourseTypeCourse  CourseType = "COURSE"
	CourseTypeSeminar CourseType = "SEMINAR"
	CourseTypeLab     CourseType = "LAB"
)

// ParseCourseType normalises and validates a course type value.
func ParseCourseType(raw string) (CourseType, error) {
	ct := CourseType(strings.ToUpper(strings.TrimSpace(raw)))
	switch ct {
	case CourseTypeCourse, CourseTypeSeminar, CourseTypeLab:
		return ct, nil
	}
	return "", fmt.Errorf("invalid course type %q", raw)
}

// TimeOfDay is a naive local wall-clock time expressed as seconds since
// midnight. Overlap arithmetic works on this value directly.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	return TimeOfDay(hour*3600 + minute*60), nil
}

// MustTimeOfDay parses "HH:MM" and panics on failure. Intended for constants and tests.
func MustTimeOfDay(raw string) TimeOfDay {
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return (int(t) % 3600) / 60 }

// Seconds returns the value as seconds since midnight.
func (t TimeOfDay) Seconds() int { return int(t) }

// String renders the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalJSON encodes the time as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "HH:MM" into the receiver.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time as seconds since midnight.
func (t TimeOfDay) Value() (driver.Value, error) {
	return int64(t), nil
}

// Scan reads the time back from its integer column.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*t = TimeOfDay(v)
		return nil
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// Slot is a weekly recurring time interval owned by exactly one course.
type Slot struct {
	ID         string     `db:"id" json:"id"`
	CourseID   string     `db:"course_id" json:"course_id"`
	CourseType CourseType `db:"course_type" json:"course_type"`
	Weekday    Weekday    `db:"weekday" json:"weekday"`
	StartTime  TimeOfDay  `db:"start_time" json:"start_time"`
	EndTime    TimeOfDay  `db:"end_time" json:"end_time"`
}
