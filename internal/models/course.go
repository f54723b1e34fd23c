package models

import "time"

// Course represents a course offered by a teacher.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Capacity    int       `db:"capacity" json:"capacity"`
	Credits     int       `db:"credits" json:"credits"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with its slot set and teacher info.
type CourseDetail struct {
	Course
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	Slots       []Slot `json:"slots"`
}

// SlotRequest describes one weekly slot in a course payload.
type SlotRequest struct {
	CourseType string `json:"course_type" validate:"required"`
	Weekday    string `json:"weekday" validate:"required"`
	StartTime  string `json:"start_time" validate:"required"`
	EndTime    string `json:"end_time" validate:"required"`
}

// CreateCourseRequest holds the payload for publishing a course.
type CreateCourseRequest struct {
	Name        string        `json:"name" validate:"required,min=3,max=120"`
	Description string        `json:"description" validate:"max=2000"`
	Capacity    int           `json:"capacity" validate:"required,min=10"`
	Credits     int           `json:"credits" validate:"required,min=1,max=30"`
	StartDate   string        `json:"start_date" validate:"required"`
	EndDate     string        `json:"end_date" validate:"required"`
	Slots       []SlotRequest `json:"slots" validate:"required,min=1,dive"`
}

// UpdateCourseRequest holds the mutable course fields. The weekly schedule
// is fixed once students can enroll, so slots are not updatable.
type UpdateCourseRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=3,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Capacity    *int    `json:"capacity" validate:"omitempty,min=1"`
	Credits     *int    `json:"credits" validate:"omitempty,min=1,max=30"`
}

// CourseFilter describes query params for listing courses.
type CourseFilter struct {
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
