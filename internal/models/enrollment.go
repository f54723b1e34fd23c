package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved  EnrollmentStatus = "APPROVED"
	EnrollmentStatusDenied    EnrollmentStatus = "DENIED"
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCanceled  EnrollmentStatus = "CANCELED"
)

// EnrollmentStatuses lists all valid statuses.
var EnrollmentStatuses = []EnrollmentStatus{
	EnrollmentStatusPending,
	EnrollmentStatusApproved,
	EnrollmentStatusDenied,
	EnrollmentStatusActive,
	EnrollmentStatusCompleted,
	EnrollmentStatusCanceled,
}

// ValidTransition reports whether a direct teacher-driven transition from the
// receiver to next is legal. ACTIVE, COMPLETED and CANCELED are reached only
// through system transitions and are terminal for user actions.
func (s EnrollmentStatus) ValidTransition(next EnrollmentStatus) bool {
	switch s {
	case EnrollmentStatusPending:
		return next == EnrollmentStatusApproved || next == EnrollmentStatusDenied
	case EnrollmentStatusDenied:
		return next == EnrollmentStatusApproved
	default:
		return false
	}
}

// Committed reports whether the status binds the student's weekly schedule.
func (s EnrollmentStatus) Committed() bool {
	return s == EnrollmentStatusApproved || s == EnrollmentStatusActive
}

// Enrollment captures a student's registration to a course.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	Grade     *int             `db:"grade" json:"grade,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// EnrollRequest holds the payload for requesting an enrollment.
type EnrollRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// EnrollmentDecisionRequest carries the requested status transition.
type EnrollmentDecisionRequest struct {
	Status string `json:"status" validate:"required"`
}

// GradeRequest carries a grade assignment.
type GradeRequest struct {
	Grade int `json:"grade" validate:"required,min=1,max=10"`
}

// ScheduleEntry is one row of a student's weekly timetable.
type ScheduleEntry struct {
	CourseID   string     `json:"course_id"`
	CourseName string     `json:"course_name"`
	CourseType CourseType `json:"course_type"`
	Weekday    Weekday    `json:"weekday"`
	StartTime  TimeOfDay  `json:"start_time"`
	EndTime    TimeOfDay  `json:"end_time"`
}

// TranscriptRow is one graded course on a student's transcript.
type TranscriptRow struct {
	CourseName string           `json:"course_name"`
	Credits    int              `json:"credits"`
	Status     EnrollmentStatus `json:"status"`
	Grade      *int             `json:"grade,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
