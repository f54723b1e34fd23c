package engine

import (
	"github.com/campushub/enrollment-api/internal/models"
	appErrors "github.com/campushub/enrollment-api/pkg/errors"
)

// ChangeRequest is a status change request tagged by the requester's role.
// Each variant carries only the fields its authorization path needs.
type ChangeRequest interface {
	target() models.EnrollmentStatus
	actorID() string
}

// TeacherAction is a status change requested by the course's teacher.
type TeacherAction struct {
	TeacherID string
	Target    models.EnrollmentStatus
}

func (a TeacherAction) target() models.EnrollmentStatus { return a.Target }
func (a TeacherAction) actorID() string                 { return a.TeacherID }

// StudentAction is a status change requested by a student.
type StudentAction struct {
	StudentID string
	Target    models.EnrollmentStatus
}

func (a StudentAction) target() models.EnrollmentStatus { return a.Target }
func (a StudentAction) actorID() string                 { return a.StudentID }

// checkTeacherTransition validates the teacher path of a status change: the
// requested target must be APPROVED or DENIED and the transition must be
// legal for the current status.
func checkTeacherTransition(current, requested models.EnrollmentStatus) error {
	if requested != models.EnrollmentStatusApproved && requested != models.EnrollmentStatusDenied {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "invalid new status")
	}
	if !current.ValidTransition(requested) {
		return appErrors.ErrInvalidTransition
	}
	return nil
}

// checkStudentTransition validates the student path: only PENDING enrollments
// may be touched, and the only permitted target is CANCELED. A wrong target
// is an authorization failure, not a state machine failure.
func checkStudentTransition(current, requested models.EnrollmentStatus) error {
	if current != models.EnrollmentStatusPending {
		return appErrors.ErrAlreadyProcessed
	}
	if requested != models.EnrollmentStatusCanceled {
		return appErrors.Clone(appErrors.ErrForbidden, "students may only cancel pending enrollments")
	}
	return nil
}
