package engine

import (
	"time"

	"github.com/campushub/enrollment-api/internal/models"
	appErrors "github.com/campushub/enrollment-api/pkg/errors"
)

// DefaultMinimumAttendance is the enrollment count below which pending and
// approved enrollments are auto-canceled by the periodic sweep.
const DefaultMinimumAttendance = 5

// StatusChange describes one applied status transition for the audit trail.
type StatusChange struct {
	EnrollmentID string                  `json:"enrollment_id"`
	CourseID     string                  `json:"course_id"`
	ActorID      string                  `json:"actor_id,omitempty"`
	From         models.EnrollmentStatus `json:"from"`
	To           models.EnrollmentStatus `json:"to"`
}

// GradeAssigned describes a grade assignment for the audit trail.
type GradeAssigned struct {
	EnrollmentID string `json:"enrollment_id"`
	CourseID     string `json:"course_id"`
	TeacherID    string `json:"teacher_id"`
	Grade        int    `json:"grade"`
}

// ChangeResult carries every entity mutated by a status change request.
type ChangeResult struct {
	Enrollment models.Enrollment
	Course     *models.Course      // set when the capacity changed
	Canceled   []models.Enrollment // cascading cancellations
	Events     []StatusChange
}

// SweepResult carries the enrollments mutated by a time-driven sweep.
type SweepResult struct {
	Enrollments []models.Enrollment
	Events      []StatusChange
}

// CreateEnrollment applies the enrollment creation rules and returns the new
// PENDING enrollment. The snapshot is not modified and no capacity is
// consumed; capacity is decremented only on approval.
func CreateEnrollment(snap *Snapshot, courseID, studentID string, today time.Time) (models.Enrollment, error) {
	student, err := snap.User(studentID)
	if err != nil {
		return models.Enrollment{}, err
	}
	if student.Role != models.RoleStudent {
		return models.Enrollment{}, appErrors.Clone(appErrors.ErrForbidden, "only students may enroll")
	}

	course, err := snap.Course(courseID)
	if err != nil {
		return models.Enrollment{}, err
	}
	if !dateOnly(course.StartDate).After(dateOnly(today)) {
		return models.Enrollment{}, appErrors.ErrEnrollmentPeriodPassed
	}
	if course.Capacity <= 0 {
		return models.Enrollment{}, appErrors.ErrCapacityReached
	}
	for _, e := range snap.EnrollmentsOf(courseID) {
		if e.StudentID == studentID {
			return models.Enrollment{}, appErrors.ErrAlreadyEnrolled
		}
	}
	if err := ValidateNoOverlap(snap.SlotsOf(courseID), snap.CommittedSlots(studentID)); err != nil {
		return models.Enrollment{}, err
	}

	return models.Enrollment{
		StudentID: studentID,
		CourseID:  courseID,
		Status:    models.EnrollmentStatusPending,
	}, nil
}

// ChangeStatus applies a user-requested status change. The teacher path may
// approve or deny; approval decrements the course capacity and triggers the
// cascading cancellation of the student's other pending enrollments that
// conflict with the newly committed schedule. The student path may only
// cancel a pending enrollment.
func ChangeStatus(snap *Snapshot, enrollmentID string, req ChangeRequest) (*ChangeResult, error) {
	enrollment, err := snap.Enrollment(enrollmentID)
	if err != nil {
		return nil, err
	}
	course, err := snap.Course(enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	switch action := req.(type) {
	case TeacherAction:
		if course.TeacherID != action.TeacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another teacher's course")
		}
		if course.Capacity <= 0 {
			return nil, appErrors.ErrCapacityReached
		}
		if err := checkTeacherTransition(enrollment.Status, action.Target); err != nil {
			return nil, err
		}
	case StudentAction:
		if err := checkStudentTransition(enrollment.Status, action.Target); err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unsupported requester")
	}

	result := &ChangeResult{}
	from := enrollment.Status
	enrollment.Status = req.target()
	result.Enrollment = enrollment
	result.Events = append(result.Events, StatusChange{
		EnrollmentID: enrollment.ID,
		CourseID:     course.ID,
		ActorID:      req.actorID(),
		From:         from,
		To:           enrollment.Status,
	})

	if enrollment.Status == models.EnrollmentStatusApproved {
		course.Capacity--
		result.Course = &course
		cascadeCancellations(snap, enrollment, result)
	}

	return result, nil
}

// cascadeCancellations re-checks every other course the student holds a
// PENDING enrollment in against the committed schedule that now includes the
// just-approved course. Conflicting pending enrollments are system-canceled;
// the conflict is converted into the cancellation instead of being returned.
// This is the one place a schedule conflict is swallowed rather than
// propagated.
func cascadeCancellations(snap *Snapshot, approved models.Enrollment, result *ChangeResult) {
	committed := snap.committedSlots(approved.StudentID, map[string]models.EnrollmentStatus{
		approved.ID: models.EnrollmentStatusApproved,
	})

	for _, other := range snap.EnrollmentsByStudent(approved.StudentID) {
		if other.ID == approved.ID || other.Status != models.EnrollmentStatusPending {
			continue
		}
		if err := ValidateNoOverlap(snap.SlotsOf(other.CourseID), committed); err == nil {
			continue
		}
		from := other.Status
		other.Status = models.EnrollmentStatusCanceled
		result.Canceled = append(result.Canceled, other)
		result.Events = append(result.Events, StatusChange{
			EnrollmentID: other.ID,
			CourseID:     other.CourseID,
			From:         from,
			To:           other.Status,
		})
	}
}

// GradeEnrollment assigns a grade to an active, ungraded enrollment. Grades
// are set exactly once.
func GradeEnrollment(snap *Snapshot, enrollmentID, teacherID string, grade int) (models.Enrollment, *GradeAssigned, error) {
	enrollment, err := snap.Enrollment(enrollmentID)
	if err != nil {
		return models.Enrollment{}, nil, err
	}
	course, err := snap.Course(enrollment.CourseID)
	if err != nil {
		return models.Enrollment{}, nil, err
	}
	if course.TeacherID != teacherID {
		return models.Enrollment{}, nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another teacher's course")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return models.Enrollment{}, nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "enrollment is not active")
	}
	if enrollment.Grade != nil {
		return models.Enrollment{}, nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "enrollment already graded")
	}
	if grade < 1 || grade > 10 {
		return models.Enrollment{}, nil, appErrors.Clone(appErrors.ErrValidation, "grade must be between 1 and 10")
	}

	enrollment.Grade = &grade
	event := &GradeAssigned{
		EnrollmentID: enrollment.ID,
		CourseID:     course.ID,
		TeacherID:    teacherID,
		Grade:        grade,
	}
	return enrollment, event, nil
}

// ActivateStarted transitions APPROVED enrollments to ACTIVE once their
// course start date has been reached. Invoked by the periodic status job; no
// authorization applies.
func ActivateStarted(snap *Snapshot, today time.Time) SweepResult {
	var result SweepResult
	for _, e := range allByStatus(snap, models.EnrollmentStatusApproved) {
		course, err := snap.Course(e.CourseID)
		if err != nil {
			continue
		}
		if dateOnly(course.StartDate).After(dateOnly(today)) {
			continue
		}
		applySystemTransition(&result, e, models.EnrollmentStatusActive)
	}
	return result
}

// CompleteGraded transitions ACTIVE enrollments to COMPLETED once they carry
// a grade and their course end date has passed.
func CompleteGraded(snap *Snapshot, today time.Time) SweepResult {
	var result SweepResult
	for _, e := range allByStatus(snap, models.EnrollmentStatusActive) {
		if e.Grade == nil {
			continue
		}
		course, err := snap.Course(e.CourseID)
		if err != nil {
			continue
		}
		if !dateOnly(course.EndDate).Before(dateOnly(today)) {
			continue
		}
		applySystemTransition(&result, e, models.EnrollmentStatusCompleted)
	}
	return result
}

// CancelUnderAttended cancels PENDING and APPROVED enrollments of courses
// whose total enrollment count is below the minimum attendance threshold.
// The count spans all statuses, mirroring how courses measure interest.
func CancelUnderAttended(snap *Snapshot, minimum int) SweepResult {
	if minimum <= 0 {
		minimum = DefaultMinimumAttendance
	}
	var result SweepResult
	candidates := append(
		allByStatus(snap, models.EnrollmentStatusApproved),
		allByStatus(snap, models.EnrollmentStatusPending)...,
	)
	for _, e := range candidates {
		if len(snap.EnrollmentsOf(e.CourseID)) >= minimum {
			continue
		}
		applySystemTransition(&result, e, models.EnrollmentStatusCanceled)
	}
	return result
}

func applySystemTransition(result *SweepResult, e models.Enrollment, to models.EnrollmentStatus) {
	from := e.Status
	e.Status = to
	result.Enrollments = append(result.Enrollments, e)
	result.Events = append(result.Events, StatusChange{
		EnrollmentID: e.ID,
		CourseID:     e.CourseID,
		From:         from,
		To:           to,
	})
}

func allByStatus(snap *Snapshot, status models.EnrollmentStatus) []models.Enrollment {
	var out []models.Enrollment
	for _, id := range snap.sortedEnrollmentIDs() {
		if e := snap.Enrollments[id]; e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
