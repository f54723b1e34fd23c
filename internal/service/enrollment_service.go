package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/enrollment-api/internal/engine"
	"github.com/campushub/enrollment-api/internal/models"
	appErrors "github.com/campushub/enrollment-api/pkg/errors"
	"github.com/campushub/enrollment-api/pkg/export"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
	ListAll(ctx context.Context) ([]models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatuses(ctx context.Context, changes map[string]models.EnrollmentStatus) error
	UpdateGrade(ctx context.Context, id string, grade int) error
}

type enrollmentCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListAll(ctx context.Context) ([]models.Course, error)
	SlotsByCourses(ctx context.Context, courseIDs []string) (map[string][]models.Slot, error)
	UpdateCapacity(ctx context.Context, id string, capacity int) error
}

type enrollmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type auditRecorder interface {
	Record(entry *models.AuditLog)
}

type enrollmentMetrics interface {
	RecordDecision(status models.EnrollmentStatus)
	RecordSweepTransition(status models.EnrollmentStatus)
}

// DecisionOutcome reports the applied transition and its side effects.
type DecisionOutcome struct {
	Enrollment models.Enrollment   `json:"enrollment"`
	Canceled   []models.Enrollment `json:"canceled_enrollments,omitempty"`
}

// EnrollmentService provides the enrollment lifecycle use cases. Every rule
// runs inside the pure decision engine against an in-memory snapshot of the
// affected rows; this service only loads snapshots and persists outcomes.
type EnrollmentService struct {
	repo              enrollmentRepository
	courses           enrollmentCourseRepository
	users             enrollmentUserRepository
	audit             auditRecorder
	metrics           enrollmentMetrics
	logger            *zap.Logger
	csv               *export.CSVExporter
	pdf               *export.PDFExporter
	minimumAttendance int
	now               func() time.Time
}

// NewEnrollmentService constructs an EnrollmentService instance.
func NewEnrollmentService(repo enrollmentRepository, courses enrollmentCourseRepository, users enrollmentUserRepository, audit auditRecorder, metrics enrollmentMetrics, logger *zap.Logger, minimumAttendance int) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minimumAttendance <= 0 {
		minimumAttendance = engine.DefaultMinimumAttendance
	}
	return &EnrollmentService{
		repo:              repo,
		courses:           courses,
		users:             users,
		audit:             audit,
		metrics:           metrics,
		logger:            logger,
		csv:               export.NewCSVExporter(),
		pdf:               export.NewPDFExporter(),
		minimumAttendance: minimumAttendance,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// Enroll files a PENDING enrollment of the student into the course.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	snap, err := s.studentSnapshot(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}

	enrollment, err := engine.CreateEnrollment(snap, courseID, studentID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist enrollment")
	}

	s.audit.Record(&models.AuditLog{
		UserID:     &studentID,
		Action:     models.AuditActionStatusChange,
		Resource:   "enrollment",
		ResourceID: &enrollment.ID,
		NewValues:  []byte(fmt.Sprintf(`{"course_id":%q,"status":%q}`, courseID, enrollment.Status)),
	})
	s.logger.Info("enrollment requested",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", studentID),
		zap.String("course_id", courseID))
	return &enrollment, nil
}

// Decide applies a teacher or student driven status change. Approvals consume
// a seat and cancel the student's other pending enrollments that no longer
// fit the committed weekly schedule.
func (s *EnrollmentService) Decide(ctx context.Context, enrollmentID, actorID string, role models.UserRole, target models.EnrollmentStatus) (*DecisionOutcome, error) {
	snap, err := s.enrollmentSnapshot(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	var request engine.ChangeRequest
	switch role {
	case models.RoleTeacher:
		request = engine.TeacherAction{TeacherID: actorID, Target: target}
	case models.RoleStudent:
		request = engine.StudentAction{StudentID: actorID, Target: target}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers and students may change enrollment status")
	}

	result, err := engine.ChangeStatus(snap, enrollmentID, request)
	if err != nil {
		return nil, err
	}

	changes := map[string]models.EnrollmentStatus{result.Enrollment.ID: result.Enrollment.Status}
	for _, canceled := range result.Canceled {
		changes[canceled.ID] = canceled.Status
	}
	if err := s.repo.UpdateStatuses(ctx, changes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist status changes")
	}
	if result.Course != nil {
		if err := s.updateCapacity(ctx, result.Course); err != nil {
			return nil, err
		}
	}

	s.recordStatusEvents(result.Events, &actorID)
	if s.metrics != nil {
		s.metrics.RecordDecision(result.Enrollment.Status)
	}
	s.logger.Info("enrollment status changed",
		zap.String("enrollment_id", enrollmentID),
		zap.String("actor_id", actorID),
		zap.String("status", string(result.Enrollment.Status)),
		zap.Int("cascaded_cancellations", len(result.Canceled)))

	return &DecisionOutcome{Enrollment: result.Enrollment, Canceled: result.Canceled}, nil
}

// Grade assigns a final grade to an active enrollment of the teacher's course.
func (s *EnrollmentService) Grade(ctx context.Context, enrollmentID, teacherID string, grade int) (*models.Enrollment, error) {
	snap, err := s.enrollmentSnapshot(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	enrollment, event, err := engine.GradeEnrollment(snap, enrollmentID, teacherID, grade)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateGrade(ctx, enrollment.ID, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist grade")
	}

	payload, _ := json.Marshal(event)
	s.audit.Record(&models.AuditLog{
		UserID:     &teacherID,
		Action:     models.AuditActionGrade,
		Resource:   "enrollment",
		ResourceID: &enrollment.ID,
		NewValues:  payload,
	})
	s.logger.Info("enrollment graded",
		zap.String("enrollment_id", enrollmentID),
		zap.String("teacher_id", teacherID),
		zap.Int("grade", grade))
	return &enrollment, nil
}

// List returns enrollments scoped to the caller: students see their own,
// teachers see their courses, admins see everything.
func (s *EnrollmentService) List(ctx context.Context, actorID string, role models.UserRole, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, models.Pagination, error) {
	switch role {
	case models.RoleStudent:
		filter.StudentID = actorID
	case models.RoleTeacher:
		if filter.CourseID == "" {
			return nil, models.Pagination{}, appErrors.Clone(appErrors.ErrValidation, "course_id is required")
		}
		course, err := s.courses.FindByID(ctx, filter.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, models.Pagination{}, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if course.TeacherID != actorID {
			return nil, models.Pagination{}, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another teacher")
		}
	case models.RoleAdmin:
	default:
		return nil, models.Pagination{}, appErrors.Clone(appErrors.ErrForbidden, "unsupported role")
	}

	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	pagination := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	if pagination.PageSize <= 0 {
		pagination.PageSize = 20
	}
	return enrollments, pagination, nil
}

// Get returns one enrollment if the caller may see it.
func (s *EnrollmentService) Get(ctx context.Context, id, actorID string, role models.UserRole) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	switch role {
	case models.RoleAdmin:
	case models.RoleStudent:
		if enrollment.StudentID != actorID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
		}
	case models.RoleTeacher:
		course, err := s.courses.FindByID(ctx, enrollment.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if course.TeacherID != actorID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another teacher's course")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unsupported role")
	}
	return enrollment, nil
}

// Schedule returns the student's committed weekly timetable ordered by
// weekday and start time.
func (s *EnrollmentService) Schedule(ctx context.Context, studentID string) ([]models.ScheduleEntry, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	var courseIDs []string
	for _, e := range enrollments {
		if e.Status.Committed() {
			courseIDs = append(courseIDs, e.CourseID)
		}
	}
	slotsByCourse, err := s.courses.SlotsByCourses(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}

	entries := make([]models.ScheduleEntry, 0)
	for _, courseID := range courseIDs {
		course, err := s.courses.FindByID(ctx, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		for _, slot := range slotsByCourse[courseID] {
			entries = append(entries, models.ScheduleEntry{
				CourseID:   courseID,
				CourseName: course.Name,
				CourseType: slot.CourseType,
				Weekday:    slot.Weekday,
				StartTime:  slot.StartTime,
				EndTime:    slot.EndTime,
			})
		}
	}

	weekdayOrder := make(map[models.Weekday]int, len(models.Weekdays))
	for i, d := range models.Weekdays {
		weekdayOrder[d] = i
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Weekday != entries[j].Weekday {
			return weekdayOrder[entries[i].Weekday] < weekdayOrder[entries[j].Weekday]
		}
		return entries[i].StartTime < entries[j].StartTime
	})
	return entries, nil
}

// Transcript renders the student's course history as CSV or PDF.
func (s *EnrollmentService) Transcript(ctx context.Context, studentID, format string) ([]byte, string, error) {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	dataset := export.Dataset{Headers: []string{"Course", "Credits", "Status", "Grade"}}
	for _, e := range enrollments {
		if !e.Status.Committed() && e.Status != models.EnrollmentStatusCompleted {
			continue
		}
		course, err := s.courses.FindByID(ctx, e.CourseID)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		grade := ""
		if e.Grade != nil {
			grade = fmt.Sprintf("%d", *e.Grade)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Course":  course.Name,
			"Credits": fmt.Sprintf("%d", course.Credits),
			"Status":  string(e.Status),
			"Grade":   grade,
		})
	}

	switch strings.ToLower(format) {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Transcript %s", student.FullName))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// RunStatusSweeps applies the three time-driven sweeps in order: activation
// of started courses, completion of graded finished courses, cancellation of
// under-attended courses. Returns the number of applied transitions.
func (s *EnrollmentService) RunStatusSweeps(ctx context.Context) (int, error) {
	snap, err := s.fullSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	today := s.now()

	total := 0
	sweeps := []func() engine.SweepResult{
		func() engine.SweepResult { return engine.ActivateStarted(snap, today) },
		func() engine.SweepResult { return engine.CompleteGraded(snap, today) },
		func() engine.SweepResult { return engine.CancelUnderAttended(snap, s.minimumAttendance) },
	}
	for _, sweep := range sweeps {
		result := sweep()
		if len(result.Enrollments) == 0 {
			continue
		}

		changes := make(map[string]models.EnrollmentStatus, len(result.Enrollments))
		for _, e := range result.Enrollments {
			changes[e.ID] = e.Status
			snap.Enrollments[e.ID] = e
		}
		if err := s.repo.UpdateStatuses(ctx, changes); err != nil {
			return total, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist sweep transitions")
		}

		s.recordStatusEvents(result.Events, nil)
		if s.metrics != nil {
			for _, e := range result.Enrollments {
				s.metrics.RecordSweepTransition(e.Status)
			}
		}
		total += len(result.Enrollments)
	}

	if total > 0 {
		s.logger.Info("enrollment status sweeps applied", zap.Int("transitions", total))
	}
	return total, nil
}

func (s *EnrollmentService) updateCapacity(ctx context.Context, course *models.Course) error {
	if err := s.courses.UpdateCapacity(ctx, course.ID, course.Capacity); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist course capacity")
	}
	return nil
}

func (s *EnrollmentService) recordStatusEvents(events []engine.StatusChange, actorID *string) {
	for _, event := range events {
		payload, _ := json.Marshal(event)
		id := event.EnrollmentID
		s.audit.Record(&models.AuditLog{
			UserID:     actorID,
			Action:     models.AuditActionStatusChange,
			Resource:   "enrollment",
			ResourceID: &id,
			NewValues:  payload,
		})
	}
}

// studentSnapshot loads the student, the target course and everything needed
// to evaluate the student's weekly schedule.
func (s *EnrollmentService) studentSnapshot(ctx context.Context, studentID, courseID string) (*engine.Snapshot, error) {
	snap := engine.NewSnapshot()

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	snap.Users[student.ID] = *student

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	snap.Courses[course.ID] = *course

	courseEnrollments, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course enrollments")
	}
	studentEnrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student enrollments")
	}

	courseIDs := map[string]bool{courseID: true}
	for _, e := range courseEnrollments {
		snap.Enrollments[e.ID] = e
	}
	for _, e := range studentEnrollments {
		snap.Enrollments[e.ID] = e
		courseIDs[e.CourseID] = true
	}

	return snap, s.loadSlots(ctx, snap, courseIDs)
}

// enrollmentSnapshot loads one enrollment plus the data the cascading
// cancellation needs: the student's other enrollments and their slots.
func (s *EnrollmentService) enrollmentSnapshot(ctx context.Context, enrollmentID string) (*engine.Snapshot, error) {
	snap := engine.NewSnapshot()

	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	studentEnrollments, err := s.repo.ListByStudent(ctx, enrollment.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student enrollments")
	}

	courseIDs := map[string]bool{enrollment.CourseID: true}
	snap.Enrollments[enrollment.ID] = *enrollment
	for _, e := range studentEnrollments {
		snap.Enrollments[e.ID] = e
		courseIDs[e.CourseID] = true
	}
	for id := range courseIDs {
		course, err := s.courses.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		snap.Courses[course.ID] = *course
	}

	return snap, s.loadSlots(ctx, snap, courseIDs)
}

// fullSnapshot loads every course and enrollment for the periodic sweeps.
func (s *EnrollmentService) fullSnapshot(ctx context.Context) (*engine.Snapshot, error) {
	snap := engine.NewSnapshot()

	courses, err := s.courses.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	for _, course := range courses {
		snap.Courses[course.ID] = course
	}

	enrollments, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	for _, e := range enrollments {
		snap.Enrollments[e.ID] = e
	}
	return snap, nil
}

func (s *EnrollmentService) loadSlots(ctx context.Context, snap *engine.Snapshot, courseIDs map[string]bool) error {
	ids := make([]string, 0, len(courseIDs))
	for id := range courseIDs {
		ids = append(ids, id)
	}
	slots, err := s.courses.SlotsByCourses(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}
	for courseID, courseSlots := range slots {
		snap.Slots[courseID] = courseSlots
	}
	return nil
}
