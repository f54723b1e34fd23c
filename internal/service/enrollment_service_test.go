package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/enrollment-api/internal/models"
	appErrors "github.com/campushub/enrollment-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	created     *models.Enrollment
	statuses    map[string]models.EnrollmentStatus
	grades      map[string]int
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: e})
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) ListAll(ctx context.Context) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enroll"
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatuses(ctx context.Context, changes map[string]models.EnrollmentStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.EnrollmentStatus)
	}
	for id, status := range changes {
		m.statuses[id] = status
		if e, ok := m.enrollments[id]; ok {
			e.Status = status
			m.enrollments[id] = e
		}
	}
	return nil
}

func (m *mockEnrollmentRepo) UpdateGrade(ctx context.Context, id string, grade int) error {
	if m.grades == nil {
		m.grades = make(map[string]int)
	}
	m.grades[id] = grade
	return nil
}

type mockCourseRepo struct {
	courses    map[string]models.Course
	slots      map[string][]models.Slot
	capacities map[string]int
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ListAll(ctx context.Context) ([]models.Course, error) {
	var out []models.Course
	for _, c := range m.courses {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCourseRepo) SlotsByCourses(ctx context.Context, courseIDs []string) (map[string][]models.Slot, error) {
	out := make(map[string][]models.Slot)
	for _, id := range courseIDs {
		if slots, ok := m.slots[id]; ok {
			out[id] = slots
		}
	}
	return out, nil
}

func (m *mockCourseRepo) UpdateCapacity(ctx context.Context, id string, capacity int) error {
	if m.capacities == nil {
		m.capacities = make(map[string]int)
	}
	m.capacities[id] = capacity
	if c, ok := m.courses[id]; ok {
		c.Capacity = capacity
		m.courses[id] = c
	}
	return nil
}

type mockUserRepo struct {
	users map[string]models.User
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

type mockAudit struct {
	entries []*models.AuditLog
}

func (m *mockAudit) Record(entry *models.AuditLog) {
	m.entries = append(m.entries, entry)
}

type mockEnrollmentMetrics struct {
	decisions []models.EnrollmentStatus
	sweeps    []models.EnrollmentStatus
}

func (m *mockEnrollmentMetrics) RecordDecision(status models.EnrollmentStatus) {
	m.decisions = append(m.decisions, status)
}

func (m *mockEnrollmentMetrics) RecordSweepTransition(status models.EnrollmentStatus) {
	m.sweeps = append(m.sweeps, status)
}

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func courseSlot(day models.Weekday, start, end string) models.Slot {
	return models.Slot{
		CourseType: models.CourseTypeCourse,
		Weekday:    day,
		StartTime:  models.MustTimeOfDay(start),
		EndTime:    models.MustTimeOfDay(end),
	}
}

type enrollmentFixture struct {
	repo    *mockEnrollmentRepo
	courses *mockCourseRepo
	users   *mockUserRepo
	audit   *mockAudit
	metrics *mockEnrollmentMetrics
	service *EnrollmentService
}

func newEnrollmentFixture(minimum int) *enrollmentFixture {
	f := &enrollmentFixture{
		repo: &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{}},
		courses: &mockCourseRepo{
			courses: map[string]models.Course{
				"course-1": {
					ID: "course-1", Name: "Algorithms", Capacity: 10, Credits: 6, TeacherID: "teach-1",
					StartDate: testNow.AddDate(0, 1, 0), EndDate: testNow.AddDate(0, 4, 0),
				},
			},
			slots: map[string][]models.Slot{
				"course-1": {courseSlot(models.Monday, "10:00", "11:00")},
			},
		},
		users: &mockUserRepo{users: map[string]models.User{
			"stu-1":   {ID: "stu-1", FullName: "Ana Pop", Role: models.RoleStudent, Active: true},
			"teach-1": {ID: "teach-1", FullName: "Ion Dan", Role: models.RoleTeacher, Active: true},
		}},
		audit:   &mockAudit{},
		metrics: &mockEnrollmentMetrics{},
	}
	f.service = NewEnrollmentService(f.repo, f.courses, f.users, f.audit, f.metrics, nil, minimum)
	f.service.now = func() time.Time { return testNow }
	return f
}

func (f *enrollmentFixture) addCourse(id string, start, end time.Time, slots ...models.Slot) {
	for i := range slots {
		slots[i].CourseID = id
	}
	f.courses.courses[id] = models.Course{
		ID: id, Name: id, Capacity: 10, Credits: 5, TeacherID: "teach-1",
		StartDate: start, EndDate: end,
	}
	f.courses.slots[id] = slots
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	f := newEnrollmentFixture(0)

	enrollment, err := f.service.Enroll(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.NotNil(t, f.repo.created)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionStatusChange, f.audit.entries[0].Action)
}

func TestEnrollmentServiceEnrollCourseNotFound(t *testing.T) {
	f := newEnrollmentFixture(0)

	_, err := f.service.Enroll(context.Background(), "stu-1", "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceEnrollScheduleConflict(t *testing.T) {
	f := newEnrollmentFixture(0)
	f.addCourse("course-2", testNow.AddDate(0, 1, 0), testNow.AddDate(0, 4, 0),
		courseSlot(models.Monday, "10:30", "11:30"))
	f.repo.enrollments["enr-1"] = models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", CourseID: "course-2", Status: models.EnrollmentStatusApproved,
	}

	_, err := f.service.Enroll(context.Background(), "stu-1", "course-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleConflict))
}

func TestEnrollmentServiceDecideApprovalCascades(t *testing.T) {
	f := newEnrollmentFixture(0)
	f.addCourse("course-2", testNow.AddDate(0, 1, 0), testNow.AddDate(0, 4, 0),
		courseSlot(models.Monday, "10:30", "11:30"))
	f.repo.enrollments["enr-1"] = models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusPending,
	}
	f.repo.enrollments["enr-2"] = models.Enrollment{
		ID: "enr-2", StudentID: "stu-1", CourseID: "course-2", Status: models.EnrollmentStatusPending,
	}

	outcome, err := f.service.Decide(context.Background(), "enr-1", "teach-1", models.RoleTeacher, models.EnrollmentStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, outcome.Enrollment.Status)
	require.Len(t, outcome.Canceled, 1)
	assert.Equal(t, "enr-2", outcome.Canceled[0].ID)

	assert.Equal(t, models.EnrollmentStatusApproved, f.repo.statuses["enr-1"])
	assert.Equal(t, models.EnrollmentStatusCanceled, f.repo.statuses["enr-2"])
	assert.Equal(t, 9, f.courses.capacities["course-1"])
	assert.Equal(t, []models.EnrollmentStatus{models.EnrollmentStatusApproved}, f.metrics.decisions)
	assert.Len(t, f.audit.entries, 2)
}

func TestEnrollmentServiceDecideStudentCancels(t *testing.T) {
	f := newEnrollmentFixture(0)
	f.repo.enrollments["enr-1"] = models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusPending,
	}

	outcome, err := f.service.Decide(context.Background(), "enr-1", "stu-1", models.RoleStudent, models.EnrollmentStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCanceled, outcome.Enrollment.Status)
	assert.Empty(t, outcome.Canceled)
	assert.Empty(t, f.courses.capacities)
}

func TestEnrollmentServiceDecideRejectsAdmin(t *testing.T) {
	f := newEnrollmentFixture(0)
	f.repo.enrollments["enr-1"] = models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusPending,
	}

	_, err := f.service.Decide(context.Background(), "enr-1", "admin-1", models.RoleAdmin, models.EnrollmentStatusApproved)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestEnrollmentServiceGrade(t *testing.T) {
	f := newEnrollmentFixture(0)
	f.repo.enrollments["enr-1"] = models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusActive,
	}

	enrollment, err := f.service.Grade(context.Background(), "enr-1", "teach-1", 9)
	require.NoError(t, err)
	require.NotNil(t, enrollment.Grade)
	assert.Equal(t, 9, *enrollment.Grade)
	assert.Equal(t, 9, f.repo.grades["enr-1"])
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionGrade, f.audit.entries[0].Action)
}

func TestEnrollmentServiceGradeWrongTeacher(t *testing.T) {
	f := newEnrollmentFixture(0)
	f.repo.enrollments["enr-1"] = models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusActive,
	}

	_, err := f.service.Grade(context.Background(), "enr-1", "teach-2", 9)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, f.repo.grades)
}

func TestEnrollmentServiceListScopesStudent(t *testing.T) {
	f := newEnrollmentFixture(0)
	f.repo.enrollments["enr-1"] = models.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusPending}
	f.repo.enrollments["enr-2"] = models.Enrollment{ID: "enr-2", StudentID: "stu-2", CourseID: "course-1", Status: models.EnrollmentStatusPending}

	enrollments, _, err := f.service.List(context.Background(), "stu-1", models.RoleStudent, models.EnrollmentFilter{})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "stu-1", enrollments[0].StudentID)
}

func TestEnrollmentServiceListTeacherRequiresOwnCourse(t *testing.T) {
	f := newEnrollmentFixture(0)

	_, _, err := f.service.List(context.Background(), "teach-2", models.RoleTeacher, models.EnrollmentFilter{CourseID: "course-1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, _, err = f.service.List(context.Background(), "teach-1", models.RoleTeacher, models.EnrollmentFilter{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEnrollmentServiceSchedule(t *testing.T) {
	f := newEnrollmentFixture(0)
	f.addCourse("course-2", testNow.AddDate(0, 1, 0), testNow.AddDate(0, 4, 0),
		courseSlot(models.Monday, "08:00", "09:00"))
	f.repo.enrollments["enr-1"] = models.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusApproved}
	f.repo.enrollments["enr-2"] = models.Enrollment{ID: "enr-2", StudentID: "stu-1", CourseID: "course-2", Status: models.EnrollmentStatusActive}
	f.repo.enrollments["enr-3"] = models.Enrollment{ID: "enr-3", StudentID: "stu-1", CourseID: "course-2", Status: models.EnrollmentStatusDenied}

	entries, err := f.service.Schedule(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "course-2", entries[0].CourseID)
	assert.Equal(t, "course-1", entries[1].CourseID)
}

func TestEnrollmentServiceTranscriptCSV(t *testing.T) {
	f := newEnrollmentFixture(0)
	grade := 8
	f.repo.enrollments["enr-1"] = models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", CourseID: "course-1",
		Status: models.EnrollmentStatusCompleted, Grade: &grade,
	}
	f.addCourse("Compilers", testNow.AddDate(0, 1, 0), testNow.AddDate(0, 4, 0),
		courseSlot(models.Tuesday, "10:00", "11:00"))
	f.repo.enrollments["enr-2"] = models.Enrollment{
		ID: "enr-2", StudentID: "stu-1", CourseID: "Compilers",
		Status: models.EnrollmentStatusPending,
	}

	payload, contentType, err := f.service.Transcript(context.Background(), "stu-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.True(t, strings.Contains(string(payload), "Algorithms"))
	assert.True(t, strings.Contains(string(payload), "8"))
	assert.False(t, strings.Contains(string(payload), "Compilers"))
}

func TestEnrollmentServiceTranscriptRejectsUnknownFormat(t *testing.T) {
	f := newEnrollmentFixture(0)

	_, _, err := f.service.Transcript(context.Background(), "stu-1", "xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEnrollmentServiceRunStatusSweeps(t *testing.T) {
	f := newEnrollmentFixture(2)
	f.addCourse("course-started", testNow.AddDate(0, 0, -1), testNow.AddDate(0, 3, 0),
		courseSlot(models.Tuesday, "09:00", "10:00"))
	f.addCourse("course-done", testNow.AddDate(0, -6, 0), testNow.AddDate(0, 0, -1),
		courseSlot(models.Wednesday, "09:00", "10:00"))
	f.addCourse("course-empty", testNow.AddDate(0, 2, 0), testNow.AddDate(0, 5, 0),
		courseSlot(models.Thursday, "09:00", "10:00"))

	grade := 10
	f.repo.enrollments["enr-started"] = models.Enrollment{ID: "enr-started", StudentID: "stu-1", CourseID: "course-started", Status: models.EnrollmentStatusApproved}
	f.repo.enrollments["enr-started-2"] = models.Enrollment{ID: "enr-started-2", StudentID: "stu-2", CourseID: "course-started", Status: models.EnrollmentStatusApproved}
	f.repo.enrollments["enr-done"] = models.Enrollment{ID: "enr-done", StudentID: "stu-3", CourseID: "course-done", Status: models.EnrollmentStatusActive, Grade: &grade}
	f.repo.enrollments["enr-done-2"] = models.Enrollment{ID: "enr-done-2", StudentID: "stu-4", CourseID: "course-done", Status: models.EnrollmentStatusCompleted}
	f.repo.enrollments["enr-under"] = models.Enrollment{ID: "enr-under", StudentID: "stu-5", CourseID: "course-empty", Status: models.EnrollmentStatusPending}

	total, err := f.service.RunStatusSweeps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, models.EnrollmentStatusActive, f.repo.statuses["enr-started"])
	assert.Equal(t, models.EnrollmentStatusActive, f.repo.statuses["enr-started-2"])
	assert.Equal(t, models.EnrollmentStatusCompleted, f.repo.statuses["enr-done"])
	assert.Equal(t, models.EnrollmentStatusCanceled, f.repo.statuses["enr-under"])
	assert.Len(t, f.metrics.sweeps, 4)
	assert.Len(t, f.audit.entries, 4)
}
