package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/enrollment-api/internal/models"
	appErrors "github.com/campushub/enrollment-api/pkg/errors"
)

type mockCourseCatalogRepo struct {
	courses map[string]models.Course
	slots   map[string][]models.Slot
	names   map[string]bool
	created *models.Course
	updated *models.Course
	deleted []string
}

func (m *mockCourseCatalogRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var out []models.CourseDetail
	for _, c := range m.courses {
		out = append(out, models.CourseDetail{Course: c})
	}
	return out, len(out), nil
}

func (m *mockCourseCatalogRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseCatalogRepo) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return &models.CourseDetail{Course: c, Slots: m.slots[id]}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseCatalogRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return m.names[name], nil
}

func (m *mockCourseCatalogRepo) Create(ctx context.Context, course *models.Course, slots []models.Slot) error {
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	if course.ID == "" {
		course.ID = "new-course"
	}
	m.courses[course.ID] = *course
	m.created = course
	return nil
}

func (m *mockCourseCatalogRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = *course
	m.updated = course
	return nil
}

func (m *mockCourseCatalogRepo) Delete(ctx context.Context, id string) error {
	delete(m.courses, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockCourseCatalogRepo) SlotsByCourse(ctx context.Context, courseID string) ([]models.Slot, error) {
	return m.slots[courseID], nil
}

type mockCourseEnrollments struct {
	enrollments map[string][]models.Enrollment
}

func (m *mockCourseEnrollments) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	return m.enrollments[courseID], nil
}

type courseFixture struct {
	repo        *mockCourseCatalogRepo
	enrollments *mockCourseEnrollments
	service     *CourseService
}

func newCourseFixture() *courseFixture {
	f := &courseFixture{
		repo: &mockCourseCatalogRepo{
			courses: map[string]models.Course{
				"course-1": {
					ID: "course-1", Name: "Algorithms", Capacity: 20, Credits: 6, TeacherID: "teach-1",
					StartDate: testNow.AddDate(0, 1, 0), EndDate: testNow.AddDate(0, 4, 0),
				},
			},
			slots: map[string][]models.Slot{},
			names: map[string]bool{"Algorithms": true},
		},
		enrollments: &mockCourseEnrollments{enrollments: map[string][]models.Enrollment{}},
	}
	f.service = NewCourseService(f.repo, f.enrollments, nil, nil, nil, nil, 0)
	f.service.now = func() time.Time { return testNow }
	return f
}

func validCreateRequest() models.CreateCourseRequest {
	return models.CreateCourseRequest{
		Name:      "Databases",
		Capacity:  15,
		Credits:   5,
		StartDate: testNow.AddDate(0, 1, 0).Format(courseDateLayout),
		EndDate:   testNow.AddDate(0, 4, 0).Format(courseDateLayout),
		Slots: []models.SlotRequest{
			{CourseType: "COURSE", Weekday: "MONDAY", StartTime: "10:00", EndTime: "12:00"},
			{CourseType: "LAB", Weekday: "WEDNESDAY", StartTime: "14:00", EndTime: "16:00"},
		},
	}
}

func TestCourseServiceCreate(t *testing.T) {
	f := newCourseFixture()

	course, err := f.service.Create(context.Background(), "teach-1", validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "Databases", course.Name)
	assert.Equal(t, "teach-1", course.TeacherID)
	require.NotNil(t, f.repo.created)
}

func TestCourseServiceCreateDuplicateName(t *testing.T) {
	f := newCourseFixture()
	req := validCreateRequest()
	req.Name = "Algorithms"

	_, err := f.service.Create(context.Background(), "teach-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestCourseServiceCreateCapacityTooSmall(t *testing.T) {
	f := newCourseFixture()
	req := validCreateRequest()
	req.Capacity = 9

	_, err := f.service.Create(context.Background(), "teach-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCourseServiceCreateDateRules(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{"start in the past", testNow.AddDate(0, 0, -1), testNow.AddDate(0, 3, 0)},
		{"start too far ahead", testNow.AddDate(0, 0, 731), testNow.AddDate(0, 0, 800)},
		{"runs less than a day", testNow.AddDate(0, 1, 0), testNow.AddDate(0, 1, 0)},
		{"runs more than a year", testNow.AddDate(0, 1, 0), testNow.AddDate(1, 2, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCourseFixture()
			req := validCreateRequest()
			req.StartDate = tc.start.Format(courseDateLayout)
			req.EndDate = tc.end.Format(courseDateLayout)

			_, err := f.service.Create(context.Background(), "teach-1", req)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
		})
	}
}

func TestCourseServiceCreateRequiresCourseSlot(t *testing.T) {
	f := newCourseFixture()
	req := validCreateRequest()
	req.Slots = []models.SlotRequest{
		{CourseType: "SEMINAR", Weekday: "MONDAY", StartTime: "10:00", EndTime: "12:00"},
	}

	_, err := f.service.Create(context.Background(), "teach-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrMandatorySlotMissing))
}

func TestCourseServiceCreateMalformedSlot(t *testing.T) {
	f := newCourseFixture()
	req := validCreateRequest()
	req.Slots[0].StartTime = "10:15"

	_, err := f.service.Create(context.Background(), "teach-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidSchedule))
}

func TestCourseServiceUpdateCapacityOnlyGrows(t *testing.T) {
	f := newCourseFixture()
	smaller := 10

	_, err := f.service.Update(context.Background(), "course-1", "teach-1", models.UpdateCourseRequest{Capacity: &smaller})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	larger := 30
	course, err := f.service.Update(context.Background(), "course-1", "teach-1", models.UpdateCourseRequest{Capacity: &larger})
	require.NoError(t, err)
	assert.Equal(t, 30, course.Capacity)
}

func TestCourseServiceUpdateWrongTeacher(t *testing.T) {
	f := newCourseFixture()
	capacity := 30

	_, err := f.service.Update(context.Background(), "course-1", "teach-2", models.UpdateCourseRequest{Capacity: &capacity})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestCourseServiceDeleteBlockedByCommittedEnrollments(t *testing.T) {
	f := newCourseFixture()
	f.enrollments.enrollments["course-1"] = []models.Enrollment{
		{ID: "enr-1", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
	}

	err := f.service.Delete(context.Background(), "course-1", "teach-1", false)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestCourseServiceDelete(t *testing.T) {
	f := newCourseFixture()
	f.enrollments.enrollments["course-1"] = []models.Enrollment{
		{ID: "enr-1", CourseID: "course-1", Status: models.EnrollmentStatusDenied},
	}

	err := f.service.Delete(context.Background(), "course-1", "teach-1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"course-1"}, f.repo.deleted)
}

func TestCourseServiceDeleteAdminOverridesOwnership(t *testing.T) {
	f := newCourseFixture()

	err := f.service.Delete(context.Background(), "course-1", "admin-1", true)
	require.NoError(t, err)
}

func TestCourseServiceGetNotFound(t *testing.T) {
	f := newCourseFixture()

	_, err := f.service.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
