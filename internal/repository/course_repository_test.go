package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campushub/enrollment-api/internal/models"
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "description", "capacity", "credits", "start_date", "end_date", "teacher_id", "created_at", "updated_at"}).
		AddRow("course-1", "Algorithms", "", 25, 6, time.Now(), time.Now().AddDate(0, 3, 0), "teach-1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	course, err := repo.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, "Algorithms", course.Name)
	require.Equal(t, 25, course.Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM courses WHERE LOWER(name) = LOWER($1))")).
		WithArgs("Algorithms").
		WillReturnRows(rows)

	exists, err := repo.ExistsByName(context.Background(), "Algorithms")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateWithSlots(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_slots")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	course := &models.Course{Name: "Algorithms", Capacity: 25, Credits: 6, TeacherID: "teach-1",
		StartDate: time.Now().AddDate(0, 1, 0), EndDate: time.Now().AddDate(0, 4, 0)}
	slots := []models.Slot{{
		CourseType: models.CourseTypeCourse,
		Weekday:    models.Monday,
		StartTime:  models.MustTimeOfDay("10:00"),
		EndTime:    models.MustTimeOfDay("12:00"),
	}}
	err := repo.Create(context.Background(), course, slots)
	require.NoError(t, err)
	require.NotEmpty(t, course.ID)
	require.Equal(t, course.ID, slots[0].CourseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateCapacity(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET capacity = $2")).
		WithArgs("course-1", 9, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateCapacity(context.Background(), "course-1", 9)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositorySlotsByCourse(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "course_type", "weekday", "start_time", "end_time"}).
		AddRow("slot-1", "course-1", models.CourseTypeCourse, models.Monday, int64(10*3600), int64(12*3600))
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_slots WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	slots, err := repo.SlotsByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.Equal(t, "10:00", slots[0].StartTime.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositorySlotsByCoursesEmpty(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	slots, err := repo.SlotsByCourses(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, slots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_slots WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "course-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
