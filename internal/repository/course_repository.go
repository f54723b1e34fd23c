package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/enrollment-api/internal/models"
)

// CourseRepository handles persistence of courses and their weekly slots.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses with teacher names, filtered and paginated.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := "FROM courses c JOIN users u ON u.id = c.teacher_id"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(c.name ILIKE $%d OR c.description ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "c.name",
		"start_date": "c.start_date",
		"created_at": "c.created_at",
	}
	sortBy := allowedSorts[filter.SortBy]
	if sortBy == "" {
		sortBy = "c.start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.name, c.description, c.capacity, c.credits, c.start_date, c.end_date,
        c.teacher_id, c.created_at, c.updated_at, u.full_name AS teacher_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, sortBy, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, description, capacity, credits, start_date, end_date, teacher_id, created_at, updated_at
        FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindDetailByID returns a course with its teacher name and slots.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	const query = `SELECT c.id, c.name, c.description, c.capacity, c.credits, c.start_date, c.end_date,
        c.teacher_id, c.created_at, c.updated_at, u.full_name AS teacher_name
        FROM courses c JOIN users u ON u.id = c.teacher_id WHERE c.id = $1`
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	slots, err := r.SlotsByCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Slots = slots
	return &detail, nil
}

// ExistsByName checks whether a course name is already taken.
func (r *CourseRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM courses WHERE LOWER(name) = LOWER($1))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name); err != nil {
		return false, fmt.Errorf("check course name: %w", err)
	}
	return exists, nil
}

// Create persists a course together with its slot set in one transaction.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course, slots []models.Slot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course tx: %w", err)
	}
	defer tx.Rollback()

	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const courseQuery = `INSERT INTO courses (id, name, description, capacity, credits, start_date, end_date, teacher_id, created_at, updated_at)
        VALUES (:id, :name, :description, :capacity, :credits, :start_date, :end_date, :teacher_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, courseQuery, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}

	const slotQuery = `INSERT INTO course_slots (id, course_id, course_type, weekday, start_time, end_time)
        VALUES (:id, :course_id, :course_type, :weekday, :start_time, :end_time)`
	for i := range slots {
		slots[i].CourseID = course.ID
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx, slotQuery, slots[i]); err != nil {
			return fmt.Errorf("create course slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit course tx: %w", err)
	}
	return nil
}

// Update persists changed course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, description = :description, capacity = :capacity,
        credits = :credits, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// UpdateCapacity adjusts only the remaining capacity of a course.
func (r *CourseRepository) UpdateCapacity(ctx context.Context, id string, capacity int) error {
	const query = `UPDATE courses SET capacity = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, capacity, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course capacity: %w", err)
	}
	return nil
}

// Delete removes a course and its slots.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM course_slots WHERE course_id = $1`, id); err != nil {
		return fmt.Errorf("delete course slots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit course delete tx: %w", err)
	}
	return nil
}

// SlotsByCourse returns the weekly slots of one course.
func (r *CourseRepository) SlotsByCourse(ctx context.Context, courseID string) ([]models.Slot, error) {
	const query = `SELECT id, course_id, course_type, weekday, start_time, end_time
        FROM course_slots WHERE course_id = $1 ORDER BY weekday, start_time`
	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, courseID); err != nil {
		return nil, fmt.Errorf("list course slots: %w", err)
	}
	return slots, nil
}

// SlotsByCourses returns the slots of a set of courses keyed by course ID.
func (r *CourseRepository) SlotsByCourses(ctx context.Context, courseIDs []string) (map[string][]models.Slot, error) {
	result := make(map[string][]models.Slot, len(courseIDs))
	if len(courseIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT id, course_id, course_type, weekday, start_time, end_time
        FROM course_slots WHERE course_id IN (?) ORDER BY weekday, start_time`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("build slot query: %w", err)
	}
	query = r.db.Rebind(query)
	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list slots by courses: %w", err)
	}
	for _, slot := range slots {
		result[slot.CourseID] = append(result[slot.CourseID], slot)
	}
	return result, nil
}

// ListAll returns every course. Used by the status sweeps.
func (r *CourseRepository) ListAll(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT id, name, description, capacity, credits, start_date, end_date, teacher_id, created_at, updated_at
        FROM courses`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list all courses: %w", err)
	}
	return courses, nil
}
