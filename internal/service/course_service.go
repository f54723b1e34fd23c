package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/enrollment-api/internal/engine"
	"github.com/campushub/enrollment-api/internal/models"
	appErrors "github.com/campushub/enrollment-api/pkg/errors"
)

const (
	courseDateLayout = "2006-01-02"

	// A course may be published at most two years ahead and must run
	// between one day and one year.
	maxStartLeadDays  = 730
	minCourseDuration = 24 * time.Hour
	maxCourseDuration = 365 * 24 * time.Hour

	catalogCachePrefix = "catalog:courses"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, course *models.Course, slots []models.Slot) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	SlotsByCourse(ctx context.Context, courseID string) ([]models.Slot, error)
}

type courseEnrollmentRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheMetrics interface {
	RecordCacheOperation(hit bool)
}

// CourseService provides course catalog use cases.
type CourseService struct {
	repo        courseRepository
	enrollments courseEnrollmentRepository
	cache       catalogCache
	metrics     cacheMetrics
	validator   *validator.Validate
	logger      *zap.Logger
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(repo courseRepository, enrollments courseEnrollmentRepository, cache catalogCache, metrics cacheMetrics, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CourseService{
		repo:        repo,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cacheTTL:    cacheTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type catalogPage struct {
	Courses    []models.CourseDetail `json:"courses"`
	Pagination models.Pagination     `json:"pagination"`
}

// List returns the course catalog, served from cache when possible.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, models.Pagination, error) {
	key := fmt.Sprintf("%s:%s:%s:%d:%d:%s:%s", catalogCachePrefix,
		filter.TeacherID, filter.Search, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)

	if s.cache != nil {
		var cached catalogPage
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return cached.Courses, cached.Pagination, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	pagination := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	if pagination.PageSize <= 0 {
		pagination.PageSize = 20
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, catalogPage{Courses: courses, Pagination: pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return courses, pagination, nil
}

// Get returns one course with teacher info and slots.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return detail, nil
}

// Create publishes a new course owned by the calling teacher.
func (s *CourseService) Create(ctx context.Context, teacherID string, req models.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	startDate, endDate, err := s.parseDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course name is already taken")
	}

	slots, err := parseSlots(req.Slots)
	if err != nil {
		return nil, err
	}
	if err := engine.ValidateSlotSet(slots); err != nil {
		return nil, err
	}

	course := &models.Course{
		Name:        req.Name,
		Description: req.Description,
		Capacity:    req.Capacity,
		Credits:     req.Credits,
		StartDate:   startDate,
		EndDate:     endDate,
		TeacherID:   teacherID,
	}
	if err := s.repo.Create(ctx, course, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateCatalog(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("teacher_id", teacherID))
	return course, nil
}

// Update edits the mutable fields of a course owned by the caller. Capacity
// may only grow so already granted seats are never revoked.
func (s *CourseService) Update(ctx context.Context, id, teacherID string, req models.UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.ownedCourse(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != course.Name {
		taken, err := s.repo.ExistsByName(ctx, *req.Name)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course name")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course name is already taken")
		}
		course.Name = *req.Name
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Credits != nil {
		course.Credits = *req.Credits
	}
	if req.Capacity != nil {
		if *req.Capacity < course.Capacity {
			return nil, appErrors.Clone(appErrors.ErrValidation, "capacity may only be increased")
		}
		course.Capacity = *req.Capacity
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete removes a course that has not committed any student yet.
func (s *CourseService) Delete(ctx context.Context, id, teacherID string, isAdmin bool) error {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !isAdmin && course.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another teacher")
	}

	enrollments, err := s.enrollments.ListByCourse(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course enrollments")
	}
	for _, e := range enrollments {
		if e.Status.Committed() {
			return appErrors.Clone(appErrors.ErrConflict, "course has committed enrollments")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	s.invalidateCatalog(ctx)
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

func (s *CourseService) ownedCourse(ctx context.Context, id, teacherID string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another teacher")
	}
	return course, nil
}

func (s *CourseService) parseDates(start, end string) (time.Time, time.Time, error) {
	startDate, err := time.ParseInLocation(courseDateLayout, start, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_date must be formatted as YYYY-MM-DD")
	}
	endDate, err := time.ParseInLocation(courseDateLayout, end, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date must be formatted as YYYY-MM-DD")
	}

	today := s.today()
	if startDate.Before(today) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_date must not be in the past")
	}
	if startDate.After(today.AddDate(0, 0, maxStartLeadDays)) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_date is too far in the future")
	}
	duration := endDate.Sub(startDate)
	if duration < minCourseDuration {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "course must run for at least one day")
	}
	if duration > maxCourseDuration {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "course must not run for more than one year")
	}
	return startDate, endDate, nil
}

func (s *CourseService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, catalogCachePrefix+":*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func parseSlots(reqs []models.SlotRequest) ([]models.Slot, error) {
	slots := make([]models.Slot, 0, len(reqs))
	for _, raw := range reqs {
		courseType, err := models.ParseCourseType(raw.CourseType)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		weekday, err := models.ParseWeekday(raw.Weekday)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		start, err := models.ParseTimeOfDay(raw.StartTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		end, err := models.ParseTimeOfDay(raw.EndTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		slots = append(slots, models.Slot{
			CourseType: courseType,
			Weekday:    weekday,
			StartTime:  start,
			EndTime:    end,
		})
	}
	return slots, nil
}
