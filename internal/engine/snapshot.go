package engine

import (
	"sort"

	"github.com/campushub/enrollment-api/internal/models"
	appErrors "github.com/campushub/enrollment-api/pkg/errors"
)

// Snapshot is the in-memory entity graph the engine operates on. The caller
// loads it, the engine reads it and returns mutated copies; the snapshot
// itself is never written to. Relationships are id lookups, entities never
// embed each other.
type Snapshot struct {
	Users       map[string]models.User
	Courses     map[string]models.Course
	Slots       map[string][]models.Slot // keyed by course id
	Enrollments map[string]models.Enrollment
}

// NewSnapshot returns an empty snapshot ready to be populated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Users:       make(map[string]models.User),
		Courses:     make(map[string]models.Course),
		Slots:       make(map[string][]models.Slot),
		Enrollments: make(map[string]models.Enrollment),
	}
}

// User returns the user with the given id.
func (s *Snapshot) User(id string) (models.User, error) {
	u, ok := s.Users[id]
	if !ok {
		return models.User{}, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return u, nil
}

// Course returns the course with the given id.
func (s *Snapshot) Course(id string) (models.Course, error) {
	c, ok := s.Courses[id]
	if !ok {
		return models.Course{}, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return c, nil
}

// Enrollment returns the enrollment with the given id.
func (s *Snapshot) Enrollment(id string) (models.Enrollment, error) {
	e, ok := s.Enrollments[id]
	if !ok {
		return models.Enrollment{}, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return e, nil
}

// SlotsOf returns the slot set owned by a course.
func (s *Snapshot) SlotsOf(courseID string) []models.Slot {
	return s.Slots[courseID]
}

// EnrollmentsOf returns all enrollments of a course, ordered by id.
func (s *Snapshot) EnrollmentsOf(courseID string) []models.Enrollment {
	var out []models.Enrollment
	for _, id := range s.sortedEnrollmentIDs() {
		if e := s.Enrollments[id]; e.CourseID == courseID {
			out = append(out, e)
		}
	}
	return out
}

// EnrollmentsByStudent returns all enrollments of a student, ordered by id.
func (s *Snapshot) EnrollmentsByStudent(studentID string) []models.Enrollment {
	var out []models.Enrollment
	for _, id := range s.sortedEnrollmentIDs() {
		if e := s.Enrollments[id]; e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out
}

// CommittedSlots returns the union of slots belonging to courses the student
// holds an APPROVED or ACTIVE enrollment in.
func (s *Snapshot) CommittedSlots(studentID string) []models.Slot {
	return s.committedSlots(studentID, nil)
}

// committedSlots computes the committed set, treating enrollments present in
// overrides as if they had the overridden status. Used by the approval
// cascade which must see the just-approved enrollment as committed before
// the snapshot is re-loaded.
func (s *Snapshot) committedSlots(studentID string, overrides map[string]models.EnrollmentStatus) []models.Slot {
	var slots []models.Slot
	for _, e := range s.EnrollmentsByStudent(studentID) {
		status := e.Status
		if o, ok := overrides[e.ID]; ok {
			status = o
		}
		if !status.Committed() {
			continue
		}
		slots = append(slots, s.SlotsOf(e.CourseID)...)
	}
	return slots
}

func (s *Snapshot) sortedEnrollmentIDs() []string {
	ids := make([]string, 0, len(s.Enrollments))
	for id := range s.Enrollments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
