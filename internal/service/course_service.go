package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/internal/repository"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

// Capacity and credit defaults applied when the payload omits them.
const (
	defaultMaxStudents = 30
	defaultCredits     = 3
)

type courseRepository interface {
	List(ctx context.Context) ([]models.CourseDetail, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]models.CourseDetail, error)
	ListAvailableForStudent(ctx context.Context, studentID, departmentID string) ([]models.CourseDetail, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	DeleteWithPurge(ctx context.Context, id string) error
}

type courseDepartmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

type courseTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type courseStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type courseEnrollmentCounter interface {
	CountByCourse(ctx context.Context, courseID string) (int, error)
	CountByCourseAndStatus(ctx context.Context, courseID string, status models.EnrollmentStatus) (int, error)
}

// CreateCourseRequest describes course creation payload.
type CreateCourseRequest struct {
	Code         string  `json:"code" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Description  string  `json:"description"`
	Credits      *int    `json:"credits" validate:"omitempty,gt=0"`
	MaxStudents  *int    `json:"max_students" validate:"omitempty,gt=0"`
	DepartmentID string  `json:"department_id" validate:"required"`
	TeacherID    *string `json:"teacher_id"`
}

// UpdateCourseRequest describes course update payload.
type UpdateCourseRequest struct {
	Code         string  `json:"code" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Description  string  `json:"description"`
	Credits      int     `json:"credits" validate:"gt=0"`
	MaxStudents  int     `json:"max_students" validate:"gt=0"`
	DepartmentID string  `json:"department_id" validate:"required"`
	TeacherID    *string `json:"teacher_id"`
}

// CourseService enforces course capacity, uniqueness, and deletion-safety
// rules.
type CourseService struct {
	repo        courseRepository
	departments courseDepartmentReader
	teachers    courseTeacherReader
	students    courseStudentReader
	enrollments courseEnrollmentCounter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, departments courseDepartmentReader, teachers courseTeacherReader, students courseStudentReader, enrollments courseEnrollmentCounter, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, departments: departments, teachers: teachers, students: students, enrollments: enrollments, validator: validate, logger: logger}
}

// List returns every course with live enrollment counts.
func (s *CourseService) List(ctx context.Context) ([]models.CourseDetail, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// ListByDepartment returns the courses offered by a department.
func (s *CourseService) ListByDepartment(ctx context.Context, departmentID string) ([]models.CourseDetail, error) {
	courses, err := s.repo.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// ListAvailableForStudent returns the courses of the student's department the
// student can still enroll in (not full, not already enrolled).
func (s *CourseService) ListAvailableForStudent(ctx context.Context, studentID string) ([]models.CourseDetail, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", studentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	courses, err := s.repo.ListAvailableForStudent(ctx, studentID, student.DepartmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available courses")
	}
	return courses, nil
}

// Get returns a course with its live enrollment count.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return detail, nil
}

// CurrentEnrollmentCount returns the live number of enrollments in a course.
func (s *CourseService) CurrentEnrollmentCount(ctx context.Context, id string) (int, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", id)
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	count, err := s.enrollments.CountByCourse(ctx, id)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	return count, nil
}

// IsFull reports whether a course reached its capacity, from a live count.
func (s *CourseService) IsFull(ctx context.Context, id string) (bool, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", id)
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	count, err := s.enrollments.CountByCourse(ctx, id)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	return count >= course.MaxStudents, nil
}

// Create validates and persists a new course. Credits default to 3 and
// capacity to 30 when omitted.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	credits := defaultCredits
	if req.Credits != nil {
		credits = *req.Credits
	}
	maxStudents := defaultMaxStudents
	if req.MaxStudents != nil {
		maxStudents = *req.MaxStudents
	}

	taken, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if taken {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "course code '%s' already exists", req.Code)
	}

	if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "department %s not found", req.DepartmentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if req.TeacherID != nil {
		if _, err := s.teachers.FindByID(ctx, *req.TeacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clonef(appErrors.ErrNotFound, "teacher %s not found", *req.TeacherID)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
	}

	course := &models.Course{
		Code:         req.Code,
		Name:         req.Name,
		Description:  req.Description,
		Credits:      credits,
		MaxStudents:  maxStudents,
		DepartmentID: req.DepartmentID,
		TeacherID:    req.TeacherID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "course code '%s' already exists", req.Code)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("id", course.ID), zap.String("code", course.Code))
	return s.Get(ctx, course.ID)
}

// Update validates and rewrites an existing course. Capacity can never shrink
// below the live enrollment count.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	taken, err := s.repo.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if taken {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "course code '%s' already exists", req.Code)
	}

	current, err := s.enrollments.CountByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if req.MaxStudents < current {
		return nil, appErrors.Clonef(appErrors.ErrConflict,
			"cannot reduce capacity to %d: %d student(s) are already enrolled", req.MaxStudents, current)
	}

	if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "department %s not found", req.DepartmentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if req.TeacherID != nil {
		if _, err := s.teachers.FindByID(ctx, *req.TeacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clonef(appErrors.ErrNotFound, "teacher %s not found", *req.TeacherID)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
	}

	course.Code = req.Code
	course.Name = req.Name
	course.Description = req.Description
	course.Credits = req.Credits
	course.MaxStudents = req.MaxStudents
	course.DepartmentID = req.DepartmentID
	course.TeacherID = req.TeacherID
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return s.Get(ctx, id)
}

// Delete removes a course unless it has live or completed participation.
// DROPPED/FAILED enrollments are purged inside the delete transaction.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", id)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := s.repo.DeleteWithPurge(ctx, id); err != nil {
		if errors.Is(err, repository.ErrBlockedEnrollments) {
			active, countErr := s.enrollments.CountByCourseAndStatus(ctx, id, models.EnrollmentStatusActive)
			if countErr != nil {
				active = 0
			}
			completed, countErr := s.enrollments.CountByCourseAndStatus(ctx, id, models.EnrollmentStatusCompleted)
			if countErr != nil {
				completed = 0
			}
			return appErrors.Clonef(appErrors.ErrConflict,
				"cannot delete course '%s' (%s): %d active and %d completed enrollment(s) exist, unenroll active students first",
				course.Name, course.Code, active, completed)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.logger.Info("course deleted", zap.String("id", id), zap.String("code", course.Code))
	return nil
}
