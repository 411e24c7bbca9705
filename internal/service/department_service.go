package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/internal/repository"
	"github.com/MaryemElyazghi/School-Management-System/pkg/cache"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

// departmentCodePattern admits alphanumeric codes only (GINF, GSTR, ...).
var departmentCodePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

type departmentRepository interface {
	List(ctx context.Context) ([]models.Department, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	FindByCode(ctx context.Context, code string) (*models.Department, error)
	FindByName(ctx context.Context, name string) (*models.Department, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id string) error
}

type departmentStudentCounter interface {
	CountByDepartment(ctx context.Context, departmentID string) (int, error)
}

type departmentCourseCounter interface {
	CountByDepartment(ctx context.Context, departmentID string) (int, error)
}

type departmentTeacherCounter interface {
	CountByDepartment(ctx context.Context, departmentID string) (int, error)
}

// CreateDepartmentRequest describes department creation payload.
type CreateDepartmentRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// UpdateDepartmentRequest describes department update payload.
type UpdateDepartmentRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// DepartmentService enforces uniqueness and deletion-safety rules for
// departments (filières).
type DepartmentService struct {
	repo      departmentRepository
	students  departmentStudentCounter
	courses   departmentCourseCounter
	teachers  departmentTeacherCounter
	stats     *cache.Store
	statsTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs DepartmentService.
func NewDepartmentService(repo departmentRepository, students departmentStudentCounter, courses departmentCourseCounter, teachers departmentTeacherCounter, stats *cache.Store, statsTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, students: students, courses: courses, teachers: teachers, stats: stats, statsTTL: statsTTL, validator: validate, logger: logger}
}

// List returns every department.
func (s *DepartmentService) List(ctx context.Context) ([]models.Department, error) {
	departments, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// Get returns a department by ID.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "department %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return department, nil
}

// Create validates and persists a new department.
func (s *DepartmentService) Create(ctx context.Context, req CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	if err := s.checkCodeFormat(req.Code); err != nil {
		return nil, err
	}
	if err := s.checkUniqueness(ctx, req.Code, req.Name, ""); err != nil {
		return nil, err
	}

	department := &models.Department{Code: req.Code, Name: req.Name, Description: req.Description}
	if err := s.repo.Create(ctx, department); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "department code '%s' already exists", req.Code)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	s.logger.Info("department created", zap.String("id", department.ID), zap.String("code", department.Code))
	return department, nil
}

// Update validates and rewrites an existing department.
func (s *DepartmentService) Update(ctx context.Context, id string, req UpdateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "department %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if err := s.checkCodeFormat(req.Code); err != nil {
		return nil, err
	}
	if err := s.checkUniqueness(ctx, req.Code, req.Name, id); err != nil {
		return nil, err
	}

	department.Code = req.Code
	department.Name = req.Name
	department.Description = req.Description
	if err := s.repo.Update(ctx, department); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "department code '%s' already exists", req.Code)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	s.invalidateStats(ctx, id)
	return department, nil
}

// Delete removes a department only when no student, course, or teacher still
// references it. Each check runs against a live count.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clonef(appErrors.ErrNotFound, "department %s not found", id)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	studentCount, err := s.students.CountByDepartment(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if studentCount > 0 {
		return appErrors.Clonef(appErrors.ErrConflict,
			"cannot delete department '%s': it has %d student(s), transfer or delete them first", department.Name, studentCount)
	}

	courseCount, err := s.courses.CountByDepartment(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	if courseCount > 0 {
		return appErrors.Clonef(appErrors.ErrConflict,
			"cannot delete department '%s': it has %d course(s), delete them first", department.Name, courseCount)
	}

	teacherCount, err := s.teachers.CountByDepartment(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	if teacherCount > 0 {
		return appErrors.Clonef(appErrors.ErrConflict,
			"cannot delete department '%s': %d teacher(s) are assigned to it, reassign them first", department.Name, teacherCount)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete department")
	}
	s.invalidateStats(ctx, id)
	s.logger.Info("department deleted", zap.String("id", id), zap.String("code", department.Code))
	return nil
}

// Stats returns live dependent counts for a department, cached briefly.
// Cached values feed dashboards only; deletion checks always recount.
func (s *DepartmentService) Stats(ctx context.Context, id string) (*models.DepartmentStats, error) {
	key := statsCacheKey(id)
	var cached models.DepartmentStats
	if hit, err := s.stats.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("stats cache read failed", zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	department, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	studentCount, err := s.students.CountByDepartment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	courseCount, err := s.courses.CountByDepartment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	teacherCount, err := s.teachers.CountByDepartment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}

	stats := &models.DepartmentStats{
		DepartmentID: department.ID,
		Code:         department.Code,
		Name:         department.Name,
		StudentCount: studentCount,
		CourseCount:  courseCount,
		TeacherCount: teacherCount,
	}
	if err := s.stats.Set(ctx, key, stats, s.statsTTL); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
	}
	return stats, nil
}

func (s *DepartmentService) checkCodeFormat(code string) error {
	if !departmentCodePattern.MatchString(strings.TrimSpace(code)) {
		return appErrors.Clone(appErrors.ErrValidation,
			"department code must be alphanumeric only (A-Z, 0-9), no spaces, dashes or underscores")
	}
	return nil
}

func (s *DepartmentService) checkUniqueness(ctx context.Context, code, name, excludeID string) error {
	if existing, err := s.repo.FindByCode(ctx, code); err == nil {
		if existing.ID != excludeID {
			return appErrors.Clonef(appErrors.ErrConflict, "department code '%s' already exists", code)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department code")
	}

	if existing, err := s.repo.FindByName(ctx, name); err == nil {
		if existing.ID != excludeID {
			return appErrors.Clonef(appErrors.ErrConflict, "a department named '%s' already exists", name)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department name")
	}
	return nil
}

func (s *DepartmentService) invalidateStats(ctx context.Context, id string) {
	if err := s.stats.Invalidate(ctx, statsCacheKey(id)); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func statsCacheKey(id string) string {
	return fmt.Sprintf("department:stats:%s", id)
}
