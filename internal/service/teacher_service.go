package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/internal/repository"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context) ([]models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ExistsByEmployeeNumber(ctx context.Context, employeeNumber, excludeID string) (bool, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) error
}

type teacherDepartmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

type teacherCourseCounter interface {
	CountByTeacher(ctx context.Context, teacherID string) (int, error)
}

// CreateTeacherRequest describes teacher creation payload.
type CreateTeacherRequest struct {
	EmployeeNumber string     `json:"employee_number" validate:"required"`
	FirstName      string     `json:"first_name" validate:"required"`
	LastName       string     `json:"last_name" validate:"required"`
	Email          string     `json:"email" validate:"required,email"`
	Phone          string     `json:"phone"`
	Specialization string     `json:"specialization"`
	HireDate       *time.Time `json:"hire_date"`
	DepartmentID   *string    `json:"department_id"`
}

// UpdateTeacherRequest describes teacher update payload.
type UpdateTeacherRequest struct {
	EmployeeNumber string     `json:"employee_number" validate:"required"`
	FirstName      string     `json:"first_name" validate:"required"`
	LastName       string     `json:"last_name" validate:"required"`
	Email          string     `json:"email" validate:"required,email"`
	Phone          string     `json:"phone"`
	Specialization string     `json:"specialization"`
	HireDate       *time.Time `json:"hire_date"`
	DepartmentID   *string    `json:"department_id"`
}

// TeacherService manages teaching staff records.
type TeacherService struct {
	repo        teacherRepository
	departments teacherDepartmentReader
	courses     teacherCourseCounter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTeacherService constructs TeacherService.
func NewTeacherService(repo teacherRepository, departments teacherDepartmentReader, courses teacherCourseCounter, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, departments: departments, courses: courses, validator: validate, logger: logger}
}

// List returns every teacher.
func (s *TeacherService) List(ctx context.Context) ([]models.Teacher, error) {
	teachers, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}

// Get returns a teacher by ID.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "teacher %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create validates and persists a new teacher.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	if err := s.checkUniqueness(ctx, req.EmployeeNumber, req.Email, ""); err != nil {
		return nil, err
	}
	if err := s.checkDepartment(ctx, req.DepartmentID); err != nil {
		return nil, err
	}

	teacher := &models.Teacher{
		EmployeeNumber: req.EmployeeNumber,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		Specialization: req.Specialization,
		HireDate:       req.HireDate,
		DepartmentID:   req.DepartmentID,
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "employee number '%s' already exists", req.EmployeeNumber)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.logger.Info("teacher created", zap.String("id", teacher.ID), zap.String("employee_number", teacher.EmployeeNumber))
	return teacher, nil
}

// Update validates and rewrites an existing teacher.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkUniqueness(ctx, req.EmployeeNumber, req.Email, id); err != nil {
		return nil, err
	}
	if err := s.checkDepartment(ctx, req.DepartmentID); err != nil {
		return nil, err
	}

	teacher.EmployeeNumber = req.EmployeeNumber
	teacher.FirstName = req.FirstName
	teacher.LastName = req.LastName
	teacher.Email = req.Email
	teacher.Phone = req.Phone
	teacher.Specialization = req.Specialization
	teacher.HireDate = req.HireDate
	teacher.DepartmentID = req.DepartmentID
	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// Delete removes a teacher unless courses are still assigned to them.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	courseCount, err := s.courses.CountByTeacher(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	if courseCount > 0 {
		return appErrors.Clonef(appErrors.ErrConflict,
			"cannot delete teacher '%s': %d course(s) are assigned to them, reassign the courses first",
			teacher.FullName(), courseCount)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	s.logger.Info("teacher deleted", zap.String("id", id), zap.String("name", teacher.FullName()))
	return nil
}

func (s *TeacherService) checkUniqueness(ctx context.Context, employeeNumber, email, excludeID string) error {
	if taken, err := s.repo.ExistsByEmployeeNumber(ctx, employeeNumber, excludeID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check employee number")
	} else if taken {
		return appErrors.Clonef(appErrors.ErrConflict, "employee number '%s' already exists", employeeNumber)
	}
	if taken, err := s.repo.ExistsByEmail(ctx, email, excludeID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher email")
	} else if taken {
		return appErrors.Clonef(appErrors.ErrConflict, "email '%s' is already in use", email)
	}
	return nil
}

func (s *TeacherService) checkDepartment(ctx context.Context, departmentID *string) error {
	if departmentID == nil {
		return nil
	}
	if _, err := s.departments.FindByID(ctx, *departmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clonef(appErrors.ErrNotFound, "department %s not found", *departmentID)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return nil
}
