package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/internal/repository"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

// unknownDepartmentCode is the sentinel used in a dossier number when the
// department row cannot be resolved at issue time.
const unknownDepartmentCode = "UNKNOWN"

var (
	phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{1,4}[)]?[-\s./0-9]*$`)
	digitPattern = regexp.MustCompile(`[0-9]`)
)

type studentRepository interface {
	List(ctx context.Context) ([]models.StudentDetail, error)
	ListPage(ctx context.Context, limit, offset int) ([]models.StudentDetail, error)
	Count(ctx context.Context) (int, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]models.StudentDetail, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	CreateWithDossier(ctx context.Context, student *models.Student, dossier *models.DossierAdministratif) error
	Update(ctx context.Context, student *models.Student) error
	DeleteCascade(ctx context.Context, id string) error
}

type studentDepartmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

// CreateStudentRequest describes student creation payload.
type CreateStudentRequest struct {
	FirstName      string     `json:"first_name" validate:"required"`
	LastName       string     `json:"last_name" validate:"required"`
	Email          string     `json:"email" validate:"required,email"`
	Phone          string     `json:"phone"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	EnrollmentDate *time.Time `json:"enrollment_date"`
	DepartmentID   string     `json:"department_id" validate:"required"`
}

// UpdateStudentRequest describes student update payload.
type UpdateStudentRequest struct {
	FirstName    string     `json:"first_name" validate:"required"`
	LastName     string     `json:"last_name" validate:"required"`
	Email        string     `json:"email" validate:"required,email"`
	Phone        string     `json:"phone"`
	DateOfBirth  *time.Time `json:"date_of_birth"`
	DepartmentID string     `json:"department_id" validate:"required"`
}

// StudentService coordinates student lifecycle, the auto-issued dossier, and
// the ordered deletion cascade.
type StudentService struct {
	repo        studentRepository
	departments studentDepartmentReader
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, departments studentDepartmentReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, departments: departments, validator: validate, logger: logger, now: time.Now}
}

// List returns every student with department and dossier context.
func (s *StudentService) List(ctx context.Context) ([]models.StudentDetail, error) {
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// ListPage returns one page of students plus pagination metadata.
func (s *StudentService) ListPage(ctx context.Context, page, pageSize int) ([]models.StudentDetail, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	students, err := s.repo.ListPage(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListByDepartment returns the students of a department.
func (s *StudentService) ListByDepartment(ctx context.Context, departmentID string) ([]models.StudentDetail, error) {
	students, err := s.repo.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Get returns a student with context.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// GetByUser returns the student linked to a user account.
func (s *StudentService) GetByUser(ctx context.Context, userID string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "no student linked to user %s", userID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.Get(ctx, student.ID)
}

// Create validates and persists a new student. Its administrative dossier is
// issued in the same transaction, numbered {departmentCode}-{year}-{studentId}.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if err := s.checkPhone(req.Phone); err != nil {
		return nil, err
	}
	if err := s.checkEmailUnique(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	departmentCode := unknownDepartmentCode
	department, err := s.departments.FindByID(ctx, req.DepartmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "department %s not found", req.DepartmentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if department.Code != "" {
		departmentCode = department.Code
	}

	now := s.now().UTC()
	enrollmentDate := now
	if req.EnrollmentDate != nil {
		enrollmentDate = *req.EnrollmentDate
	}

	student := &models.Student{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		DateOfBirth:    req.DateOfBirth,
		EnrollmentDate: enrollmentDate,
		DepartmentID:   req.DepartmentID,
	}
	dossier := &models.DossierAdministratif{DateCreation: now}

	// The repository assigns the student ID before the dossier insert, so the
	// number has to be derived through a callback on the final ID.
	if err := s.createWithNumberedDossier(ctx, student, dossier, departmentCode, now.Year()); err != nil {
		return nil, err
	}

	s.logger.Info("student created",
		zap.String("id", student.ID),
		zap.String("numero_inscription", dossier.NumeroInscription))
	return s.Get(ctx, student.ID)
}

func (s *StudentService) createWithNumberedDossier(ctx context.Context, student *models.Student, dossier *models.DossierAdministratif, departmentCode string, year int) error {
	if student.ID == "" {
		// Assign here so the dossier number can reference the final ID while
		// both rows still commit in one transaction.
		student.ID = newID()
	}
	dossier.NumeroInscription = models.NumeroInscription(departmentCode, year, student.ID)
	if err := s.repo.CreateWithDossier(ctx, student, dossier); err != nil {
		if repository.IsUniqueViolation(err) {
			return appErrors.Clonef(appErrors.ErrConflict, "email '%s' is already in use", student.Email)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return nil
}

// Update validates and rewrites an existing student. A department change only
// reassigns the reference; the dossier keeps its original number.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if err := s.checkPhone(req.Phone); err != nil {
		return nil, err
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.checkEmailUnique(ctx, req.Email, id); err != nil {
		return nil, err
	}
	if req.DepartmentID != student.DepartmentID {
		if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clonef(appErrors.ErrNotFound, "department %s not found", req.DepartmentID)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
	}

	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Email = req.Email
	student.Phone = req.Phone
	student.DateOfBirth = req.DateOfBirth
	student.DepartmentID = req.DepartmentID
	if err := s.repo.Update(ctx, student); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "email '%s' is already in use", req.Email)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return s.Get(ctx, id)
}

// Delete removes a student through the ordered cascade: enrollments, dossier,
// user link, then the student row. A student row surviving its delete is a
// fatal consistency failure, not a recoverable error.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", id)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, repository.ErrRowSurvivedDelete) {
			s.logger.Error("student still exists after delete", zap.String("id", id))
			return appErrors.Clonef(appErrors.ErrConsistency, "student %s still exists after delete", id)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	s.logger.Info("student deleted", zap.String("id", id), zap.String("name", student.FullName()))
	return nil
}

func (s *StudentService) checkPhone(phone string) error {
	if phone == "" {
		return nil
	}
	digits := len(digitPattern.FindAllString(phone, -1))
	if !phonePattern.MatchString(phone) || digits < 8 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid phone number format")
	}
	return nil
}

func (s *StudentService) checkEmailUnique(ctx context.Context, email, excludeID string) error {
	existing, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student email")
	}
	if existing.ID != excludeID {
		return appErrors.Clonef(appErrors.ErrConflict, "email '%s' is already in use", email)
	}
	return nil
}
