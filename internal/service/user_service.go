package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/internal/repository"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

type userStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type userTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// RegisterUserRequest is the account creation payload. A STUDENT account may
// link a student record and a TEACHER account a teacher record.
type RegisterUserRequest struct {
	Username  string          `json:"username" validate:"required,min=3"`
	Email     string          `json:"email" validate:"required,email"`
	Password  string          `json:"password" validate:"required,min=6"`
	Role      models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	StudentID *string         `json:"student_id"`
	TeacherID *string         `json:"teacher_id"`
}

// UpdateUserRequest rewrites the mutable account fields. Password changes go
// through the auth flow, record links are fixed at registration.
type UpdateUserRequest struct {
	Username string          `json:"username" validate:"required,min=3"`
	Email    string          `json:"email" validate:"required,email"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
}

// UserService handles account management workflows.
type UserService struct {
	repo      userRepository
	students  userStudentReader
	teachers  userTeacherReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, students userStudentReader, teachers userTeacherReader, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, students: students, teachers: teachers, validator: validate, logger: logger}
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, nil
}

// Get returns an account by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "user %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Register creates a new account. Record links are validated against the
// role: only STUDENT accounts link students, only TEACHER accounts teachers.
func (s *UserService) Register(ctx context.Context, req RegisterUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register payload")
	}

	if req.StudentID != nil && req.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only STUDENT accounts can link a student record")
	}
	if req.TeacherID != nil && req.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only TEACHER accounts can link a teacher record")
	}

	if taken, err := s.repo.ExistsByUsername(ctx, req.Username, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	} else if taken {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "username '%s' already exists", req.Username)
	}
	if taken, err := s.repo.ExistsByEmail(ctx, req.Email, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check user email")
	} else if taken {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "email '%s' is already in use", req.Email)
	}

	if req.StudentID != nil {
		if _, err := s.students.FindByID(ctx, *req.StudentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", *req.StudentID)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
	}
	if req.TeacherID != nil {
		if _, err := s.teachers.FindByID(ctx, *req.TeacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clonef(appErrors.ErrNotFound, "teacher %s not found", *req.TeacherID)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		Role:         req.Role,
		Enabled:      true,
		StudentID:    req.StudentID,
		TeacherID:    req.TeacherID,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "username '%s' already exists", req.Username)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.logger.Info("user registered",
		zap.String("id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))
	return user, nil
}

// Update rewrites username, email, and role of an account.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.StudentID != nil && req.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "account is linked to a student record and must keep the STUDENT role")
	}
	if user.TeacherID != nil && req.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "account is linked to a teacher record and must keep the TEACHER role")
	}

	if taken, err := s.repo.ExistsByUsername(ctx, req.Username, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	} else if taken {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "username '%s' already exists", req.Username)
	}
	if taken, err := s.repo.ExistsByEmail(ctx, req.Email, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check user email")
	} else if taken {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "email '%s' is already in use", req.Email)
	}

	user.Username = req.Username
	user.Email = strings.ToLower(req.Email)
	user.Role = req.Role
	if err := s.repo.Update(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "username '%s' already exists", req.Username)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// SetEnabled enables or disables an account.
func (s *UserService) SetEnabled(ctx context.Context, id string, enabled bool) (*models.User, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.SetEnabled(ctx, id, enabled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	s.logger.Info("user enabled flag changed", zap.String("id", id), zap.Bool("enabled", enabled))
	return s.Get(ctx, id)
}
