package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
)

// UserRepository handles persistence of user accounts and refresh tokens.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, role, enabled,
        student_id, teacher_id, created_at, updated_at`

// List returns all user accounts.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY username`, userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// FindByID returns a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername returns a user by its unique username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByUsername reports whether a username is taken, optionally excluding a row.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, username, excludeID); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// ExistsByEmail reports whether a user email is taken, optionally excluding a row.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

// Create persists a new user account. A linked student row gets its user_id
// back-reference set in the same transaction, so the link is visible from
// both sides or not at all.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO users (id, username, email, password_hash, role, enabled,
        student_id, teacher_id, created_at, updated_at)
        VALUES (:id, :username, :email, :password_hash, :role, :enabled,
        :student_id, :teacher_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	if user.StudentID != nil {
		const link = `UPDATE students SET user_id = $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, link, *user.StudentID, user.ID, now); err != nil {
			return fmt.Errorf("link student account: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a user account.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET username = :username, email = :email, role = :role,
        enabled = :enabled, student_id = :student_id, teacher_id = :teacher_id,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// SetEnabled flips the enabled flag.
func (r *UserRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	const query = `UPDATE users SET enabled = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, enabled, time.Now().UTC()); err != nil {
		return fmt.Errorf("set user enabled: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked)
        VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by value.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked FROM refresh_tokens WHERE token = $1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		return nil, err
	}
	return &rt, nil
}

// RevokeRefreshToken revokes a single refresh token by ID.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeRefreshTokens revokes every refresh token of a user.
func (r *UserRepository) RevokeRefreshTokens(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}
