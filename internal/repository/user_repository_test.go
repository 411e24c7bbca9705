package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
)

func newUserRepoMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	repo := NewUserRepository(sqlx.NewDb(db, "sqlmock"))
	return repo, mock, func() { db.Close() }
}

func TestUserRepositoryCreateLinksStudent(t *testing.T) {
	repo, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE students SET user_id = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("s1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	studentID := "s1"
	user := &models.User{
		ID:           "u1",
		Username:     "student1",
		Email:        "student1@example.com",
		PasswordHash: "hash",
		Role:         models.RoleStudent,
		Enabled:      true,
		StudentID:    &studentID,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateWithoutLink(t *testing.T) {
	repo, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user := &models.User{
		Username:     "admin1",
		Email:        "admin1@example.com",
		PasswordHash: "hash",
		Role:         models.RoleAdmin,
		Enabled:      true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
