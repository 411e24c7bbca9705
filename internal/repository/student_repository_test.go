package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
)

func newStudentRepoMock(t *testing.T) (*StudentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	repo := NewStudentRepository(sqlx.NewDb(db, "sqlmock"))
	return repo, mock, func() { db.Close() }
}

func TestStudentRepositoryCreateWithDossier(t *testing.T) {
	repo, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dossiers_administratifs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	student := &models.Student{
		FirstName:      "Amina",
		LastName:       "El Fassi",
		Email:          "amina@example.com",
		EnrollmentDate: time.Now().UTC(),
		DepartmentID:   "d1",
	}
	dossier := &models.DossierAdministratif{NumeroInscription: "GINF-2025-s1", DateCreation: time.Now().UTC()}
	err := repo.CreateWithDossier(context.Background(), student, dossier)
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, student.ID, dossier.StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteCascadeOrder(t *testing.T) {
	repo, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	// Ordered expectations: enrollments, dossier, user link, student row,
	// then the existence check.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM enrollments WHERE student_id = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM dossiers_administratifs WHERE student_id = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET student_id = NULL, updated_at = $2 WHERE student_id = $1`)).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM students WHERE id = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`)).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteCascade(context.Background(), "s1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteCascadeSurvivingRow(t *testing.T) {
	repo, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM enrollments WHERE student_id = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM dossiers_administratifs WHERE student_id = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET student_id = NULL, updated_at = $2 WHERE student_id = $1`)).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM students WHERE id = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`)).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.DeleteCascade(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrRowSurvivedDelete)
	require.NoError(t, mock.ExpectationsWereMet())
}
