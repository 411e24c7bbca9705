package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*EnrollmentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	repo := NewEnrollmentRepository(sqlx.NewDb(db, "sqlmock"))
	return repo, mock, func() { db.Close() }
}

func TestEnrollmentRepositoryCreateWithCapacityCheck(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT max_students FROM courses WHERE id = $1 FOR UPDATE`)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"max_students"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM enrollments WHERE course_id = $1`)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{StudentID: "s1", CourseID: "c1"}
	err := repo.CreateWithCapacityCheck(context.Background(), enrollment)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateCourseFull(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT max_students FROM courses WHERE id = $1 FOR UPDATE`)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"max_students"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM enrollments WHERE course_id = $1`)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))
	mock.ExpectRollback()

	err := repo.CreateWithCapacityCheck(context.Background(), &models.Enrollment{StudentID: "s1", CourseID: "c1"})
	assert.ErrorIs(t, err, ErrCourseFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateMissingCourse(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT max_students FROM courses WHERE id = $1 FOR UPDATE`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"max_students"}))
	mock.ExpectRollback()

	err := repo.CreateWithCapacityCheck(context.Background(), &models.Enrollment{StudentID: "s1", CourseID: "ghost"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateGrade(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET grade = $2, status = $3, updated_at = $4 WHERE id = $1`)).
		WithArgs("e1", 15.5, models.EnrollmentStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateGrade(context.Background(), "e1", 15.5, models.EnrollmentStatusCompleted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountByCourseAndStatus(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`)).
		WithArgs("c1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountByCourseAndStatus(context.Background(), "c1", models.EnrollmentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
