package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, course_id, enrollment_date, status, grade, created_at, updated_at`

const enrollmentDetailQuery = `SELECT e.id, e.student_id, e.course_id, e.enrollment_date, e.status, e.grade,
        e.created_at, e.updated_at,
        s.first_name || ' ' || s.last_name AS student_name,
        c.name AS course_name, c.code AS course_code
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id`

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and course context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailQuery + ` WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByStudentAndCourse reports whether the unique pair already holds a record.
func (r *EnrollmentRepository) ExistsByStudentAndCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		return false, fmt.Errorf("check enrollment pair: %w", err)
	}
	return exists, nil
}

// CountByCourse returns the live enrollment count for a course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// CountByCourseAndStatus returns the live count restricted to one status.
func (r *EnrollmentRepository) CountByCourseAndStatus(ctx context.Context, courseID string, status models.EnrollmentStatus) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &count, query, courseID, status); err != nil {
		return 0, fmt.Errorf("count enrollments by status: %w", err)
	}
	return count, nil
}

// ListByStudent returns every enrollment of a student.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailQuery + ` WHERE e.student_id = $1 ORDER BY e.enrollment_date DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByStudentAndStatus filters a student's enrollments by status.
func (r *EnrollmentRepository) ListByStudentAndStatus(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailQuery + ` WHERE e.student_id = $1 AND e.status = $2 ORDER BY e.enrollment_date DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, status); err != nil {
		return nil, fmt.Errorf("list student enrollments by status: %w", err)
	}
	return enrollments, nil
}

// ListByCourse returns every enrollment in a course.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailQuery + ` WHERE e.course_id = $1 ORDER BY s.last_name, s.first_name`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}

// CreateWithCapacityCheck inserts an enrollment inside a transaction that
// locks the course row and re-counts before writing, so the capacity check is
// validated against the committed state. Racing duplicates resolve at the
// (student_id, course_id) unique index and surface as ErrDuplicate.
func (r *EnrollmentRepository) CreateWithCapacityCheck(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var maxStudents int
	if err := tx.GetContext(ctx, &maxStudents, `SELECT max_students FROM courses WHERE id = $1 FOR UPDATE`, enrollment.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock course: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`, enrollment.CourseID); err != nil {
		return fmt.Errorf("count enrollments: %w", err)
	}
	if count >= maxStudents {
		return ErrCourseFull
	}

	const insert = `INSERT INTO enrollments (id, student_id, course_id, enrollment_date, status, grade, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :enrollment_date, :status, :grade, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// UpdateStatus rewrites the status of an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// UpdateGrade sets grade and the status derived from it in one write.
func (r *EnrollmentRepository) UpdateGrade(ctx context.Context, id string, grade float64, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET grade = $2, status = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, grade, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment grade: %w", err)
	}
	return nil
}
