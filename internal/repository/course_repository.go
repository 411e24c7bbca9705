package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
)

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, code, name, description, credits, max_students,
        department_id, teacher_id, created_at, updated_at`

const courseDetailQuery = `SELECT c.id, c.code, c.name, c.description, c.credits, c.max_students,
        c.department_id, c.teacher_id, c.created_at, c.updated_at,
        d.code AS department_code, d.name AS department_name,
        t.first_name || ' ' || t.last_name AS teacher_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrollment_count
        FROM courses c
        JOIN departments d ON d.id = c.department_id
        LEFT JOIN teachers t ON t.id = c.teacher_id`

// List returns all courses with live enrollment counts.
func (r *CourseRepository) List(ctx context.Context) ([]models.CourseDetail, error) {
	query := courseDetailQuery + ` ORDER BY c.code`
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListByDepartment returns the courses offered by a department.
func (r *CourseRepository) ListByDepartment(ctx context.Context, departmentID string) ([]models.CourseDetail, error) {
	query := courseDetailQuery + ` WHERE c.department_id = $1 ORDER BY c.code`
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, departmentID); err != nil {
		return nil, fmt.Errorf("list courses by department: %w", err)
	}
	return courses, nil
}

// ListAvailableForStudent returns courses of the student's department that
// still have capacity and that the student is not already enrolled in.
func (r *CourseRepository) ListAvailableForStudent(ctx context.Context, studentID, departmentID string) ([]models.CourseDetail, error) {
	query := courseDetailQuery + ` WHERE c.department_id = $2
        AND NOT EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = $1)
        AND (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) < c.max_students
        ORDER BY c.code`
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, studentID, departmentID); err != nil {
		return nil, fmt.Errorf("list available courses: %w", err)
	}
	return courses, nil
}

// FindByID returns a course row by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindDetailByID returns a course with context and a live enrollment count.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	query := courseDetailQuery + ` WHERE c.id = $1`
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByCode reports whether a course code is taken, optionally excluding a row.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM courses WHERE code = $1 AND id <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, code, excludeID); err != nil {
		return false, fmt.Errorf("check course code: %w", err)
	}
	return exists, nil
}

// CountByDepartment returns the live number of courses in a department.
func (r *CourseRepository) CountByDepartment(ctx context.Context, departmentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses WHERE department_id = $1`, departmentID); err != nil {
		return 0, fmt.Errorf("count courses by department: %w", err)
	}
	return count, nil
}

// CountByTeacher returns the live number of courses taught by a teacher.
func (r *CourseRepository) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses WHERE teacher_id = $1`, teacherID); err != nil {
		return 0, fmt.Errorf("count courses by teacher: %w", err)
	}
	return count, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, name, description, credits, max_students,
        department_id, teacher_id, created_at, updated_at)
        VALUES (:id, :code, :name, :description, :credits, :max_students,
        :department_id, :teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, name = :name, description = :description,
        credits = :credits, max_students = :max_students, department_id = :department_id,
        teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// DeleteWithPurge removes a course in one transaction. The course row is
// locked first so no enrollment can slip in concurrently; ACTIVE or COMPLETED
// enrollments abort the delete, DROPPED/FAILED ones are purged before the
// course row goes.
func (r *CourseRepository) DeleteWithPurge(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete course: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var locked int
	if err := tx.GetContext(ctx, &locked, `SELECT 1 FROM courses WHERE id = $1 FOR UPDATE`, id); err != nil {
		return fmt.Errorf("lock course: %w", err)
	}

	var blocking int
	const countBlocking = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status IN ($2, $3)`
	if err := tx.GetContext(ctx, &blocking, countBlocking, id, models.EnrollmentStatusActive, models.EnrollmentStatusCompleted); err != nil {
		return fmt.Errorf("count blocking enrollments: %w", err)
	}
	if blocking > 0 {
		return ErrBlockedEnrollments
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE course_id = $1`, id); err != nil {
		return fmt.Errorf("purge course enrollments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete course: %w", err)
	}
	return nil
}
