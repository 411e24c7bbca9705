package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
)

// TeacherRepository handles persistence of teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

const teacherColumns = `id, employee_number, first_name, last_name, email, phone,
        specialization, hire_date, department_id, created_at, updated_at`

// List returns all teachers ordered by name.
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	query := fmt.Sprintf(`SELECT %s FROM teachers ORDER BY last_name, first_name`, teacherColumns)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// FindByID returns a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf(`SELECT %s FROM teachers WHERE id = $1`, teacherColumns)
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ExistsByEmployeeNumber reports whether an employee number is taken,
// optionally excluding a row.
func (r *TeacherRepository) ExistsByEmployeeNumber(ctx context.Context, employeeNumber, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM teachers WHERE employee_number = $1 AND id <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, employeeNumber, excludeID); err != nil {
		return false, fmt.Errorf("check employee number: %w", err)
	}
	return exists, nil
}

// ExistsByEmail reports whether a teacher email is taken, optionally excluding a row.
func (r *TeacherRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM teachers WHERE email = $1 AND id <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check teacher email: %w", err)
	}
	return exists, nil
}

// CountByDepartment returns the live number of teachers in a department.
func (r *TeacherRepository) CountByDepartment(ctx context.Context, departmentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM teachers WHERE department_id = $1`, departmentID); err != nil {
		return 0, fmt.Errorf("count teachers by department: %w", err)
	}
	return count, nil
}

// Create persists a new teacher.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	const query = `INSERT INTO teachers (id, employee_number, first_name, last_name, email, phone,
        specialization, hire_date, department_id, created_at, updated_at)
        VALUES (:id, :employee_number, :first_name, :last_name, :email, :phone,
        :specialization, :hire_date, :department_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a teacher.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET employee_number = :employee_number, first_name = :first_name,
        last_name = :last_name, email = :email, phone = :phone, specialization = :specialization,
        hire_date = :hire_date, department_id = :department_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// Delete removes a teacher row and clears the user link in one transaction.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete teacher: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE users SET teacher_id = NULL, updated_at = $2 WHERE teacher_id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear teacher user link: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete teacher: %w", err)
	}
	return nil
}
