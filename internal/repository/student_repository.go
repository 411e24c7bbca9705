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

// StudentRepository handles persistence of students and their owned dossier.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, first_name, last_name, email, phone, date_of_birth,
        enrollment_date, department_id, user_id, created_at, updated_at`

const studentDetailQuery = `SELECT s.id, s.first_name, s.last_name, s.email, s.phone, s.date_of_birth,
        s.enrollment_date, s.department_id, s.user_id, s.created_at, s.updated_at,
        d.code AS department_code, d.name AS department_name,
        da.numero_inscription, da.date_creation AS dossier_date_creation
        FROM students s
        JOIN departments d ON d.id = s.department_id
        LEFT JOIN dossiers_administratifs da ON da.student_id = s.id`

// List returns all students with department and dossier context.
func (r *StudentRepository) List(ctx context.Context) ([]models.StudentDetail, error) {
	query := studentDetailQuery + ` ORDER BY s.last_name, s.first_name`
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// ListPage returns one page of students ordered by name.
func (r *StudentRepository) ListPage(ctx context.Context, limit, offset int) ([]models.StudentDetail, error) {
	query := studentDetailQuery + ` ORDER BY s.last_name, s.first_name LIMIT $1 OFFSET $2`
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list students page: %w", err)
	}
	return students, nil
}

// Count returns the total number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students`); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// ListByDepartment returns the students referencing a department.
func (r *StudentRepository) ListByDepartment(ctx context.Context, departmentID string) ([]models.StudentDetail, error) {
	query := studentDetailQuery + ` WHERE s.department_id = $1 ORDER BY s.last_name, s.first_name`
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, departmentID); err != nil {
		return nil, fmt.Errorf("list students by department: %w", err)
	}
	return students, nil
}

// FindByID returns a student row by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindDetailByID returns a student with department and dossier context.
func (r *StudentRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := studentDetailQuery + ` WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByEmail returns a student by its unique email.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE email = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, email); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID returns the student linked to a user account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE user_id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// CountByDepartment returns the live number of students in a department.
func (r *StudentRepository) CountByDepartment(ctx context.Context, departmentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE department_id = $1`, departmentID); err != nil {
		return 0, fmt.Errorf("count students by department: %w", err)
	}
	return count, nil
}

// ExistsByID reports whether a student row exists.
func (r *StudentRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("check student exists: %w", err)
	}
	return exists, nil
}

// CreateWithDossier inserts the student and its administrative dossier in one
// transaction so the dossier is issued atomically with the student.
func (r *StudentRepository) CreateWithDossier(ctx context.Context, student *models.Student, dossier *models.DossierAdministratif) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertStudent = `INSERT INTO students (id, first_name, last_name, email, phone, date_of_birth,
        enrollment_date, department_id, user_id, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :email, :phone, :date_of_birth,
        :enrollment_date, :department_id, :user_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertStudent, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	if dossier.ID == "" {
		dossier.ID = uuid.NewString()
	}
	dossier.StudentID = student.ID
	dossier.CreatedAt = now
	dossier.UpdatedAt = now
	const insertDossier = `INSERT INTO dossiers_administratifs (id, numero_inscription, date_creation,
        student_id, created_at, updated_at)
        VALUES (:id, :numero_inscription, :date_creation, :student_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertDossier, dossier); err != nil {
		return fmt.Errorf("create dossier: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name, email = :email,
        phone = :phone, date_of_birth = :date_of_birth, enrollment_date = :enrollment_date,
        department_id = :department_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// DeleteCascade removes a student and every dependent record in one
// transaction, in strict order: enrollments, dossier, user link, student row.
// The final existence check guards against a silent failed delete.
func (r *StudentRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE student_id = $1`, id); err != nil {
		return fmt.Errorf("delete student enrollments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dossiers_administratifs WHERE student_id = $1`, id); err != nil {
		return fmt.Errorf("delete student dossier: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET student_id = NULL, updated_at = $2 WHERE student_id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear user link: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, id); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("verify student delete: %w", err)
	}
	if exists {
		return ErrRowSurvivedDelete
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete student: %w", err)
	}
	return nil
}
