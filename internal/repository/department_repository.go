package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
)

// DepartmentRepository handles persistence of departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

const departmentColumns = `id, code, name, description, created_at, updated_at`

// List returns all departments ordered by code.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments ORDER BY code`, departmentColumns)
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindByID returns a department by its ID.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments WHERE id = $1`, departmentColumns)
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// FindByCode returns a department by its unique code.
func (r *DepartmentRepository) FindByCode(ctx context.Context, code string) (*models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments WHERE code = $1`, departmentColumns)
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, code); err != nil {
		return nil, err
	}
	return &department, nil
}

// FindByName returns a department by its unique name.
func (r *DepartmentRepository) FindByName(ctx context.Context, name string) (*models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments WHERE name = $1`, departmentColumns)
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, name); err != nil {
		return nil, err
	}
	return &department, nil
}

// Create persists a new department.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	department.CreatedAt = now
	department.UpdatedAt = now
	const query = `INSERT INTO departments (id, code, name, description, created_at, updated_at)
        VALUES (:id, :code, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a department.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET code = :code, name = :name, description = :description,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

// Delete removes a department row. Dependent checks happen in the service
// against live counts before this is called.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	return nil
}
