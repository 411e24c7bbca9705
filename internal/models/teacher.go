package models

import "time"

// Teacher represents a member of the teaching staff.
type Teacher struct {
	ID             string     `db:"id" json:"id"`
	EmployeeNumber string     `db:"employee_number" json:"employee_number"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	Email          string     `db:"email" json:"email"`
	Phone          string     `db:"phone" json:"phone,omitempty"`
	Specialization string     `db:"specialization" json:"specialization,omitempty"`
	HireDate       *time.Time `db:"hire_date" json:"hire_date,omitempty"`
	DepartmentID   *string    `db:"department_id" json:"department_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display.
func (t Teacher) FullName() string {
	return t.FirstName + " " + t.LastName
}
