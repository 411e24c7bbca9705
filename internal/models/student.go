package models

import "time"

// Student represents a learner registered in the institution. The department
// reference is mandatory; the user link is optional.
type Student struct {
	ID             string     `db:"id" json:"id"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	Email          string     `db:"email" json:"email"`
	Phone          string     `db:"phone" json:"phone,omitempty"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	EnrollmentDate time.Time  `db:"enrollment_date" json:"enrollment_date"`
	DepartmentID   string     `db:"department_id" json:"department_id"`
	UserID         *string    `db:"user_id" json:"user_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StudentDetail enriches Student with department and dossier context.
type StudentDetail struct {
	Student
	DepartmentCode     string     `db:"department_code" json:"department_code"`
	DepartmentName     string     `db:"department_name" json:"department_name"`
	NumeroInscription  *string    `db:"numero_inscription" json:"numero_inscription,omitempty"`
	DossierDateCreated *time.Time `db:"dossier_date_creation" json:"dossier_date_creation,omitempty"`
}
