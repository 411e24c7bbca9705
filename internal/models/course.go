package models

import "time"

// Course represents a teaching unit offered by a department.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description,omitempty"`
	Credits      int       `db:"credits" json:"credits"`
	MaxStudents  int       `db:"max_students" json:"max_students"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	TeacherID    *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with a live enrollment count. The count is
// always re-derived from the enrollment store, never cached on the row.
type CourseDetail struct {
	Course
	DepartmentCode  string  `db:"department_code" json:"department_code"`
	DepartmentName  string  `db:"department_name" json:"department_name"`
	TeacherName     *string `db:"teacher_name" json:"teacher_name,omitempty"`
	EnrollmentCount int     `db:"enrollment_count" json:"enrollment_count"`
}

// IsFull reports whether the course reached its capacity.
func (c CourseDetail) IsFull() bool {
	return c.EnrollmentCount >= c.MaxStudents
}
