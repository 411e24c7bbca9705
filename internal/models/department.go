package models

import "time"

// Department represents an academic track (filière) owning students and courses.
type Department struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentStats carries live dependent counts for a department.
type DepartmentStats struct {
	DepartmentID string `json:"department_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	StudentCount int    `json:"student_count"`
	CourseCount  int    `json:"course_count"`
	TeacherCount int    `json:"teacher_count"`
}
