package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. ACTIVE is the only initial state; the other
// three are reached through grading or dropping.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
	EnrollmentStatusFailed    EnrollmentStatus = "FAILED"
)

// Valid reports whether s is one of the defined statuses.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDropped, EnrollmentStatusFailed:
		return true
	}
	return false
}

// PassingGrade is the threshold deciding COMPLETED vs FAILED on a 0-20 scale.
const PassingGrade = 10.0

// Enrollment is the join record between a student and a course. The
// (student_id, course_id) pair is unique.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	CourseID       string           `db:"course_id" json:"course_id"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	Grade          *float64         `db:"grade" json:"grade,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseName  string `db:"course_name" json:"course_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
}
