package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by transactional repository operations so services
// can map them to the right domain failure.
var (
	// ErrCourseFull is returned when an enrollment insert loses the capacity
	// race inside its transaction.
	ErrCourseFull = errors.New("course capacity reached")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate row")
	// ErrBlockedEnrollments is returned when a course delete finds ACTIVE or
	// COMPLETED enrollments inside its transaction.
	ErrBlockedEnrollments = errors.New("course has active or completed enrollments")
	// ErrRowSurvivedDelete is returned when a deleted row is still present at
	// the end of its transaction.
	ErrRowSurvivedDelete = errors.New("row still exists after delete")
)

const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return errors.Is(err, ErrDuplicate)
}
