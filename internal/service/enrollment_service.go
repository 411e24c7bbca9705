package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/internal/repository"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsByStudentAndCourse(ctx context.Context, studentID, courseID string) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListByStudentAndStatus(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error)
	CreateWithCapacityCheck(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	UpdateGrade(ctx context.Context, id string, grade float64, status models.EnrollmentStatus) error
}

type enrollmentStudentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type enrollmentCourseReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

// EnrollmentService is the rule engine for enrollment eligibility, status
// transitions, and grading on the 0-20 scale.
type EnrollmentService struct {
	repo     enrollmentRepository
	students enrollmentStudentReader
	courses  enrollmentCourseReader
	logger   *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students enrollmentStudentReader, courses enrollmentCourseReader, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, logger: logger}
}

// Enroll registers a student into a course of their own department. The
// capacity check is re-validated inside the insert transaction against a
// locked course row, and the unique pair index backs the duplicate check, so
// racing callers serialize at the store.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID string) (*models.EnrollmentDetail, error) {
	student, err := s.students.FindDetailByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", studentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	course, err := s.courses.FindDetailByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", courseID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	// A student may only enroll in courses offered by their own department.
	if course.DepartmentID != student.DepartmentID {
		return nil, appErrors.Clonef(appErrors.ErrBusinessRule,
			"student from %s department cannot enroll in %s department course",
			student.DepartmentName, course.DepartmentName)
	}

	exists, err := s.repo.ExistsByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "student is already enrolled in this course")
	}
	if course.IsFull() {
		return nil, appErrors.Clonef(appErrors.ErrBusinessRule,
			"course %s is full (maximum %d students)", course.Name, course.MaxStudents)
	}

	enrollment := &models.Enrollment{StudentID: studentID, CourseID: courseID, Status: models.EnrollmentStatusActive}
	if err := s.repo.CreateWithCapacityCheck(ctx, enrollment); err != nil {
		switch {
		case errors.Is(err, repository.ErrCourseFull):
			return nil, appErrors.Clonef(appErrors.ErrBusinessRule,
				"course %s is full (maximum %d students)", course.Name, course.MaxStudents)
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrBusinessRule, "student is already enrolled in this course")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
	}

	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", studentID),
		zap.String("course_id", courseID))
	return s.detail(ctx, enrollment.ID)
}

// Drop abandons an enrollment. Only ACTIVE enrollments can be dropped; a
// completed or failed enrollment is a permanent academic record.
func (s *EnrollmentService) Drop(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.find(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clonef(appErrors.ErrBusinessRule,
			"cannot drop course: current status is %s, only ACTIVE enrollments can be dropped", enrollment.Status)
	}
	if err := s.repo.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusDropped); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	return s.detail(ctx, enrollmentID)
}

// AssignGrade performs one-shot initial grading. The status is derived from
// the grade: >= 10 completes the course, anything lower fails it. A grade
// already present on a graded enrollment must go through UpdateGrade.
func (s *EnrollmentService) AssignGrade(ctx context.Context, enrollmentID string, grade float64) (*models.EnrollmentDetail, error) {
	enrollment, err := s.find(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "cannot assign grade to a dropped enrollment")
	}
	if grade < 0 || grade > 20 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade must be between 0 and 20")
	}
	if enrollment.Grade != nil &&
		(enrollment.Status == models.EnrollmentStatusCompleted || enrollment.Status == models.EnrollmentStatusFailed) {
		return nil, appErrors.Clonef(appErrors.ErrBusinessRule,
			"grade already assigned (%.2f), use the grade update operation for corrections", *enrollment.Grade)
	}

	if err := s.repo.UpdateGrade(ctx, enrollmentID, grade, statusForGrade(grade)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign grade")
	}
	return s.detail(ctx, enrollmentID)
}

// UpdateGrade corrects an existing grade. A non-blank reason is mandatory and
// the status is re-derived with the same threshold as initial grading.
func (s *EnrollmentService) UpdateGrade(ctx context.Context, enrollmentID string, newGrade float64, reason string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.find(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Grade == nil {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "no existing grade to update, use initial grading first")
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "cannot update grade for a dropped enrollment")
	}
	if newGrade < 0 || newGrade > 20 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade must be between 0 and 20")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a reason must be provided for grade modification")
	}

	oldGrade := *enrollment.Grade
	if err := s.repo.UpdateGrade(ctx, enrollmentID, newGrade, statusForGrade(newGrade)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}

	s.logger.Info("grade corrected",
		zap.String("enrollment_id", enrollmentID),
		zap.Float64("old_grade", oldGrade),
		zap.Float64("new_grade", newGrade),
		zap.String("reason", reason))
	return s.detail(ctx, enrollmentID)
}

// UpdateStatus sets the status unconditionally. This is a privileged escape
// hatch for administrative corrections and performs no transition validation;
// the route exposing it is restricted to the ADMIN role.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, enrollmentID string, status models.EnrollmentStatus) (*models.EnrollmentDetail, error) {
	if !status.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown enrollment status %q", status)
	}
	enrollment, err := s.find(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, enrollmentID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	s.logger.Warn("enrollment status overridden",
		zap.String("enrollment_id", enrollmentID),
		zap.String("from", string(enrollment.Status)),
		zap.String("to", string(status)))
	return s.detail(ctx, enrollmentID)
}

// Get returns an enrollment with student and course context.
func (s *EnrollmentService) Get(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	return s.detail(ctx, enrollmentID)
}

// ListByStudent returns every enrollment of a student.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// ListActiveByStudent returns the ACTIVE enrollments of a student.
func (s *EnrollmentService) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByStudentAndStatus(ctx, studentID, models.EnrollmentStatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// ListByCourse returns every enrollment in a course.
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

func (s *EnrollmentService) find(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "enrollment %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) detail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "enrollment %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

func statusForGrade(grade float64) models.EnrollmentStatus {
	if grade >= models.PassingGrade {
		return models.EnrollmentStatusCompleted
	}
	return models.EnrollmentStatusFailed
}
