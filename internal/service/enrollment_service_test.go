package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/internal/repository"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	pairs       map[string]bool
	createErr   error
	created     *models.Enrollment
	status      map[string]models.EnrollmentStatus
	grades      map[string]float64
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsByStudentAndCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.pairs[studentID+"/"+courseID], nil
}

func (m *mockEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var list []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			list = append(list, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) ListByStudentAndStatus(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	var list []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.Status == status {
			list = append(list, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	var list []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			list = append(list, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) CreateWithCapacityCheck(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enroll"
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	if m.status == nil {
		m.status = make(map[string]models.EnrollmentStatus)
	}
	m.status[id] = status
	if e, ok := m.enrollments[id]; ok {
		e.Status = status
		m.enrollments[id] = e
	}
	return nil
}

func (m *mockEnrollmentRepo) UpdateGrade(ctx context.Context, id string, grade float64, status models.EnrollmentStatus) error {
	if m.grades == nil {
		m.grades = make(map[string]float64)
	}
	m.grades[id] = grade
	if e, ok := m.enrollments[id]; ok {
		e.Grade = &grade
		e.Status = status
		m.enrollments[id] = e
	}
	return nil
}

type mockEnrollmentStudents struct {
	students map[string]*models.StudentDetail
}

func (m *mockEnrollmentStudents) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentCourses struct {
	courses map[string]*models.CourseDetail
}

func (m *mockEnrollmentCourses) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func studentInDept(id, deptID, deptName string) *models.StudentDetail {
	return &models.StudentDetail{
		Student:        models.Student{ID: id, DepartmentID: deptID},
		DepartmentName: deptName,
	}
}

func courseInDept(id, deptID, deptName string, maxStudents, enrolled int) *models.CourseDetail {
	return &models.CourseDetail{
		Course:          models.Course{ID: id, Name: "Algorithms", DepartmentID: deptID, MaxStudents: maxStudents},
		DepartmentName:  deptName,
		EnrollmentCount: enrolled,
	}
}

func newEnrollmentFixture(repo *mockEnrollmentRepo) *EnrollmentService {
	students := &mockEnrollmentStudents{students: map[string]*models.StudentDetail{
		"s1": studentInDept("s1", "d1", "Computer Science"),
		"s2": studentInDept("s2", "d2", "Mathematics"),
	}}
	courses := &mockEnrollmentCourses{courses: map[string]*models.CourseDetail{
		"c1":   courseInDept("c1", "d1", "Computer Science", 30, 5),
		"full": courseInDept("full", "d1", "Computer Science", 2, 2),
	}}
	return NewEnrollmentService(repo, students, courses, zap.NewNop())
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := newEnrollmentFixture(repo)

	detail, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, detail.Status)
	require.NotNil(t, repo.created)
	assert.Equal(t, "s1", repo.created.StudentID)
	assert.Equal(t, "c1", repo.created.CourseID)
}

func TestEnrollmentServiceEnrollCrossDepartment(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	_, err := svc.Enroll(context.Background(), "s2", "c1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
	assert.Contains(t, err.Error(), "Mathematics")
	assert.Contains(t, err.Error(), "Computer Science")
}

func TestEnrollmentServiceEnrollDuplicate(t *testing.T) {
	repo := &mockEnrollmentRepo{pairs: map[string]bool{"s1/c1": true}}
	svc := newEnrollmentFixture(repo)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
	assert.Contains(t, err.Error(), "already enrolled")
}

func TestEnrollmentServiceEnrollFullCourse(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	_, err := svc.Enroll(context.Background(), "s1", "full")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
	assert.Contains(t, err.Error(), "full")
}

func TestEnrollmentServiceEnrollRacingFull(t *testing.T) {
	// Pre-checks pass but the locked recount inside the transaction loses the
	// race for the last seat.
	repo := &mockEnrollmentRepo{createErr: repository.ErrCourseFull}
	svc := newEnrollmentFixture(repo)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
	assert.Contains(t, err.Error(), "full")
}

func TestEnrollmentServiceEnrollRacingDuplicate(t *testing.T) {
	repo := &mockEnrollmentRepo{createErr: repository.ErrDuplicate}
	svc := newEnrollmentFixture(repo)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
}

func TestEnrollmentServiceEnrollUnknownStudent(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	_, err := svc.Enroll(context.Background(), "ghost", "c1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceDrop(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentStatusActive},
	}}
	svc := newEnrollmentFixture(repo)

	detail, err := svc.Drop(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, detail.Status)
}

func TestEnrollmentServiceDropNonActive(t *testing.T) {
	for _, status := range []models.EnrollmentStatus{
		models.EnrollmentStatusCompleted,
		models.EnrollmentStatusFailed,
		models.EnrollmentStatusDropped,
	} {
		repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
			"e1": {ID: "e1", Status: status},
		}}
		svc := newEnrollmentFixture(repo)

		_, err := svc.Drop(context.Background(), "e1")
		require.Error(t, err, "status %s", status)
		assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
	}
}

func TestEnrollmentServiceAssignGradePassing(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusActive},
	}}
	svc := newEnrollmentFixture(repo)

	detail, err := svc.AssignGrade(context.Background(), "e1", 14.5)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, detail.Status)
	require.NotNil(t, detail.Grade)
	assert.InDelta(t, 14.5, *detail.Grade, 0.001)
}

func TestEnrollmentServiceAssignGradeFailing(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusActive},
	}}
	svc := newEnrollmentFixture(repo)

	detail, err := svc.AssignGrade(context.Background(), "e1", 9.99)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusFailed, detail.Status)
}

func TestEnrollmentServiceAssignGradeBoundary(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusActive},
	}}
	svc := newEnrollmentFixture(repo)

	detail, err := svc.AssignGrade(context.Background(), "e1", 10)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, detail.Status)
}

func TestEnrollmentServiceAssignGradeOutOfRange(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusActive},
	}}
	svc := newEnrollmentFixture(repo)

	for _, grade := range []float64{-0.1, 20.5} {
		_, err := svc.AssignGrade(context.Background(), "e1", grade)
		require.Error(t, err, "grade %f", grade)
		assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	}
}

func TestEnrollmentServiceAssignGradeDropped(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusDropped},
	}}
	svc := newEnrollmentFixture(repo)

	_, err := svc.AssignGrade(context.Background(), "e1", 12)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
}

func TestEnrollmentServiceAssignGradeTwice(t *testing.T) {
	grade := 12.0
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusCompleted, Grade: &grade},
	}}
	svc := newEnrollmentFixture(repo)

	_, err := svc.AssignGrade(context.Background(), "e1", 15)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
	assert.Contains(t, err.Error(), "already assigned")
}

func TestEnrollmentServiceUpdateGrade(t *testing.T) {
	grade := 9.0
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusFailed, Grade: &grade},
	}}
	svc := newEnrollmentFixture(repo)

	detail, err := svc.UpdateGrade(context.Background(), "e1", 12, "transcription error")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, detail.Status)
	require.NotNil(t, detail.Grade)
	assert.InDelta(t, 12, *detail.Grade, 0.001)
}

func TestEnrollmentServiceUpdateGradeWithoutReason(t *testing.T) {
	grade := 9.0
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusFailed, Grade: &grade},
	}}
	svc := newEnrollmentFixture(repo)

	for _, reason := range []string{"", "   "} {
		_, err := svc.UpdateGrade(context.Background(), "e1", 12, reason)
		require.Error(t, err, "reason %q", reason)
		assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	}
}

func TestEnrollmentServiceUpdateGradeWithoutInitial(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusActive},
	}}
	svc := newEnrollmentFixture(repo)

	_, err := svc.UpdateGrade(context.Background(), "e1", 12, "fix")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
}

func TestEnrollmentServiceUpdateStatusOverride(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusDropped},
	}}
	svc := newEnrollmentFixture(repo)

	detail, err := svc.UpdateStatus(context.Background(), "e1", models.EnrollmentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, detail.Status)
}

func TestEnrollmentServiceUpdateStatusInvalid(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	_, err := svc.UpdateStatus(context.Background(), "e1", "PAUSED")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
