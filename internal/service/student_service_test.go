package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/internal/repository"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

type mockStudentRepo struct {
	students       map[string]models.Student
	byEmail        map[string]models.Student
	byUser         map[string]models.Student
	createdStudent *models.Student
	createdDossier *models.DossierAdministratif
	createErr      error
	deleteErr      error
	deleted        []string
}

func (m *mockStudentRepo) List(ctx context.Context) ([]models.StudentDetail, error) {
	var list []models.StudentDetail
	for _, s := range m.students {
		list = append(list, models.StudentDetail{Student: s})
	}
	return list, nil
}

func (m *mockStudentRepo) ListPage(ctx context.Context, limit, offset int) ([]models.StudentDetail, error) {
	list, _ := m.List(ctx)
	if offset >= len(list) {
		return nil, nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}

func (m *mockStudentRepo) Count(ctx context.Context) (int, error) {
	return len(m.students), nil
}

func (m *mockStudentRepo) ListByDepartment(ctx context.Context, departmentID string) ([]models.StudentDetail, error) {
	var list []models.StudentDetail
	for _, s := range m.students {
		if s.DepartmentID == departmentID {
			list = append(list, models.StudentDetail{Student: s})
		}
	}
	return list, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &models.StudentDetail{Student: s}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	if s, ok := m.byEmail[email]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	if s, ok := m.byUser[userID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) CreateWithDossier(ctx context.Context, student *models.Student, dossier *models.DossierAdministratif) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	m.students[student.ID] = *student
	m.createdStudent = student
	m.createdDossier = dossier
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) DeleteCascade(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	delete(m.students, id)
	return nil
}

type mockDepartmentReader struct {
	departments map[string]*models.Department
}

func (m *mockDepartmentReader) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := m.departments[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func newStudentFixture(repo *mockStudentRepo) *StudentService {
	departments := &mockDepartmentReader{departments: map[string]*models.Department{
		"d1":      {ID: "d1", Code: "GINF", Name: "Computer Science"},
		"no-code": {ID: "no-code", Name: "Provisional"},
	}}
	svc := NewStudentService(repo, departments, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, time.September, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func validStudentRequest() CreateStudentRequest {
	return CreateStudentRequest{
		FirstName:    "Amina",
		LastName:     "El Fassi",
		Email:        "amina@example.com",
		Phone:        "+212 612-345678",
		DepartmentID: "d1",
	}
}

func TestStudentServiceCreateIssuesDossier(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newStudentFixture(repo)

	detail, err := svc.Create(context.Background(), validStudentRequest())
	require.NoError(t, err)
	require.NotNil(t, repo.createdDossier)
	assert.Equal(t, fmt.Sprintf("GINF-2025-%s", detail.ID), repo.createdDossier.NumeroInscription)
	assert.False(t, repo.createdStudent.EnrollmentDate.IsZero())
}

func TestStudentServiceCreateUnknownDepartmentCode(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newStudentFixture(repo)

	req := validStudentRequest()
	req.DepartmentID = "no-code"
	detail, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("UNKNOWN-2025-%s", detail.ID), repo.createdDossier.NumeroInscription)
}

func TestStudentServiceCreateMissingDepartment(t *testing.T) {
	svc := newStudentFixture(&mockStudentRepo{})

	req := validStudentRequest()
	req.DepartmentID = "ghost"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceCreateInvalidPhone(t *testing.T) {
	svc := newStudentFixture(&mockStudentRepo{})

	for _, phone := range []string{"abc", "12", "06-12 extension"} {
		req := validStudentRequest()
		req.Phone = phone
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err, "phone %q", phone)
		assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	}
}

func TestStudentServiceCreateEmptyPhoneAllowed(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newStudentFixture(repo)

	req := validStudentRequest()
	req.Phone = ""
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestStudentServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockStudentRepo{byEmail: map[string]models.Student{
		"amina@example.com": {ID: "other"},
	}}
	svc := newStudentFixture(repo)

	_, err := svc.Create(context.Background(), validStudentRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestStudentServiceUpdateKeepsEmailForSelf(t *testing.T) {
	repo := &mockStudentRepo{
		students: map[string]models.Student{
			"s1": {ID: "s1", FirstName: "Amina", LastName: "El Fassi", Email: "amina@example.com", DepartmentID: "d1"},
		},
		byEmail: map[string]models.Student{
			"amina@example.com": {ID: "s1"},
		},
	}
	svc := newStudentFixture(repo)

	_, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{
		FirstName:    "Amina",
		LastName:     "Benani",
		Email:        "amina@example.com",
		DepartmentID: "d1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Benani", repo.students["s1"].LastName)
}

func TestStudentServiceDeleteCascades(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", FirstName: "Amina", LastName: "El Fassi"},
	}}
	svc := newStudentFixture(repo)

	require.NoError(t, svc.Delete(context.Background(), "s1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)
}

func TestStudentServiceDeleteConsistencyFailure(t *testing.T) {
	repo := &mockStudentRepo{
		students:  map[string]models.Student{"s1": {ID: "s1"}},
		deleteErr: repository.ErrRowSurvivedDelete,
	}
	svc := newStudentFixture(repo)

	err := svc.Delete(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConsistency))
}

func TestStudentServiceDeleteMissing(t *testing.T) {
	svc := newStudentFixture(&mockStudentRepo{})

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
