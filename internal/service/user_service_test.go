package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]models.User
	usernames map[string]string
	emails    map[string]string
}

func (m *mockUserRepo) List(ctx context.Context) ([]models.User, error) {
	var list []models.User
	for _, u := range m.users {
		list = append(list, u)
	}
	return list, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error) {
	id, ok := m.usernames[username]
	return ok && id != excludeID, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	id, ok := m.emails[email]
	return ok && id != excludeID, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]models.User)
	}
	if user.ID == "" {
		user.ID = "new-user"
	}
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	u := m.users[id]
	u.Enabled = enabled
	m.users[id] = u
	return nil
}

func newUserFixture(repo *mockUserRepo) *UserService {
	students := &mockStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1"},
	}}
	teachers := &mockTeacherReader{teachers: map[string]*models.Teacher{
		"t1": {ID: "t1"},
	}}
	return NewUserService(repo, students, teachers, nil, zap.NewNop())
}

func TestUserServiceRegister(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newUserFixture(repo)

	user, err := svc.Register(context.Background(), RegisterUserRequest{
		Username: "jdupont",
		Email:    "J.Dupont@Example.com",
		Password: "secret123",
		Role:     models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.True(t, user.Enabled)
	assert.Equal(t, "j.dupont@example.com", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
}

func TestUserServiceRegisterStudentLink(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newUserFixture(repo)

	studentID := "s1"
	user, err := svc.Register(context.Background(), RegisterUserRequest{
		Username:  "student1",
		Email:     "student1@example.com",
		Password:  "secret123",
		Role:      models.RoleStudent,
		StudentID: &studentID,
	})
	require.NoError(t, err)
	require.NotNil(t, user.StudentID)
	assert.Equal(t, "s1", *user.StudentID)
}

// linkedUserRepo mirrors the user repository's create transaction, which also
// writes the student row's user back-reference.
type linkedUserRepo struct {
	mockUserRepo
	students *mockStudentRepo
}

func (m *linkedUserRepo) Create(ctx context.Context, user *models.User) error {
	if err := m.mockUserRepo.Create(ctx, user); err != nil {
		return err
	}
	if user.StudentID != nil {
		if s, ok := m.students.students[*user.StudentID]; ok {
			uid := user.ID
			s.UserID = &uid
			m.students.students[s.ID] = s
			if m.students.byUser == nil {
				m.students.byUser = make(map[string]models.Student)
			}
			m.students.byUser[uid] = s
		}
	}
	return nil
}

func TestUserServiceRegisterLinksStudentAccount(t *testing.T) {
	studentRepo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", FirstName: "Amina", LastName: "El Fassi", DepartmentID: "d1"},
	}}
	userRepo := &linkedUserRepo{students: studentRepo}
	students := &mockStudentReader{students: map[string]*models.Student{"s1": {ID: "s1"}}}
	teachers := &mockTeacherReader{}
	users := NewUserService(userRepo, students, teachers, nil, zap.NewNop())
	studentSvc := newStudentFixture(studentRepo)

	studentID := "s1"
	account, err := users.Register(context.Background(), RegisterUserRequest{
		Username:  "amina",
		Email:     "amina@example.com",
		Password:  "secret123",
		Role:      models.RoleStudent,
		StudentID: &studentID,
	})
	require.NoError(t, err)

	// The student must be resolvable from the account right after
	// registration; this is what GET /students/me relies on.
	detail, err := studentSvc.GetByUser(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "s1", detail.ID)
	require.NotNil(t, detail.UserID)
	assert.Equal(t, account.ID, *detail.UserID)
}

func TestUserServiceRegisterLinkRoleMismatch(t *testing.T) {
	svc := newUserFixture(&mockUserRepo{})

	studentID := "s1"
	_, err := svc.Register(context.Background(), RegisterUserRequest{
		Username:  "admin2",
		Email:     "admin2@example.com",
		Password:  "secret123",
		Role:      models.RoleAdmin,
		StudentID: &studentID,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	teacherID := "t1"
	_, err = svc.Register(context.Background(), RegisterUserRequest{
		Username:  "student2",
		Email:     "student2@example.com",
		Password:  "secret123",
		Role:      models.RoleStudent,
		TeacherID: &teacherID,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceRegisterDuplicateUsername(t *testing.T) {
	repo := &mockUserRepo{usernames: map[string]string{"jdupont": "u1"}}
	svc := newUserFixture(repo)

	_, err := svc.Register(context.Background(), RegisterUserRequest{
		Username: "jdupont",
		Email:    "other@example.com",
		Password: "secret123",
		Role:     models.RoleAdmin,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestUserServiceRegisterMissingLinkedStudent(t *testing.T) {
	svc := newUserFixture(&mockUserRepo{})

	ghost := "ghost"
	_, err := svc.Register(context.Background(), RegisterUserRequest{
		Username:  "student3",
		Email:     "student3@example.com",
		Password:  "secret123",
		Role:      models.RoleStudent,
		StudentID: &ghost,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceUpdate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"u1": {ID: "u1", Username: "jdupont", Email: "j.dupont@example.com", Role: models.RoleAdmin},
	}}
	svc := newUserFixture(repo)

	user, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		Username: "jdupont2",
		Email:    "J.Dupont2@Example.com",
		Role:     models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "jdupont2", user.Username)
	assert.Equal(t, "j.dupont2@example.com", user.Email)
}

func TestUserServiceUpdateLinkedRoleLocked(t *testing.T) {
	studentID := "s1"
	repo := &mockUserRepo{users: map[string]models.User{
		"u1": {ID: "u1", Username: "student1", Email: "student1@example.com", Role: models.RoleStudent, StudentID: &studentID},
	}}
	svc := newUserFixture(repo)

	_, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		Username: "student1",
		Email:    "student1@example.com",
		Role:     models.RoleAdmin,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceSetEnabled(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"u1": {ID: "u1", Username: "jdupont", Enabled: true},
	}}
	svc := newUserFixture(repo)

	user, err := svc.SetEnabled(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.False(t, user.Enabled)
}
