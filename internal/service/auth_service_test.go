package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

type mockAuthUserRepo struct {
	users   map[string]*models.User
	tokens  map[string]*models.RefreshToken
	revoked []string
}

func (m *mockAuthUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = make(map[string]*models.RefreshToken)
	}
	if token.ID == "" {
		token.ID = token.Token
	}
	m.tokens[token.Token] = token
	return nil
}

func (m *mockAuthUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	m.revoked = append(m.revoked, id)
	for _, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthUserRepo) RevokeRefreshTokens(ctx context.Context, userID string) error {
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(t *testing.T, repo *mockAuthUserRepo) *AuthService {
	t.Helper()
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		Secret:             "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "school-management-test",
	})
}

func activeUser(t *testing.T) *models.User {
	t.Helper()
	return &models.User{
		ID:           "u1",
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: mustHash(t, "secret123"),
		Role:         models.RoleAdmin,
		Enabled:      true,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	repo := &mockAuthUserRepo{users: map[string]*models.User{"u1": activeUser(t)}}
	svc := newAuthFixture(t, repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "admin", resp.User.Username)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthUserRepo{users: map[string]*models.User{"u1": activeUser(t)}}
	svc := newAuthFixture(t, repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc := newAuthFixture(t, &mockAuthUserRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "secret123"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginDisabledAccount(t *testing.T) {
	user := activeUser(t)
	user.Enabled = false
	repo := &mockAuthUserRepo{users: map[string]*models.User{"u1": user}}
	svc := newAuthFixture(t, repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret123"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := &mockAuthUserRepo{users: map[string]*models.User{"u1": activeUser(t)}}
	svc := newAuthFixture(t, repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret123"})
	require.NoError(t, err)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, resp.RefreshToken)

	// The used token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	repo := &mockAuthUserRepo{
		users: map[string]*models.User{"u1": activeUser(t)},
		tokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
		},
	}
	svc := newAuthFixture(t, repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := &mockAuthUserRepo{
		users: map[string]*models.User{"u1": activeUser(t)},
		tokens: map[string]*models.RefreshToken{
			"other": {ID: "rt1", UserID: "u2", Token: "other", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		},
	}
	svc := newAuthFixture(t, repo)

	err := svc.Logout(context.Background(), "u1", "other")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAuthServiceChangePassword(t *testing.T) {
	user := activeUser(t)
	repo := &mockAuthUserRepo{
		users: map[string]*models.User{"u1": user},
		tokens: map[string]*models.RefreshToken{
			"live": {ID: "rt1", UserID: "u1", Token: "live", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		},
	}
	svc := newAuthFixture(t, repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "better-secret",
	})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("better-secret")))
	assert.True(t, repo.tokens["live"].Revoked)
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	repo := &mockAuthUserRepo{users: map[string]*models.User{"u1": activeUser(t)}}
	svc := newAuthFixture(t, repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "nope",
		NewPassword: "better-secret",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAuthServiceValidateTokenTampered(t *testing.T) {
	repo := &mockAuthUserRepo{users: map[string]*models.User{"u1": activeUser(t)}}
	svc := newAuthFixture(t, repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
