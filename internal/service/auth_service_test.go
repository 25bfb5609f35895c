package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/labang-online/portal-api/internal/models"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
)

type mockUserRepo struct {
	byID       map[string]*models.User
	byUsername map[string]*models.User
	byEmail    map[string]*models.User

	created          []*models.User
	lastLoginUpdated bool
	passwordUpdates  map[string]string
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	m := &mockUserRepo{
		byID:            map[string]*models.User{},
		byUsername:      map[string]*models.User{},
		byEmail:         map[string]*models.User{},
		passwordUpdates: map[string]string{},
	}
	for _, u := range users {
		m.byID[u.ID] = u
		m.byUsername[u.Username] = u
		m.byEmail[u.Email] = u
	}
	return m
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := m.byUsername[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "generated"
	m.created = append(m.created, user)
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordUpdates[id] = passwordHash
	return nil
}

type mockCodeRepo struct {
	codes []*models.PasswordResetCode
}

func (m *mockCodeRepo) Create(ctx context.Context, code *models.PasswordResetCode) error {
	if code.ID == "" {
		code.ID = "rc" + code.Code
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	m.codes = append(m.codes, code)
	return nil
}

func (m *mockCodeRepo) FindUnused(ctx context.Context, userID, code string) (*models.PasswordResetCode, error) {
	var newest *models.PasswordResetCode
	for _, rc := range m.codes {
		if rc.UserID == userID && rc.Code == code && !rc.IsUsed {
			if newest == nil || rc.CreatedAt.After(newest.CreatedAt) {
				newest = rc
			}
		}
	}
	if newest == nil {
		return nil, sql.ErrNoRows
	}
	return newest, nil
}

func (m *mockCodeRepo) FindByID(ctx context.Context, id string) (*models.PasswordResetCode, error) {
	for _, rc := range m.codes {
		if rc.ID == id {
			return rc, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCodeRepo) MarkUsed(ctx context.Context, id string) (bool, error) {
	for _, rc := range m.codes {
		if rc.ID == id && !rc.IsUsed {
			rc.IsUsed = true
			return true, nil
		}
	}
	return false, nil
}

type memCache struct {
	values map[string]interface{}
}

func newMemCache() *memCache {
	return &memCache{values: map[string]interface{}{}}
}

func (m *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *string:
		*d = v.(string)
	case *int:
		*d = v.(int)
	default:
		return errors.New("unsupported destination")
	}
	return nil
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

type mockAudit struct {
	entries []*models.AuditLog
}

func (m *mockAudit) Create(ctx context.Context, entry *models.AuditLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

type mockMailer struct {
	sent []string
	err  error
}

func (m *mockMailer) Send(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthService(users *mockUserRepo, codes *mockCodeRepo, cache *memCache, mail *mockMailer) *AuthService {
	return NewAuthService(users, codes, cache, &mockAudit{}, mail, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "test",
		ResetCodeTTL:      5 * time.Minute,
		ResetSessionTTL:   5 * time.Minute,
	})
}

func TestLoginSuccessIssuesToken(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com", PasswordHash: hashOf(t, "sikreto-123"), Role: models.RoleResident, ResidentConfirmed: true, Active: true})
	svc := newAuthService(users, &mockCodeRepo{}, newMemCache(), &mockMailer{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "juandc", Password: "sikreto-123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.RoleResident, res.User.Role)
	assert.True(t, users.lastLoginUpdated)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestLoginRejectsUnverifiedResident(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com", PasswordHash: hashOf(t, "sikreto-123"), Role: models.RoleResident, ResidentConfirmed: false, Active: true})
	svc := newAuthService(users, &mockCodeRepo{}, newMemCache(), &mockMailer{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "juandc", Password: "sikreto-123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnverifiedAccount.Code, appErrors.FromError(err).Code)
}

func TestLoginWrongPasswordBeforeVerificationGate(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com", PasswordHash: hashOf(t, "sikreto-123"), Role: models.RoleResident, ResidentConfirmed: false, Active: true})
	svc := newAuthService(users, &mockCodeRepo{}, newMemCache(), &mockMailer{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "juandc", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com"})
	svc := newAuthService(users, &mockCodeRepo{}, newMemCache(), &mockMailer{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "juandc", Email: "new@example.com", Password: "sikreto-123", FullName: "Juan Dela Cruz"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	mail := &mockMailer{}
	svc := newAuthService(newMockUserRepo(), &mockCodeRepo{}, newMemCache(), mail)

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.Empty(t, mail.sent)
}

func TestForgotPasswordIssuesSixDigitCode(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com", FullName: "Juan Dela Cruz"})
	codes := &mockCodeRepo{}
	mail := &mockMailer{}
	svc := newAuthService(users, codes, newMemCache(), mail)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "juan@example.com"}))
	require.Len(t, codes.codes, 1)
	assert.Regexp(t, `^\d{6}$`, codes.codes[0].Code)
	assert.Equal(t, []string{"juan@example.com"}, mail.sent)
}

func TestForgotPasswordMailFailureSurfaces(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com"})
	svc := newAuthService(users, &mockCodeRepo{}, newMemCache(), &mockMailer{err: errors.New("relay down")})

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "juan@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCollaborator.Code, appErrors.FromError(err).Code)
}

func TestVerifyResetCodeExpired(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com"})
	codes := &mockCodeRepo{codes: []*models.PasswordResetCode{
		{ID: "rc1", UserID: "u1", Code: "483920", CreatedAt: time.Now().UTC().Add(-301 * time.Second)},
	}}
	svc := newAuthService(users, codes, newMemCache(), &mockMailer{})

	_, err := svc.VerifyResetCode(context.Background(), models.VerifyResetCodeRequest{Email: "juan@example.com", Code: "483920"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeExpired.Code, appErrors.FromError(err).Code)
}

func TestSupersededCodeStillWorksUntilExpiry(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com"})
	now := time.Now().UTC()
	codes := &mockCodeRepo{codes: []*models.PasswordResetCode{
		{ID: "rc1", UserID: "u1", Code: "111111", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "rc2", UserID: "u1", Code: "222222", CreatedAt: now},
	}}
	svc := newAuthService(users, codes, newMemCache(), &mockMailer{})

	res, err := svc.VerifyResetCode(context.Background(), models.VerifyResetCodeRequest{Email: "juan@example.com", Code: "111111"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ResetToken)
}

func TestResetPasswordEndToEnd(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com"})
	codes := &mockCodeRepo{codes: []*models.PasswordResetCode{
		{ID: "rc1", UserID: "u1", Code: "483920", CreatedAt: time.Now().UTC()},
	}}
	cache := newMemCache()
	svc := newAuthService(users, codes, cache, &mockMailer{})

	verified, err := svc.VerifyResetCode(context.Background(), models.VerifyResetCodeRequest{Email: "juan@example.com", Code: "483920"})
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{ResetToken: verified.ResetToken, NewPassword: "bagong-sikreto"})
	require.NoError(t, err)

	assert.True(t, codes.codes[0].IsUsed)
	assert.NotEmpty(t, users.passwordUpdates["u1"])
	assert.Empty(t, cache.values)

	// The consumed session cannot be replayed.
	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{ResetToken: verified.ResetToken, NewPassword: "isa-pang-sikreto"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestResetPasswordExpiredAfterVerification(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com"})
	rc := &models.PasswordResetCode{ID: "rc1", UserID: "u1", Code: "483920", CreatedAt: time.Now().UTC().Add(-4*time.Minute - 50*time.Second)}
	codes := &mockCodeRepo{codes: []*models.PasswordResetCode{rc}}
	cache := newMemCache()
	svc := newAuthService(users, codes, cache, &mockMailer{})

	verified, err := svc.VerifyResetCode(context.Background(), models.VerifyResetCodeRequest{Email: "juan@example.com", Code: "483920"})
	require.NoError(t, err)

	// The code crosses its five minute boundary before the final step.
	rc.CreatedAt = time.Now().UTC().Add(-301 * time.Second)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{ResetToken: verified.ResetToken, NewPassword: "bagong-sikreto"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeExpired.Code, appErrors.FromError(err).Code)
	assert.False(t, rc.IsUsed)
	assert.Empty(t, cache.values)
}

func TestChangePasswordChecksOldPassword(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", Email: "juan@example.com", PasswordHash: hashOf(t, "sikreto-123")})
	svc := newAuthService(users, &mockCodeRepo{}, newMemCache(), &mockMailer{})

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "bagong-sikreto"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "sikreto-123", NewPassword: "bagong-sikreto"})
	require.NoError(t, err)
	assert.NotEmpty(t, users.passwordUpdates["u1"])
}
