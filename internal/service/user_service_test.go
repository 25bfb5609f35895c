package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/labang-online/portal-api/internal/models"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
)

type mockAdminRepo struct {
	users map[string]*models.User
}

func newMockAdminRepo(users ...*models.User) *mockAdminRepo {
	m := &mockAdminRepo{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockAdminRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAdminRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAdminRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockAdminRepo) SetResidentConfirmed(ctx context.Context, id string, confirmed bool) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.ResidentConfirmed = confirmed
	return nil
}

func (m *mockAdminRepo) SetActive(ctx context.Context, id string, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Active = active
	return nil
}

func (m *mockAdminRepo) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = role
	return nil
}

func (m *mockAdminRepo) CountAdmins(ctx context.Context, excludeID string) (int, error) {
	count := 0
	for _, u := range m.users {
		if u.Role == models.RoleAdmin && u.Active && u.ID != excludeID {
			count++
		}
	}
	return count, nil
}

func (m *mockAdminRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func newUserService(repo *mockAdminRepo, store *mockStore) *UserService {
	return NewUserService(repo, &mockAudit{}, store, "user-uploads", 5*1024*1024, []string{"image/jpeg", "image/png"}, validator.New(), zap.NewNop())
}

func staffClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "staff1", Role: models.RoleAdmin}
}

func TestDemoteLastAdminRefused(t *testing.T) {
	repo := newMockAdminRepo(
		&models.User{ID: "a1", Username: "kapitana", Role: models.RoleAdmin, Active: true},
		&models.User{ID: "u1", Username: "juandc", Role: models.RoleResident, Active: true},
	)
	svc := newUserService(repo, &mockStore{})

	err := svc.ChangeRole(context.Background(), staffClaims(), "a1", models.ChangeRoleRequest{Role: models.RoleResident})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLastAdmin.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.RoleAdmin, repo.users["a1"].Role)
}

func TestDemoteAdminWithAnotherRemaining(t *testing.T) {
	repo := newMockAdminRepo(
		&models.User{ID: "a1", Username: "kapitana", Role: models.RoleAdmin, Active: true},
		&models.User{ID: "a2", Username: "sekretaryo", Role: models.RoleAdmin, Active: true},
	)
	svc := newUserService(repo, &mockStore{})

	err := svc.ChangeRole(context.Background(), staffClaims(), "a1", models.ChangeRoleRequest{Role: models.RoleStaff})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, repo.users["a1"].Role)
}

func TestDeactivateLastAdminRefused(t *testing.T) {
	repo := newMockAdminRepo(&models.User{ID: "a1", Username: "kapitana", Role: models.RoleAdmin, Active: true})
	svc := newUserService(repo, &mockStore{})

	err := svc.SetActive(context.Background(), staffClaims(), "a1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLastAdmin.Code, appErrors.FromError(err).Code)
	assert.True(t, repo.users["a1"].Active)
}

func TestVerifyResident(t *testing.T) {
	repo := newMockAdminRepo(&models.User{ID: "u1", Username: "juandc", Role: models.RoleResident, Active: true})
	svc := newUserService(repo, &mockStore{})

	require.NoError(t, svc.SetResidentConfirmed(context.Background(), staffClaims(), "u1", true))
	assert.True(t, repo.users["u1"].ResidentConfirmed)
}

func TestUpdateProfileRejectsTakenUsername(t *testing.T) {
	repo := newMockAdminRepo(
		&models.User{ID: "u1", Username: "juandc", Role: models.RoleResident, Active: true},
		&models.User{ID: "u2", Username: "pedrop", Role: models.RoleResident, Active: true},
	)
	svc := newUserService(repo, &mockStore{})

	_, err := svc.UpdateProfile(context.Background(), "u1", models.UpdateProfileRequest{Username: "pedrop", FullName: "Juan Dela Cruz"}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUpdateProfileRejectsOversizeUpload(t *testing.T) {
	repo := newMockAdminRepo(&models.User{ID: "u1", Username: "juandc", Role: models.RoleResident, Active: true})
	svc := newUserService(repo, &mockStore{})

	big := &PhotoUpload{Filename: "selfie.png", ContentType: "image/png", Data: make([]byte, 5*1024*1024+1)}
	_, err := svc.UpdateProfile(context.Background(), "u1", models.UpdateProfileRequest{Username: "juandc", FullName: "Juan Dela Cruz"}, big, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateProfileStoresPhotoURL(t *testing.T) {
	repo := newMockAdminRepo(&models.User{ID: "u1", Username: "juandc", Role: models.RoleResident, Active: true})
	store := &mockStore{}
	svc := newUserService(repo, store)

	photo := &PhotoUpload{Filename: "selfie.png", ContentType: "image/png", Data: []byte("png bytes")}
	user, err := svc.UpdateProfile(context.Background(), "u1", models.UpdateProfileRequest{Username: "juandc", FullName: "Juan Dela Cruz"}, photo, nil)
	require.NoError(t, err)
	require.NotNil(t, user.ProfilePhotoURL)
	assert.Equal(t, 1, store.uploads)
}
