package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/labang-online/portal-api/internal/models"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
)

type mockAnnouncementRepo struct {
	rows        map[string]*models.Announcement
	countCalls  int
	activeCount int
}

func newMockAnnouncementRepo() *mockAnnouncementRepo {
	return &mockAnnouncementRepo{rows: map[string]*models.Announcement{}}
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, a *models.Announcement) error {
	a.ID = fmt.Sprintf("a%d", len(m.rows)+1)
	m.rows[a.ID] = a
	return nil
}

func (m *mockAnnouncementRepo) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	if a, ok := m.rows[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAnnouncementRepo) Update(ctx context.Context, a *models.Announcement) error {
	if _, ok := m.rows[a.ID]; !ok {
		return sql.ErrNoRows
	}
	m.rows[a.ID] = a
	return nil
}

func (m *mockAnnouncementRepo) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	a, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	a.IsActive = active
	return true, nil
}

func (m *mockAnnouncementRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	var out []models.Announcement
	for _, a := range m.rows {
		if filter.ActiveOnly && !a.IsActive {
			continue
		}
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (m *mockAnnouncementRepo) CountActive(ctx context.Context) (int, error) {
	m.countCalls++
	return m.activeCount, nil
}

func newAnnouncementService(repo *mockAnnouncementRepo, cache *memCache) *AnnouncementService {
	return NewAnnouncementService(repo, cache, validator.New(), zap.NewNop())
}

func TestCreateAnnouncementRejectsUnknownType(t *testing.T) {
	svc := newAnnouncementService(newMockAnnouncementRepo(), newMemCache())

	_, err := svc.Create(context.Background(), staffClaims(), models.CreateAnnouncementRequest{
		Title:   "Fiesta schedule",
		Content: "The schedule of the fiesta events follows.",
		Type:    "festival",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateAnnouncementStartsActive(t *testing.T) {
	repo := newMockAnnouncementRepo()
	svc := newAnnouncementService(repo, newMemCache())

	a, err := svc.Create(context.Background(), staffClaims(), models.CreateAnnouncementRequest{
		Title:   "Water interruption",
		Content: "Supply will be off from 8am to 5pm on Tuesday.",
		Type:    models.AnnouncementAlert,
	})
	require.NoError(t, err)
	assert.True(t, a.IsActive)
	require.NotNil(t, a.PostedBy)
	assert.Equal(t, "staff1", *a.PostedBy)
}

func TestActiveCountUsesCache(t *testing.T) {
	repo := newMockAnnouncementRepo()
	repo.activeCount = 3
	cache := newMemCache()
	svc := newAnnouncementService(repo, cache)

	count, err := svc.ActiveCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, repo.countCalls)

	// Second read is served from the cache.
	count, err = svc.ActiveCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, repo.countCalls)
}

func TestToggleInvalidatesCachedCount(t *testing.T) {
	repo := newMockAnnouncementRepo()
	repo.activeCount = 1
	cache := newMemCache()
	svc := newAnnouncementService(repo, cache)

	a, err := svc.Create(context.Background(), staffClaims(), models.CreateAnnouncementRequest{
		Title:   "Clean-up drive",
		Content: "Join the coastal clean-up this Saturday morning.",
		Type:    models.AnnouncementEvent,
	})
	require.NoError(t, err)

	_, err = svc.ActiveCount(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, cache.values)

	toggled, err := svc.ToggleActive(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
	assert.Empty(t, cache.values)
}
