package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/labang-online/portal-api/internal/models"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
)

const (
	activeCountCacheKey = "announcements:active_count"
	activeCountCacheTTL = 30 * time.Second
)

type announcementRepository interface {
	Create(ctx context.Context, a *models.Announcement) error
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Update(ctx context.Context, a *models.Announcement) error
	SetActive(ctx context.Context, id string, active bool) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	CountActive(ctx context.Context) (int, error)
}

// AnnouncementService manages barangay announcements. The active count is
// cached briefly because every client polls it for the unread badge.
type AnnouncementService struct {
	repo      announcementRepository
	cache     resetSessionStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs an AnnouncementService instance.
func NewAnnouncementService(repo announcementRepository, cache resetSessionStore, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AnnouncementService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Create posts a new announcement on behalf of the acting staff member.
func (s *AnnouncementService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if !models.ValidAnnouncementType(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown announcement type")
	}

	a := &models.Announcement{
		Title:    req.Title,
		Content:  req.Content,
		Type:     req.Type,
		IsActive: true,
	}
	if actor != nil {
		a.PostedBy = &actor.UserID
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to post announcement")
	}

	s.invalidateActiveCount(ctx)
	return a, nil
}

// Update edits an existing announcement.
func (s *AnnouncementService) Update(ctx context.Context, id string, req models.UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if !models.ValidAnnouncementType(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown announcement type")
	}

	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}

	a.Title = req.Title
	a.Content = req.Content
	a.Type = req.Type
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, a); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}

	s.invalidateActiveCount(ctx)
	return a, nil
}

// ToggleActive flips the visibility flag.
func (s *AnnouncementService) ToggleActive(ctx context.Context, id string) (*models.Announcement, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}

	ok, err := s.repo.SetActive(ctx, id, !a.IsActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle announcement")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}

	a.IsActive = !a.IsActive
	s.invalidateActiveCount(ctx)
	return a, nil
}

// Delete removes an announcement. Staff only.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}
	s.invalidateActiveCount(ctx)
	return nil
}

// List returns announcements. Residents only ever see active ones; staff
// pass activeOnly=false to manage the full set.
func (s *AnnouncementService) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, *models.Pagination, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return list, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ActiveCount serves the unread badge, with a short cache in front of the
// database.
func (s *AnnouncementService) ActiveCount(ctx context.Context) (int, error) {
	var cached int
	if err := s.cache.Get(ctx, activeCountCacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("active count cache read failed", zap.Error(err))
	}

	count, err := s.repo.CountActive(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count announcements")
	}

	if err := s.cache.Set(ctx, activeCountCacheKey, count, activeCountCacheTTL); err != nil {
		s.logger.Warn("active count cache write failed", zap.Error(err))
	}
	return count, nil
}

func (s *AnnouncementService) invalidateActiveCount(ctx context.Context) {
	if err := s.cache.Delete(ctx, activeCountCacheKey); err != nil {
		s.logger.Warn("active count cache invalidation failed", zap.Error(err))
	}
}
