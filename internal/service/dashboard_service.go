package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/labang-online/portal-api/internal/models"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
)

type userStatsRepository interface {
	Stats(ctx context.Context) (*models.UserStats, error)
}

type certificateStatsRepository interface {
	Stats(ctx context.Context) (*models.CertificateStats, error)
	Recent(ctx context.Context, limit int) ([]models.CertificateRequest, error)
}

type reportStatsRepository interface {
	Stats(ctx context.Context) (*models.ReportStats, error)
	Recent(ctx context.Context, limit int) ([]models.IncidentReport, error)
}

// DashboardService aggregates portal activity for the staff console.
type DashboardService struct {
	users        userStatsRepository
	certificates certificateStatsRepository
	reports      reportStatsRepository
	logger       *zap.Logger
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(users userStatsRepository, certificates certificateStatsRepository, reports reportStatsRepository, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{users: users, certificates: certificates, reports: reports, logger: logger}
}

// Overview assembles the dashboard payload.
func (s *DashboardService) Overview(ctx context.Context) (*models.DashboardStats, error) {
	userStats, err := s.users.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate user stats")
	}

	certStats, err := s.certificates.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate certificate stats")
	}

	reportStats, err := s.reports.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate report stats")
	}

	stats := &models.DashboardStats{
		Users:        *userStats,
		Certificates: *certStats,
		Reports:      *reportStats,
	}

	if recent, err := s.certificates.Recent(ctx, 5); err != nil {
		s.logger.Warn("failed to load recent requests", zap.Error(err))
	} else {
		stats.RecentRequests = recent
	}

	if recent, err := s.reports.Recent(ctx, 5); err != nil {
		s.logger.Warn("failed to load recent reports", zap.Error(err))
	} else {
		stats.RecentReports = recent
	}

	return stats, nil
}
