package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labang-online/portal-api/internal/models"
	"github.com/labang-online/portal-api/internal/repository"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
	"github.com/labang-online/portal-api/pkg/export"
)

const (
	minPlaceLen   = 5
	minMessageLen = 20
)

type reportRepository interface {
	Create(ctx context.Context, report *models.IncidentReport) error
	FindByID(ctx context.Context, id string) (*models.IncidentReport, error)
	FindOwned(ctx context.Context, id, userID string) (*models.IncidentReport, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.IncidentReport, int, error)
	SetStatus(ctx context.Context, id string, status models.ReportStatus) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ReportService implements the incident report lifecycle. Residents file and
// read their own reports; the handling state belongs to staff.
type ReportService struct {
	repo      reportRepository
	audits    auditRecorder
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs a ReportService instance.
func NewReportService(repo reportRepository, audits auditRecorder, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReportService{repo: repo, audits: audits, csv: export.NewCSVExporter(), pdf: export.NewPDFExporter(), validator: validate, logger: logger}
}

// Create files a new incident report. Whitespace around place and message
// does not count toward the minimum lengths.
func (s *ReportService) Create(ctx context.Context, userID string, req models.CreateReportRequest) (*models.IncidentReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	if !models.ValidReportType(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown report type")
	}

	place := strings.TrimSpace(req.Place)
	if len(place) < minPlaceLen {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("place must be at least %d characters", minPlaceLen))
	}
	message := strings.TrimSpace(req.Message)
	if len(message) < minMessageLen {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("message must be at least %d characters", minMessageLen))
	}

	report := &models.IncidentReport{
		ReportID: newReportID(),
		UserID:   userID,
		Type:     req.Type,
		Place:    place,
		Message:  message,
		Status:   models.ReportPending,
	}

	if err := s.repo.Create(ctx, report); err != nil {
		if errors.Is(err, repository.ErrDuplicateReportID) {
			report.ReportID = newReportID()
			err = s.repo.Create(ctx, report)
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to file the report")
		}
	}

	return report, nil
}

// newReportID derives RPT-XXXXXXXX from random UUID bytes. Eight hex chars
// give four billion values; the unique constraint covers the remote chance
// of a collision.
func newReportID() string {
	id := uuid.New()
	return "RPT-" + strings.ToUpper(fmt.Sprintf("%x", id[:4]))
}

// GetOwned returns a report the caller filed.
func (s *ReportService) GetOwned(ctx context.Context, id, userID string) (*models.IncidentReport, error) {
	report, err := s.repo.FindOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

// ListOwned returns the caller's reports.
func (s *ReportService) ListOwned(ctx context.Context, userID string, filter models.ReportFilter) ([]models.IncidentReport, *models.Pagination, error) {
	filter.UserID = userID
	return s.list(ctx, filter)
}

// ListAll returns the staff register.
func (s *ReportService) ListAll(ctx context.Context, filter models.ReportFilter) ([]models.IncidentReport, *models.Pagination, error) {
	filter.UserID = ""
	return s.list(ctx, filter)
}

func (s *ReportService) list(ctx context.Context, filter models.ReportFilter) ([]models.IncidentReport, *models.Pagination, error) {
	reports, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, paginationFor(filter.Page, filter.PageSize, total), nil
}

// UpdateStatus moves a report between handling states. Any known state may
// follow any other; the blotter desk reorders cases freely.
func (s *ReportService) UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateReportStatusRequest) (*models.IncidentReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidReportStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown report status")
	}

	ok, err := s.repo.SetStatus(ctx, id, req.Status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update report status")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}

	s.recordAudit(ctx, actor, models.AuditActionReportStatus, id, string(req.Status))

	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload report")
	}
	return report, nil
}

// Delete removes a report regardless of state. Staff only.
func (s *ReportService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	s.recordAudit(ctx, actor, models.AuditActionReportDelete, id, "")
	return nil
}

// Export renders the filtered register as CSV or PDF bytes.
func (s *ReportService) Export(ctx context.Context, filter models.ReportFilter, format string) ([]byte, string, error) {
	filter.UserID = ""
	filter.Page = 1
	filter.PageSize = exportPageSize
	reports, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load the register")
	}

	reg := export.Register{
		Title:   "Incident Report Register",
		Columns: []string{"Report ID", "Reporter", "Type", "Place", "Status", "Filed"},
	}
	for _, report := range reports {
		reporter := ""
		if report.ReporterName != nil {
			reporter = *report.ReporterName
		}
		reg.Rows = append(reg.Rows, []string{
			report.ReportID,
			reporter,
			string(report.Type),
			report.Place,
			string(report.Status),
			report.CreatedAt.Format("2006-01-02"),
		})
	}

	switch strings.ToLower(format) {
	case "pdf":
		data, err := s.pdf.Render(reg, time.Now().UTC())
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF")
		}
		return data, "application/pdf", nil
	case "", "csv":
		data, err := s.csv.Render(reg)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV")
		}
		return data, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *ReportService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID, detail string) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "incident_reports",
		ResourceID: &resourceID,
		Detail:     detail,
	}
	if actor != nil {
		entry.UserID = &actor.UserID
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
