package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/labang-online/portal-api/internal/models"
)

// ErrDuplicateReportID reports a collision on the human-facing report
// identifier. Practically unreachable with 8 hex chars, but the unique
// constraint backstops it and callers retry once.
var ErrDuplicateReportID = errors.New("report id already taken")

const reportColumns = `id, report_id, user_id, type, place, message, status, created_at, updated_at`

// ReportRepository provides database access for incident reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new incident report.
func (r *ReportRepository) Create(ctx context.Context, report *models.IncidentReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now

	const query = `INSERT INTO incident_reports (id, report_id, user_id, type, place, message, status, created_at, updated_at) VALUES (:id, :report_id, :user_id, :type, :place, :message, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && strings.Contains(pqErr.Constraint, "report_id") {
			return ErrDuplicateReportID
		}
		return fmt.Errorf("create incident report: %w", err)
	}
	return nil
}

// FindByID returns a report by row id.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.IncidentReport, error) {
	query := `SELECT ` + reportColumns + ` FROM incident_reports WHERE id = $1 LIMIT 1`
	var report models.IncidentReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find incident report: %w", err)
	}
	return &report, nil
}

// FindOwned returns a report only when it belongs to the given user.
func (r *ReportRepository) FindOwned(ctx context.Context, id, userID string) (*models.IncidentReport, error) {
	query := `SELECT ` + reportColumns + ` FROM incident_reports WHERE id = $1 AND user_id = $2 LIMIT 1`
	var report models.IncidentReport
	if err := r.db.GetContext(ctx, &report, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find owned incident report: %w", err)
	}
	return &report, nil
}

// List returns reports matching the filter with total count. An empty
// filter UserID lists across filers for the staff register.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.IncidentReport, int, error) {
	baseQuery := `FROM incident_reports ir LEFT JOIN users u ON u.id = ir.user_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("ir.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("ir.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("ir.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(ir.report_id) LIKE $%d OR LOWER(ir.place) LIKE $%d OR LOWER(u.full_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	cols := make([]string, 0, 9)
	for _, col := range strings.Split(reportColumns, ", ") {
		cols = append(cols, "ir."+col)
	}
	listQuery := fmt.Sprintf("SELECT %s, u.full_name AS reporter_name %s ORDER BY ir.created_at DESC LIMIT %d OFFSET %d", strings.Join(cols, ", "), baseQuery, pageSize, offset)

	var reports []models.IncidentReport
	if err := r.db.SelectContext(ctx, &reports, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list incident reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count incident reports: %w", err)
	}

	return reports, total, nil
}

// SetStatus moves a report to the given handling state. Any known state may
// follow any other.
func (r *ReportRepository) SetStatus(ctx context.Context, id string, status models.ReportStatus) (bool, error) {
	const query = `UPDATE incident_reports SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set report status: %w", err)
	}
	return rowsAffected(res)
}

// Delete removes a report regardless of state. Staff only.
func (r *ReportRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM incident_reports WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete incident report: %w", err)
	}
	return rowsAffected(res)
}

// Stats aggregates reports by handling state for the dashboard.
func (r *ReportRepository) Stats(ctx context.Context) (*models.ReportStats, error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE status = 'Pending') AS pending, COUNT(*) FILTER (WHERE status = 'Under Investigation') AS under_investigation, COUNT(*) FILTER (WHERE status = 'Mediation Scheduled') AS mediation_scheduled, COUNT(*) FILTER (WHERE status = 'Resolved') AS resolved FROM incident_reports`
	var stats models.ReportStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("report stats: %w", err)
	}
	return &stats, nil
}

// Recent returns the newest reports for the dashboard.
func (r *ReportRepository) Recent(ctx context.Context, limit int) ([]models.IncidentReport, error) {
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT `+reportColumns+` FROM incident_reports ORDER BY created_at DESC LIMIT %d`, limit)
	var reports []models.IncidentReport
	if err := r.db.SelectContext(ctx, &reports, query); err != nil {
		return nil, fmt.Errorf("recent incident reports: %w", err)
	}
	return reports, nil
}
