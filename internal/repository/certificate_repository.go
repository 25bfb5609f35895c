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

// ErrDuplicateRequestID reports that an insert lost the race for a
// human-facing request identifier. Callers regenerate and retry once.
var ErrDuplicateRequestID = errors.New("request id already taken")

const certificateColumns = `id, request_id, user_id, type, purpose, fee, payment_status, claim_status, payment_mode, payment_ref, paid_at, claimed_at, proof_photo_url, business_name, business_type, business_nature, business_address, employee_count, created_at, updated_at`

// CertificateRepository provides database access for certificate requests.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository creates a new instance of CertificateRepository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// MaxSequence returns the highest 4-digit suffix already issued for the
// given year, or zero when the year has no requests yet.
func (r *CertificateRepository) MaxSequence(ctx context.Context, year int) (int, error) {
	const query = `SELECT COALESCE(MAX(CAST(RIGHT(request_id, 4) AS INTEGER)), 0) FROM certificate_requests WHERE request_id LIKE $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, fmt.Sprintf("REQ-%d-%%", year)); err != nil {
		return 0, fmt.Errorf("max request sequence: %w", err)
	}
	return max, nil
}

// RequestIDExists reports whether a human-facing identifier is taken.
func (r *CertificateRepository) RequestIDExists(ctx context.Context, requestID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM certificate_requests WHERE request_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, requestID); err != nil {
		return false, fmt.Errorf("request id exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new certificate request. A unique-constraint violation on
// request_id surfaces as ErrDuplicateRequestID.
func (r *CertificateRepository) Create(ctx context.Context, req *models.CertificateRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now

	const query = `INSERT INTO certificate_requests (id, request_id, user_id, type, purpose, fee, payment_status, claim_status, payment_mode, payment_ref, proof_photo_url, business_name, business_type, business_nature, business_address, employee_count, created_at, updated_at) VALUES (:id, :request_id, :user_id, :type, :purpose, :fee, :payment_status, :claim_status, :payment_mode, :payment_ref, :proof_photo_url, :business_name, :business_type, :business_nature, :business_address, :employee_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && strings.Contains(pqErr.Constraint, "request_id") {
			return ErrDuplicateRequestID
		}
		return fmt.Errorf("create certificate request: %w", err)
	}
	return nil
}

// FindByID returns a request by row id.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.CertificateRequest, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificate_requests WHERE id = $1 LIMIT 1`
	var req models.CertificateRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate request: %w", err)
	}
	return &req, nil
}

// FindOwned returns a request only when it belongs to the given user, so a
// foreign id reads as not found.
func (r *CertificateRepository) FindOwned(ctx context.Context, id, userID string) (*models.CertificateRequest, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificate_requests WHERE id = $1 AND user_id = $2 LIMIT 1`
	var req models.CertificateRequest
	if err := r.db.GetContext(ctx, &req, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find owned certificate request: %w", err)
	}
	return &req, nil
}

// List returns requests matching the filter with total count. An empty
// filter UserID lists across owners for the staff register, joining the
// requester name.
func (r *CertificateRepository) List(ctx context.Context, filter models.CertificateFilter) ([]models.CertificateRequest, int, error) {
	baseQuery := `FROM certificate_requests cr LEFT JOIN users u ON u.id = cr.user_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("cr.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.PaymentStatus != nil {
		conditions = append(conditions, fmt.Sprintf("cr.payment_status = $%d", len(args)+1))
		args = append(args, *filter.PaymentStatus)
	}
	if filter.ClaimStatus != nil {
		conditions = append(conditions, fmt.Sprintf("cr.claim_status = $%d", len(args)+1))
		args = append(args, *filter.ClaimStatus)
	}
	if filter.PaymentMode != nil {
		conditions = append(conditions, fmt.Sprintf("cr.payment_mode = $%d", len(args)+1))
		args = append(args, *filter.PaymentMode)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(cr.request_id) LIKE $%d OR LOWER(cr.purpose) LIKE $%d OR LOWER(u.full_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
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

	cols := make([]string, 0, 20)
	for _, col := range strings.Split(certificateColumns, ", ") {
		cols = append(cols, "cr."+col)
	}
	listQuery := fmt.Sprintf("SELECT %s, u.full_name AS requester_name %s ORDER BY cr.created_at DESC LIMIT %d OFFSET %d", strings.Join(cols, ", "), baseQuery, pageSize, offset)

	var requests []models.CertificateRequest
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list certificate requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count certificate requests: %w", err)
	}

	return requests, total, nil
}

// SetPaymentMode records the chosen mode. The predicate excludes pending and
// paid rows, so re-selection stays possible only before money is in flight.
func (r *CertificateRepository) SetPaymentMode(ctx context.Context, id, userID string, mode models.PaymentMode) (bool, error) {
	const query = `UPDATE certificate_requests SET payment_mode = $3, updated_at = $4 WHERE id = $1 AND user_id = $2 AND payment_status NOT IN ('pending', 'paid')`
	res, err := r.db.ExecContext(ctx, query, id, userID, mode, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set payment mode: %w", err)
	}
	return rowsAffected(res)
}

// MarkPaymentPending moves unpaid or failed rows to pending, storing the
// payment mode and reference in the same statement.
func (r *CertificateRepository) MarkPaymentPending(ctx context.Context, id, userID string, mode models.PaymentMode, reference string) (bool, error) {
	const query = `UPDATE certificate_requests SET payment_status = 'pending', payment_mode = $3, payment_ref = $4, updated_at = $5 WHERE id = $1 AND user_id = $2 AND payment_status IN ('unpaid', 'failed')`
	res, err := r.db.ExecContext(ctx, query, id, userID, mode, reference, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark payment pending: %w", err)
	}
	return rowsAffected(res)
}

// VerifyPayment confirms a pending payment, stamping paid_at. A non-pending
// row is untouched and the update reports false.
func (r *CertificateRepository) VerifyPayment(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE certificate_requests SET payment_status = 'paid', paid_at = $2, updated_at = $2 WHERE id = $1 AND payment_status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("verify payment: %w", err)
	}
	return rowsAffected(res)
}

// RejectPayment fails a pending payment and fails the claim with it in one
// statement.
func (r *CertificateRepository) RejectPayment(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE certificate_requests SET payment_status = 'failed', claim_status = 'failed', updated_at = $2 WHERE id = $1 AND payment_status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("reject payment: %w", err)
	}
	return rowsAffected(res)
}

// SetClaimStatus updates the claim axis. claimed_at is stamped when the new
// status is claimed and cleared otherwise.
func (r *CertificateRepository) SetClaimStatus(ctx context.Context, id string, status models.ClaimStatus, at time.Time) (bool, error) {
	var claimedAt *time.Time
	if status == models.ClaimClaimed {
		claimedAt = &at
	}
	const query = `UPDATE certificate_requests SET claim_status = $2, claimed_at = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, claimedAt, at)
	if err != nil {
		return false, fmt.Errorf("set claim status: %w", err)
	}
	return rowsAffected(res)
}

// DeleteUnpaid removes an owner's request only while nothing has been paid.
func (r *CertificateRepository) DeleteUnpaid(ctx context.Context, id, userID string) (bool, error) {
	const query = `DELETE FROM certificate_requests WHERE id = $1 AND user_id = $2 AND payment_status = 'unpaid'`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete unpaid certificate request: %w", err)
	}
	return rowsAffected(res)
}

// Delete removes a request regardless of state. Staff only.
func (r *CertificateRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM certificate_requests WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete certificate request: %w", err)
	}
	return rowsAffected(res)
}

// Summary aggregates an owner's requests by payment status.
func (r *CertificateRepository) Summary(ctx context.Context, userID string) (*models.CertificateSummary, error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE payment_status = 'unpaid') AS unpaid, COUNT(*) FILTER (WHERE payment_status = 'pending') AS pending, COUNT(*) FILTER (WHERE payment_status = 'paid') AS paid, COUNT(*) FILTER (WHERE payment_status = 'failed') AS failed FROM certificate_requests WHERE user_id = $1`
	var summary models.CertificateSummary
	if err := r.db.GetContext(ctx, &summary, query, userID); err != nil {
		return nil, fmt.Errorf("certificate summary: %w", err)
	}
	return &summary, nil
}

// Stats aggregates all requests by payment status for the dashboard.
func (r *CertificateRepository) Stats(ctx context.Context) (*models.CertificateStats, error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE payment_status = 'unpaid') AS unpaid, COUNT(*) FILTER (WHERE payment_status = 'pending') AS pending, COUNT(*) FILTER (WHERE payment_status = 'paid') AS paid, COUNT(*) FILTER (WHERE payment_status = 'failed') AS failed FROM certificate_requests`
	var stats models.CertificateStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("certificate stats: %w", err)
	}
	return &stats, nil
}

// Recent returns the newest requests for the dashboard.
func (r *CertificateRepository) Recent(ctx context.Context, limit int) ([]models.CertificateRequest, error) {
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT `+certificateColumns+` FROM certificate_requests ORDER BY created_at DESC LIMIT %d`, limit)
	var requests []models.CertificateRequest
	if err := r.db.SelectContext(ctx, &requests, query); err != nil {
		return nil, fmt.Errorf("recent certificate requests: %w", err)
	}
	return requests, nil
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
