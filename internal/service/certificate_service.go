package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/labang-online/portal-api/internal/models"
	"github.com/labang-online/portal-api/internal/repository"
	"github.com/labang-online/portal-api/pkg/config"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
	"github.com/labang-online/portal-api/pkg/export"
	"github.com/labang-online/portal-api/pkg/storage"
)

const (
	minPurposeLen      = 10
	maxIDAttempts      = 100
	counterRefPrefix   = "COUNTER-"
	minGCashRefLen     = 10
	exportPageSize     = 1000
	requestIDSeqDigits = 10000
)

type certificateRepository interface {
	MaxSequence(ctx context.Context, year int) (int, error)
	RequestIDExists(ctx context.Context, requestID string) (bool, error)
	Create(ctx context.Context, req *models.CertificateRequest) error
	FindByID(ctx context.Context, id string) (*models.CertificateRequest, error)
	FindOwned(ctx context.Context, id, userID string) (*models.CertificateRequest, error)
	List(ctx context.Context, filter models.CertificateFilter) ([]models.CertificateRequest, int, error)
	SetPaymentMode(ctx context.Context, id, userID string, mode models.PaymentMode) (bool, error)
	MarkPaymentPending(ctx context.Context, id, userID string, mode models.PaymentMode, reference string) (bool, error)
	VerifyPayment(ctx context.Context, id string, at time.Time) (bool, error)
	RejectPayment(ctx context.Context, id string) (bool, error)
	SetClaimStatus(ctx context.Context, id string, status models.ClaimStatus, at time.Time) (bool, error)
	DeleteUnpaid(ctx context.Context, id, userID string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Summary(ctx context.Context, userID string) (*models.CertificateSummary, error)
}

// CertificateService implements the certificate request lifecycle from
// filing through payment to claiming.
type CertificateService struct {
	repo      certificateRepository
	audits    auditRecorder
	store     storage.ObjectStore
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	fees      config.FeeSchedule
	bucket    string
	maxUpload int64
	allowed   map[string]bool
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCertificateService constructs a CertificateService instance.
func NewCertificateService(repo certificateRepository, audits auditRecorder, store storage.ObjectStore, fees config.FeeSchedule, bucket string, maxUpload int64, allowedMIMEs []string, validate *validator.Validate, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	allowed := make(map[string]bool, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		allowed[m] = true
	}
	return &CertificateService{
		repo:      repo,
		audits:    audits,
		store:     store,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		fees:      fees,
		bucket:    bucket,
		maxUpload: maxUpload,
		allowed:   allowed,
		validator: validate,
		logger:    logger,
	}
}

// FeeFor returns the configured fee for a certificate type.
func (s *CertificateService) FeeFor(t models.CertificateType) float64 {
	switch t {
	case models.CertBarangayClearance:
		return s.fees.BarangayClearance
	case models.CertResidency:
		return s.fees.Residency
	case models.CertIndigency:
		return s.fees.Indigency
	case models.CertGoodMoral:
		return s.fees.GoodMoral
	case models.CertBusinessClearance:
		return s.fees.BusinessClearance
	}
	return 0
}

// Create files a new certificate request. All validation runs before any
// write; the indigency proof photo is uploaded before the row exists so a
// failed upload leaves nothing behind.
func (s *CertificateService) Create(ctx context.Context, userID string, req models.CreateCertificateRequest, proofPhoto *PhotoUpload) (*models.CertificateRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}

	if !models.ValidCertificateType(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown certificate type")
	}

	purpose := strings.TrimSpace(req.Purpose)
	if len(purpose) < minPurposeLen {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("purpose must be at least %d characters", minPurposeLen))
	}

	row := &models.CertificateRequest{
		UserID:        userID,
		Type:          req.Type,
		Purpose:       purpose,
		Fee:           s.FeeFor(req.Type),
		PaymentStatus: models.PaymentUnpaid,
		ClaimStatus:   models.ClaimProcessing,
	}

	if req.Type == models.CertBusinessClearance {
		name := strings.TrimSpace(req.BusinessName)
		btype := strings.TrimSpace(req.BusinessType)
		nature := strings.TrimSpace(req.BusinessNature)
		addr := strings.TrimSpace(req.BusinessAddress)
		if name == "" || btype == "" || nature == "" || addr == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "business name, type, nature and address are all required")
		}
		if req.EmployeeCount == nil || *req.EmployeeCount < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "employee count must be a non-negative whole number")
		}
		row.BusinessName = &name
		row.BusinessType = &btype
		row.BusinessNature = &nature
		row.BusinessAddress = &addr
		row.EmployeeCount = req.EmployeeCount
	}

	if req.Type == models.CertIndigency {
		if proofPhoto == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "an indigency request needs a proof photo")
		}
		if int64(len(proofPhoto.Data)) > s.maxUpload {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("proof photo exceeds the %d MB limit", s.maxUpload/(1024*1024)))
		}
		if len(s.allowed) > 0 && !s.allowed[proofPhoto.ContentType] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "proof photo must be JPEG or PNG")
		}
		url, err := s.store.Upload(s.bucket, "indigency-proofs", proofPhoto.Filename, proofPhoto.Data)
		if err != nil {
			s.logger.Error("proof photo upload failed", zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrCollaborator.Code, appErrors.ErrCollaborator.Status, "could not store the proof photo")
		}
		row.ProofPhotoURL = &url
	}

	year := time.Now().UTC().Year()
	requestID, err := s.nextRequestID(ctx, year)
	if err != nil {
		return nil, err
	}
	row.RequestID = requestID

	if err := s.repo.Create(ctx, row); err != nil {
		if errors.Is(err, repository.ErrDuplicateRequestID) {
			// Lost the race for the identifier; regenerate once and retry.
			requestID, err = s.nextRequestID(ctx, year)
			if err != nil {
				return nil, err
			}
			row.RequestID = requestID
			err = s.repo.Create(ctx, row)
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to file the request")
		}
	}

	return row, nil
}

// nextRequestID proposes REQ-<year>-<seq> identifiers. It starts one past
// the highest issued suffix and, when that is taken, walks forward with a
// small random jitter so concurrent writers fan out instead of fighting
// over the same value. After maxIDAttempts it falls back to a
// millisecond-derived suffix; the unique constraint remains the final word.
func (s *CertificateService) nextRequestID(ctx context.Context, year int) (string, error) {
	max, err := s.repo.MaxSequence(ctx, year)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read the request sequence")
	}

	seq := max + 1
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		if attempt > 1 {
			seq += 1 + rand.Intn(10)
		}
		candidate := fmt.Sprintf("REQ-%d-%04d", year, seq%requestIDSeqDigits)
		taken, err := s.repo.RequestIDExists(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to probe the request sequence")
		}
		if !taken {
			return candidate, nil
		}
	}

	fallback := time.Now().UnixMilli() % requestIDSeqDigits
	s.logger.Warn("request id generation exhausted attempts, using time fallback", zap.Int("year", year))
	return fmt.Sprintf("REQ-%d-%04d", year, fallback), nil
}

// GetOwned returns the owner view of a request with its next action.
func (s *CertificateService) GetOwned(ctx context.Context, id, userID string) (*models.CertificateDetail, error) {
	row, err := s.repo.FindOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return &models.CertificateDetail{CertificateRequest: *row, NextAction: nextAction(row)}, nil
}

func nextAction(row *models.CertificateRequest) models.NextAction {
	switch row.PaymentStatus {
	case models.PaymentUnpaid, models.PaymentFailed:
		if row.PaymentMode == nil {
			return models.ActionSelectMode
		}
		if *row.PaymentMode == models.PaymentModeGCash {
			return models.ActionPayGCash
		}
		return models.ActionPayCounter
	case models.PaymentPending:
		return models.ActionAwaitVerify
	case models.PaymentPaid:
		if row.ClaimStatus != models.ClaimClaimed {
			return models.ActionAwaitClaim
		}
	}
	return models.ActionNone
}

// ListOwned returns the owner's requests with summary counts.
func (s *CertificateService) ListOwned(ctx context.Context, userID string, filter models.CertificateFilter) ([]models.CertificateRequest, *models.CertificateSummary, *models.Pagination, error) {
	filter.UserID = userID
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	summary, err := s.repo.Summary(ctx, userID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise requests")
	}
	return rows, summary, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListAll returns the staff register.
func (s *CertificateService) ListAll(ctx context.Context, filter models.CertificateFilter) ([]models.CertificateRequest, *models.Pagination, error) {
	filter.UserID = ""
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return rows, paginationFor(filter.Page, filter.PageSize, total), nil
}

// SelectPaymentMode records how the owner intends to pay. Re-selection is
// allowed until a payment is pending or settled.
func (s *CertificateService) SelectPaymentMode(ctx context.Context, id, userID string, req models.SelectPaymentModeRequest) (*models.CertificateRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment mode payload")
	}

	row, err := s.repo.FindOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	if row.PaymentStatus == models.PaymentPaid {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "this request is already paid")
	}
	if row.PaymentStatus == models.PaymentPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "a payment is already awaiting verification")
	}

	ok, err := s.repo.SetPaymentMode(ctx, id, userID, req.Mode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set payment mode")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "the request is not in a state that allows choosing a mode")
	}

	row.PaymentMode = &req.Mode
	return row, nil
}

// PayGCash submits a GCash reference for staff verification. The request
// must already have gcash selected as its mode.
func (s *CertificateService) PayGCash(ctx context.Context, id, userID string, req models.GCashPaymentRequest) (*models.CertificateRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("a GCash reference of at least %d characters is required", minGCashRefLen))
	}

	row, err := s.repo.FindOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	if row.PaymentMode == nil || *row.PaymentMode != models.PaymentModeGCash {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "select GCash as the payment mode first")
	}

	reference := strings.TrimSpace(req.Reference)
	ok, err := s.repo.MarkPaymentPending(ctx, id, userID, models.PaymentModeGCash, reference)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only unpaid or failed requests can submit a payment")
	}

	return s.reload(ctx, id, userID)
}

// PayCounter registers an over-the-counter payment intent. Counter is
// implicitly (re)selected as the mode and the reference is derived from the
// request identifier.
func (s *CertificateService) PayCounter(ctx context.Context, id, userID string) (*models.CertificateRequest, error) {
	row, err := s.repo.FindOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	reference := counterRefPrefix + row.RequestID
	ok, err := s.repo.MarkPaymentPending(ctx, id, userID, models.PaymentModeCounter, reference)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only unpaid or failed requests can submit a payment")
	}

	return s.reload(ctx, id, userID)
}

// VerifyPayment confirms a pending payment. Staff only.
func (s *CertificateService) VerifyPayment(ctx context.Context, actor *models.JWTClaims, id string) (*models.CertificateRequest, error) {
	if _, err := s.mustFind(ctx, id); err != nil {
		return nil, err
	}

	ok, err := s.repo.VerifyPayment(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify payment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending payments can be verified")
	}

	s.recordAudit(ctx, actor, models.AuditActionPaymentVerify, id, "")
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload request")
	}
	return row, nil
}

// RejectPayment fails a pending payment, failing the claim alongside it.
// Staff only.
func (s *CertificateService) RejectPayment(ctx context.Context, actor *models.JWTClaims, id string) (*models.CertificateRequest, error) {
	if _, err := s.mustFind(ctx, id); err != nil {
		return nil, err
	}

	ok, err := s.repo.RejectPayment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject payment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending payments can be rejected")
	}

	s.recordAudit(ctx, actor, models.AuditActionPaymentReject, id, "")
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload request")
	}
	return row, nil
}

// UpdateClaimStatus moves the claim axis. It is deliberately independent of
// the payment axis; the counter staff decide when a document is ready.
func (s *CertificateService) UpdateClaimStatus(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateClaimStatusRequest) (*models.CertificateRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid claim status payload")
	}
	if !models.ValidClaimStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown claim status")
	}

	if _, err := s.mustFind(ctx, id); err != nil {
		return nil, err
	}

	ok, err := s.repo.SetClaimStatus(ctx, id, req.Status, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update claim status")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}

	s.recordAudit(ctx, actor, models.AuditActionClaimStatusUpdate, id, string(req.Status))
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload request")
	}
	return row, nil
}

// Cancel lets the owner withdraw a request, but only while nothing has been
// paid. Fees are not refundable once money is in flight.
func (s *CertificateService) Cancel(ctx context.Context, id, userID string) error {
	if _, err := s.repo.FindOwned(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	ok, err := s.repo.DeleteUnpaid(ctx, id, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNoRefund, "")
	}
	return nil
}

// Delete removes a request regardless of state. Staff only.
func (s *CertificateService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	s.recordAudit(ctx, actor, models.AuditActionRequestDelete, id, "")
	return nil
}

// Export renders the filtered register as CSV or PDF bytes.
func (s *CertificateService) Export(ctx context.Context, filter models.CertificateFilter, format string) ([]byte, string, error) {
	filter.UserID = ""
	filter.Page = 1
	filter.PageSize = exportPageSize
	rows, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load the register")
	}

	reg := export.Register{
		Title:   "Certificate Request Register",
		Columns: []string{"Request ID", "Requester", "Type", "Purpose", "Fee", "Payment", "Claim", "Filed"},
	}
	for _, row := range rows {
		requester := ""
		if row.RequesterName != nil {
			requester = *row.RequesterName
		}
		reg.Rows = append(reg.Rows, []string{
			row.RequestID,
			requester,
			string(row.Type),
			row.Purpose,
			fmt.Sprintf("%.2f", row.Fee),
			string(row.PaymentStatus),
			string(row.ClaimStatus),
			row.CreatedAt.Format("2006-01-02"),
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

func (s *CertificateService) mustFind(ctx context.Context, id string) (*models.CertificateRequest, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return row, nil
}

func (s *CertificateService) reload(ctx context.Context, id, userID string) (*models.CertificateRequest, error) {
	row, err := s.repo.FindOwned(ctx, id, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload request")
	}
	return row, nil
}

func (s *CertificateService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID, detail string) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "certificate_requests",
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

func paginationFor(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
