package models

import "time"

// CertificateType enumerates the documents the barangay issues.
type CertificateType string

const (
	CertBarangayClearance CertificateType = "barangay_clearance"
	CertResidency         CertificateType = "residency"
	CertIndigency         CertificateType = "indigency"
	CertGoodMoral         CertificateType = "good_moral"
	CertBusinessClearance CertificateType = "business_clearance"
)

// CertificateTypes lists every issuable document type.
var CertificateTypes = []CertificateType{
	CertBarangayClearance,
	CertResidency,
	CertIndigency,
	CertGoodMoral,
	CertBusinessClearance,
}

// ValidCertificateType reports whether t is a known certificate type.
func ValidCertificateType(t CertificateType) bool {
	switch t {
	case CertBarangayClearance, CertResidency, CertIndigency, CertGoodMoral, CertBusinessClearance:
		return true
	}
	return false
}

// PaymentStatus tracks the payment axis of a certificate request.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// ClaimStatus tracks the document-preparation axis, independent of payment.
type ClaimStatus string

const (
	ClaimProcessing ClaimStatus = "processing"
	ClaimReady      ClaimStatus = "ready"
	ClaimClaimed    ClaimStatus = "claimed"
	ClaimFailed     ClaimStatus = "failed"
)

// ValidClaimStatus reports whether s is a known claim status.
func ValidClaimStatus(s ClaimStatus) bool {
	switch s {
	case ClaimProcessing, ClaimReady, ClaimClaimed, ClaimFailed:
		return true
	}
	return false
}

// PaymentMode is how the resident intends to settle the fee.
type PaymentMode string

const (
	PaymentModeGCash   PaymentMode = "gcash"
	PaymentModeCounter PaymentMode = "counter"
)

// CertificateRequest is a persisted certificate request row. RequestID is
// the human-facing identifier (REQ-<year>-<seq>) and carries a unique
// constraint; ID is the internal row key.
type CertificateRequest struct {
	ID            string          `db:"id" json:"id"`
	RequestID     string          `db:"request_id" json:"request_id"`
	UserID        string          `db:"user_id" json:"user_id"`
	Type          CertificateType `db:"type" json:"type"`
	Purpose       string          `db:"purpose" json:"purpose"`
	Fee           float64         `db:"fee" json:"fee"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"payment_status"`
	ClaimStatus   ClaimStatus     `db:"claim_status" json:"claim_status"`
	PaymentMode   *PaymentMode    `db:"payment_mode" json:"payment_mode,omitempty"`
	PaymentRef    *string         `db:"payment_ref" json:"payment_ref,omitempty"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	ClaimedAt     *time.Time      `db:"claimed_at" json:"claimed_at,omitempty"`

	// Indigency proof, uploaded before the row exists.
	ProofPhotoURL *string `db:"proof_photo_url" json:"proof_photo_url,omitempty"`

	// Business clearance details, empty for other types.
	BusinessName    *string `db:"business_name" json:"business_name,omitempty"`
	BusinessType    *string `db:"business_type" json:"business_type,omitempty"`
	BusinessNature  *string `db:"business_nature" json:"business_nature,omitempty"`
	BusinessAddress *string `db:"business_address" json:"business_address,omitempty"`
	EmployeeCount   *int    `db:"employee_count" json:"employee_count,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Joined for staff register views.
	RequesterName *string `db:"requester_name" json:"requester_name,omitempty"`
}

// CreateCertificateRequest is the resident payload for a new request. The
// business fields are required only for business_clearance; the indigency
// proof photo arrives as a multipart file alongside this payload.
type CreateCertificateRequest struct {
	Type    CertificateType `json:"type" form:"type" validate:"required"`
	Purpose string          `json:"purpose" form:"purpose" validate:"required"`

	BusinessName    string `json:"business_name" form:"business_name"`
	BusinessType    string `json:"business_type" form:"business_type"`
	BusinessNature  string `json:"business_nature" form:"business_nature"`
	BusinessAddress string `json:"business_address" form:"business_address"`
	EmployeeCount   *int   `json:"employee_count" form:"employee_count"`
}

// SelectPaymentModeRequest picks or re-picks how the fee will be settled.
type SelectPaymentModeRequest struct {
	Mode PaymentMode `json:"mode" validate:"required,oneof=gcash counter"`
}

// GCashPaymentRequest submits a GCash reference number for verification.
type GCashPaymentRequest struct {
	Reference string `json:"reference" validate:"required,min=10"`
}

// UpdateClaimStatusRequest is the staff payload for the claim axis.
type UpdateClaimStatusRequest struct {
	Status ClaimStatus `json:"status" validate:"required,oneof=processing ready claimed failed"`
}

// CertificateFilter captures listing criteria for certificate requests.
type CertificateFilter struct {
	UserID        string
	Type          *CertificateType
	PaymentStatus *PaymentStatus
	ClaimStatus   *ClaimStatus
	PaymentMode   *PaymentMode
	Search        string
	Page          int
	PageSize      int
}

// CertificateSummary aggregates an owner's requests by payment status.
type CertificateSummary struct {
	Total   int `db:"total" json:"total"`
	Unpaid  int `db:"unpaid" json:"unpaid"`
	Pending int `db:"pending" json:"pending"`
	Paid    int `db:"paid" json:"paid"`
	Failed  int `db:"failed" json:"failed"`
}

// NextAction tells the owner what the request is waiting on.
type NextAction string

const (
	ActionSelectMode  NextAction = "select_payment_mode"
	ActionPayGCash    NextAction = "submit_gcash_reference"
	ActionPayCounter  NextAction = "pay_at_counter"
	ActionAwaitVerify NextAction = "awaiting_verification"
	ActionAwaitClaim  NextAction = "awaiting_claim"
	ActionNone        NextAction = "none"
)

// CertificateDetail is the owner view of a single request.
type CertificateDetail struct {
	CertificateRequest
	NextAction NextAction `json:"next_action"`
}
