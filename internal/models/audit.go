package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionPasswordChange    = "PASSWORD_CHANGE"
	AuditActionPasswordReset     = "PASSWORD_RESET"
	AuditActionUserVerify        = "USER_VERIFY"
	AuditActionUserActivate      = "USER_ACTIVATE"
	AuditActionUserDeactivate    = "USER_DEACTIVATE"
	AuditActionRoleChange        = "ROLE_CHANGE"
	AuditActionPaymentVerify     = "PAYMENT_VERIFY"
	AuditActionPaymentReject     = "PAYMENT_REJECT"
	AuditActionClaimStatusUpdate = "CLAIM_STATUS_UPDATE"
	AuditActionRequestDelete     = "REQUEST_DELETE"
	AuditActionReportStatus      = "REPORT_STATUS_UPDATE"
	AuditActionReportDelete      = "REPORT_DELETE"
)

// AuditLog represents an audit trail record for staff and auth actions.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Detail     string    `db:"detail" json:"detail,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
