package models

import "time"

// ReportType enumerates the incident categories residents may file.
type ReportType string

const (
	ReportTheft       ReportType = "Theft"
	ReportAssault     ReportType = "Assault"
	ReportVandalism   ReportType = "Vandalism"
	ReportDisturbance ReportType = "Disturbance"
	ReportOther       ReportType = "Other"
)

// ValidReportType reports whether t is a known incident category.
func ValidReportType(t ReportType) bool {
	switch t {
	case ReportTheft, ReportAssault, ReportVandalism, ReportDisturbance, ReportOther:
		return true
	}
	return false
}

// ReportStatus is the handling state of an incident report. Staff may move a
// report between any two statuses.
type ReportStatus string

const (
	ReportPending            ReportStatus = "Pending"
	ReportUnderInvestigation ReportStatus = "Under Investigation"
	ReportMediationScheduled ReportStatus = "Mediation Scheduled"
	ReportResolved           ReportStatus = "Resolved"
)

// ValidReportStatus reports whether s is a known handling state.
func ValidReportStatus(s ReportStatus) bool {
	switch s {
	case ReportPending, ReportUnderInvestigation, ReportMediationScheduled, ReportResolved:
		return true
	}
	return false
}

// IncidentReport is a persisted incident report row. ReportID is the
// human-facing identifier (RPT-XXXXXXXX) with a unique constraint.
type IncidentReport struct {
	ID        string       `db:"id" json:"id"`
	ReportID  string       `db:"report_id" json:"report_id"`
	UserID    string       `db:"user_id" json:"user_id"`
	Type      ReportType   `db:"type" json:"type"`
	Place     string       `db:"place" json:"place"`
	Message   string       `db:"message" json:"message"`
	Status    ReportStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`

	// Joined for staff register views.
	ReporterName *string `db:"reporter_name" json:"reporter_name,omitempty"`
}

// CreateReportRequest is the resident payload for filing an incident.
type CreateReportRequest struct {
	Type    ReportType `json:"type" validate:"required"`
	Place   string     `json:"place" validate:"required"`
	Message string     `json:"message" validate:"required"`
}

// UpdateReportStatusRequest is the staff payload for the handling state.
type UpdateReportStatusRequest struct {
	Status ReportStatus `json:"status" validate:"required"`
}

// ReportFilter captures listing criteria for incident reports.
type ReportFilter struct {
	UserID   string
	Type     *ReportType
	Status   *ReportStatus
	Search   string
	Page     int
	PageSize int
}
