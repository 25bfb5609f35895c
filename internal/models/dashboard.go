package models

// DashboardStats aggregates portal activity for the staff dashboard.
type DashboardStats struct {
	Users        UserStats        `json:"users"`
	Certificates CertificateStats `json:"certificates"`
	Reports      ReportStats      `json:"reports"`

	RecentRequests []CertificateRequest `json:"recent_requests"`
	RecentReports  []IncidentReport     `json:"recent_reports"`
}

// UserStats counts accounts by verification state.
type UserStats struct {
	Total      int `db:"total" json:"total"`
	Verified   int `db:"verified" json:"verified"`
	Unverified int `db:"unverified" json:"unverified"`
}

// CertificateStats counts requests by payment status.
type CertificateStats struct {
	Total   int `db:"total" json:"total"`
	Unpaid  int `db:"unpaid" json:"unpaid"`
	Pending int `db:"pending" json:"pending"`
	Paid    int `db:"paid" json:"paid"`
	Failed  int `db:"failed" json:"failed"`
}

// ReportStats counts incident reports by handling state.
type ReportStats struct {
	Total              int `db:"total" json:"total"`
	Pending            int `db:"pending" json:"pending"`
	UnderInvestigation int `db:"under_investigation" json:"under_investigation"`
	MediationScheduled int `db:"mediation_scheduled" json:"mediation_scheduled"`
	Resolved           int `db:"resolved" json:"resolved"`
}
