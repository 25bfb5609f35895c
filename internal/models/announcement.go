package models

import "time"

// AnnouncementType categorises portal announcements.
type AnnouncementType string

const (
	AnnouncementGeneral     AnnouncementType = "general"
	AnnouncementEvent       AnnouncementType = "event"
	AnnouncementAlert       AnnouncementType = "alert"
	AnnouncementMaintenance AnnouncementType = "maintenance"
)

// ValidAnnouncementType reports whether t is a known announcement type.
func ValidAnnouncementType(t AnnouncementType) bool {
	switch t {
	case AnnouncementGeneral, AnnouncementEvent, AnnouncementAlert, AnnouncementMaintenance:
		return true
	}
	return false
}

// Announcement represents a persisted announcement row. PostedBy is a weak
// reference: it becomes null when the posting account is removed.
type Announcement struct {
	ID        string           `db:"id" json:"id"`
	Title     string           `db:"title" json:"title"`
	Content   string           `db:"content" json:"content"`
	Type      AnnouncementType `db:"type" json:"type"`
	IsActive  bool             `db:"is_active" json:"is_active"`
	PostedBy  *string          `db:"posted_by" json:"posted_by,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`

	PosterName *string `db:"poster_name" json:"poster_name,omitempty"`
}

// CreateAnnouncementRequest is the staff payload for posting.
type CreateAnnouncementRequest struct {
	Title   string           `json:"title" validate:"required,min=3,max=200"`
	Content string           `json:"content" validate:"required,min=10"`
	Type    AnnouncementType `json:"type" validate:"required,oneof=general event alert maintenance"`
}

// UpdateAnnouncementRequest edits an existing announcement.
type UpdateAnnouncementRequest struct {
	Title    string           `json:"title" validate:"required,min=3,max=200"`
	Content  string           `json:"content" validate:"required,min=10"`
	Type     AnnouncementType `json:"type" validate:"required,oneof=general event alert maintenance"`
	IsActive *bool            `json:"is_active" validate:"required"`
}

// AnnouncementFilter captures listing criteria.
type AnnouncementFilter struct {
	Type       *AnnouncementType
	ActiveOnly bool
	Page       int
	PageSize   int
}
