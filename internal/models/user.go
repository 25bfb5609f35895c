package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleResident UserRole = "RESIDENT"
	RoleStaff    UserRole = "STAFF"
	RoleAdmin    UserRole = "ADMIN"
)

// IsStaff reports whether the role may use the staff surface.
func (r UserRole) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// User represents a portal account stored in the users table.
type User struct {
	ID                   string     `db:"id" json:"id"`
	Username             string     `db:"username" json:"username"`
	Email                string     `db:"email" json:"email"`
	PasswordHash         string     `db:"password_hash" json:"-"`
	FullName             string     `db:"full_name" json:"full_name"`
	ContactNumber        string     `db:"contact_number" json:"contact_number"`
	DateOfBirth          *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	AddressLine          string     `db:"address_line" json:"address_line"`
	Barangay             string     `db:"barangay" json:"barangay"`
	City                 string     `db:"city" json:"city"`
	Province             string     `db:"province" json:"province"`
	PostalCode           string     `db:"postal_code" json:"postal_code"`
	Role                 UserRole   `db:"role" json:"role"`
	ResidentConfirmed    bool       `db:"resident_confirmed" json:"resident_confirmed"`
	Active               bool       `db:"active" json:"active"`
	ProfilePhotoURL      *string    `db:"profile_photo_url" json:"profile_photo_url,omitempty"`
	ResidentIDPhotoURL   *string    `db:"resident_id_photo_url" json:"resident_id_photo_url,omitempty"`
	LastLogin            *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role              *UserRole
	Active            *bool
	ResidentConfirmed *bool
	Search            string
	Page              int
	PageSize          int
	SortBy            string
	SortOrder         string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// UpdateProfileRequest carries the fields a resident may edit on their own
// account. Photo uploads travel separately as multipart files.
type UpdateProfileRequest struct {
	Username      string `json:"username" form:"username" validate:"required,min=3,max=50"`
	FullName      string `json:"full_name" form:"full_name" validate:"required,min=2,max=120"`
	ContactNumber string `json:"contact_number" form:"contact_number" validate:"omitempty,max=20"`
	DateOfBirth   string `json:"date_of_birth" form:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	AddressLine   string `json:"address_line" form:"address_line" validate:"omitempty,max=255"`
	Barangay      string `json:"barangay" form:"barangay" validate:"omitempty,max=100"`
	City          string `json:"city" form:"city" validate:"omitempty,max=100"`
	Province      string `json:"province" form:"province" validate:"omitempty,max=100"`
	PostalCode    string `json:"postal_code" form:"postal_code" validate:"omitempty,max=10"`
}

// ChangeRoleRequest is the staff payload for moving a user between roles.
type ChangeRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=RESIDENT STAFF ADMIN"`
}

// SetActiveRequest toggles whether an account may log in.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}
