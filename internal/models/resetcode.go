package models

import "time"

// ResetCodeTTL is the validity window of an emailed reset code.
const ResetCodeTTL = 5 * time.Minute

// PasswordResetCode is a single-use 6-digit code emailed to a user. Issuing
// a new code does not invalidate earlier ones; each stays usable until it
// expires or is consumed.
type PasswordResetCode struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Code      string    `db:"code" json:"-"`
	IsUsed    bool      `db:"is_used" json:"is_used"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsValidAt reports whether the code can still be consumed at the given
// instant: never used and no older than the TTL.
func (c *PasswordResetCode) IsValidAt(now time.Time) bool {
	if c == nil || c.IsUsed {
		return false
	}
	return now.Sub(c.CreatedAt) <= ResetCodeTTL
}
