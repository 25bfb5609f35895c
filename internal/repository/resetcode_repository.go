package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/labang-online/portal-api/internal/models"
)

// ResetCodeRepository stores password reset codes.
type ResetCodeRepository struct {
	db *sqlx.DB
}

// NewResetCodeRepository creates a new instance of ResetCodeRepository.
func NewResetCodeRepository(db *sqlx.DB) *ResetCodeRepository {
	return &ResetCodeRepository{db: db}
}

// Create inserts a fresh reset code. Earlier codes for the same user are
// left alone; each remains usable until consumed or expired.
func (r *ResetCodeRepository) Create(ctx context.Context, code *models.PasswordResetCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO password_reset_codes (id, user_id, code, is_used, created_at) VALUES (:id, :user_id, :code, :is_used, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, code); err != nil {
		return fmt.Errorf("create reset code: %w", err)
	}
	return nil
}

// FindUnused returns the newest unused code row matching the user and code
// value. Expiry is the caller's concern.
func (r *ResetCodeRepository) FindUnused(ctx context.Context, userID, code string) (*models.PasswordResetCode, error) {
	const query = `SELECT id, user_id, code, is_used, created_at FROM password_reset_codes WHERE user_id = $1 AND code = $2 AND is_used = false ORDER BY created_at DESC LIMIT 1`
	var rc models.PasswordResetCode
	if err := r.db.GetContext(ctx, &rc, query, userID, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reset code: %w", err)
	}
	return &rc, nil
}

// FindByID returns a reset code row by id.
func (r *ResetCodeRepository) FindByID(ctx context.Context, id string) (*models.PasswordResetCode, error) {
	const query = `SELECT id, user_id, code, is_used, created_at FROM password_reset_codes WHERE id = $1 LIMIT 1`
	var rc models.PasswordResetCode
	if err := r.db.GetContext(ctx, &rc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reset code by id: %w", err)
	}
	return &rc, nil
}

// MarkUsed consumes a code. The is_used guard in the predicate makes the
// consume idempotence-safe: a second attempt affects zero rows.
func (r *ResetCodeRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE password_reset_codes SET is_used = true WHERE id = $1 AND is_used = false`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark reset code used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reset code used: %w", err)
	}
	return n > 0, nil
}
