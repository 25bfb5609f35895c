package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labang-online/portal-api/internal/models"
)

func TestCreateResetCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetCodeRepository(db)

	mock.ExpectExec("INSERT INTO password_reset_codes").WillReturnResult(sqlmock.NewResult(1, 1))

	code := &models.PasswordResetCode{UserID: "u1", Code: "483920"}
	err := repo.Create(context.Background(), code)
	require.NoError(t, err)
	assert.NotEmpty(t, code.ID)
	assert.False(t, code.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUnusedPicksNewest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetCodeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, code, is_used, created_at FROM password_reset_codes WHERE user_id = $1 AND code = $2 AND is_used = false ORDER BY created_at DESC LIMIT 1`)).
		WithArgs("u1", "483920").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "code", "is_used", "created_at"}).
			AddRow("rc1", "u1", "483920", false, now))

	rc, err := repo.FindUnused(context.Background(), "u1", "483920")
	require.NoError(t, err)
	assert.Equal(t, "rc1", rc.ID)
	assert.False(t, rc.IsUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkUsedIsGuarded(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetCodeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE password_reset_codes SET is_used = true WHERE id = $1 AND is_used = false`)).
		WithArgs("rc1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE password_reset_codes SET is_used = true WHERE id = $1 AND is_used = false`)).
		WithArgs("rc1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkUsed(context.Background(), "rc1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsed(context.Background(), "rc1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
