package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labang-online/portal-api/internal/models"
)

func TestMaxSequence(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(CAST(RIGHT(request_id, 4) AS INTEGER)), 0) FROM certificate_requests WHERE request_id LIKE $1`)).
		WithArgs("REQ-2026-%").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(41))

	max, err := repo.MaxSequence(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, 41, max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCertificateRequestDuplicateID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec("INSERT INTO certificate_requests").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "certificate_requests_request_id_key"})

	err := repo.Create(context.Background(), &models.CertificateRequest{
		RequestID:     "REQ-2026-0042",
		UserID:        "u1",
		Type:          models.CertResidency,
		Purpose:       "employment requirement",
		Fee:           30,
		PaymentStatus: models.PaymentUnpaid,
		ClaimStatus:   models.ClaimProcessing,
	})
	assert.ErrorIs(t, err, ErrDuplicateRequestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPaymentOnlyPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE certificate_requests SET payment_status = 'paid', paid_at = $2, updated_at = $2 WHERE id = $1 AND payment_status = 'pending'`)).
		WithArgs("c1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.VerifyPayment(context.Background(), "c1", at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPaymentNoRowWhenNotPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE certificate_requests SET payment_status = 'paid'").
		WithArgs("c1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.VerifyPayment(context.Background(), "c1", at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectPaymentFailsClaimToo(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE certificate_requests SET payment_status = 'failed', claim_status = 'failed', updated_at = $2 WHERE id = $1 AND payment_status = 'pending'`)).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.RejectPayment(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUnpaidGuard(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM certificate_requests WHERE id = $1 AND user_id = $2 AND payment_status = 'unpaid'`)).
		WithArgs("c1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.DeleteUnpaid(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetClaimStatusStampsClaimedAt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE certificate_requests SET claim_status = $2, claimed_at = $3, updated_at = $4 WHERE id = $1`)).
		WithArgs("c1", string(models.ClaimClaimed), sqlmock.AnyArg(), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.SetClaimStatus(context.Background(), "c1", models.ClaimClaimed, at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateSummary(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery("SELECT COUNT.* FROM certificate_requests WHERE user_id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "unpaid", "pending", "paid", "failed"}).AddRow(4, 1, 1, 2, 0))

	summary, err := repo.Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Paid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
