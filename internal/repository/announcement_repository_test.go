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

func TestCreateAnnouncement(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec("INSERT INTO announcements").WillReturnResult(sqlmock.NewResult(1, 1))

	poster := "staff1"
	a := &models.Announcement{Title: "Brigada Eskwela", Content: "Volunteers needed this Saturday at the covered court.", Type: models.AnnouncementEvent, IsActive: true, PostedBy: &poster}
	err := repo.Create(context.Background(), a)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveAnnouncements(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM announcements a LEFT JOIN users u ON u.id = a.posted_by WHERE 1=1 AND a.is_active = true ORDER BY a.created_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "type", "is_active", "posted_by", "created_at", "updated_at", "poster_name"}).
			AddRow("a1", "Water interruption", "Supply will be off from 8am to 5pm on Tuesday.", string(models.AnnouncementAlert), true, nil, now, now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements a LEFT JOIN users u ON u.id = a.posted_by WHERE 1=1 AND a.is_active = true")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.AnnouncementFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAnnouncementActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE announcements SET is_active = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("a1", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.SetActive(context.Background(), "a1", false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
