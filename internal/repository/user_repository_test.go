package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labang-online/portal-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "full_name", "contact_number",
		"date_of_birth", "address_line", "barangay", "city", "province", "postal_code",
		"role", "resident_confirmed", "active", "profile_photo_url", "resident_id_photo_url",
		"last_login", "created_at", "updated_at",
	}).AddRow(
		"u1", "juandc", "juan@example.com", "hash", "Juan Dela Cruz", "09171234567",
		nil, "Purok 3", "Labang", "Cagayan de Oro", "Misamis Oriental", "9000",
		string(models.RoleResident), true, true, nil, nil,
		now, now, now,
	)
}

func TestFindByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1) LIMIT 1`)).
		WithArgs("juandc").
		WillReturnRows(userRows(time.Now()))

	user, err := repo.FindByUsername(context.Background(), "juandc")
	require.NoError(t, err)
	assert.Equal(t, "juandc", user.Username)
	assert.Equal(t, models.RoleResident, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{Username: "juandc", Email: "juan@example.com", PasswordHash: "hash", FullName: "Juan Dela Cruz", Role: models.RoleResident, Active: true}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersWithSearch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT .* FROM users WHERE 1=1 AND .*LIKE.* ORDER BY created_at DESC LIMIT 20 OFFSET 0").
		WithArgs("%juan%").
		WillReturnRows(userRows(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND")).
		WithArgs("%juan%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{Search: "Juan"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAdminsExcludesGivenID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users WHERE role = $1 AND active = true AND id <> $2`)).
		WithArgs(string(models.RoleAdmin), "u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	total, err := repo.CountAdmins(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetResidentConfirmedMissingUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users SET resident_confirmed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetResidentConfirmed(context.Background(), "missing", true)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
