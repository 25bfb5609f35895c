package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/labang-online/portal-api/internal/models"
)

const announcementColumns = `id, title, content, type, is_active, posted_by, created_at, updated_at`

// AnnouncementRepository provides database access for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates a new instance of AnnouncementRepository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	const query = `INSERT INTO announcements (id, title, content, type, is_active, posted_by, created_at, updated_at) VALUES (:id, :title, :content, :type, :is_active, :posted_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// FindByID returns an announcement by id.
func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE id = $1 LIMIT 1`
	var a models.Announcement
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find announcement: %w", err)
	}
	return &a, nil
}

// Update persists edits to an announcement.
func (r *AnnouncementRepository) Update(ctx context.Context, a *models.Announcement) error {
	a.UpdatedAt = time.Now().UTC()
	const query = `UPDATE announcements SET title = :title, content = :content, type = :type, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetActive toggles the visibility flag.
func (r *AnnouncementRepository) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	const query = `UPDATE announcements SET is_active = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set announcement active: %w", err)
	}
	return rowsAffected(res)
}

// Delete removes an announcement.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM announcements WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete announcement: %w", err)
	}
	return rowsAffected(res)
}

// List returns announcements matching the filter with total count, joining
// the poster name for display.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	baseQuery := `FROM announcements a LEFT JOIN users u ON u.id = a.posted_by WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("a.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "a.is_active = true")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	cols := make([]string, 0, 8)
	for _, col := range strings.Split(announcementColumns, ", ") {
		cols = append(cols, "a."+col)
	}
	listQuery := fmt.Sprintf("SELECT %s, u.full_name AS poster_name %s ORDER BY a.created_at DESC LIMIT %d OFFSET %d", strings.Join(cols, ", "), baseQuery, pageSize, offset)

	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}

	return announcements, total, nil
}

// CountActive counts currently visible announcements.
func (r *AnnouncementRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM announcements WHERE is_active = true`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count active announcements: %w", err)
	}
	return total, nil
}
