package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	internalmiddleware "github.com/labang-online/portal-api/internal/middleware"
	"github.com/labang-online/portal-api/internal/models"
	"github.com/labang-online/portal-api/internal/service"
)

func TestPortalRoutesIntegration(t *testing.T) {
	router := buildPortalRouter()

	t.Run("announcements are public", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/announcements", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("report create requires auth", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("report create success", func(t *testing.T) {
		payload := `{"type":"Theft","place":"Purok 3, Labang","message":"A bicycle was taken from outside the sari-sari store last night."}`
		req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleResident))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Contains(t, resp.Body.String(), `"report_id":"RPT-`)
	})

	t.Run("report create rejects short message", func(t *testing.T) {
		payload := `{"type":"Theft","place":"Purok 3","message":"too short"}`
		req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleResident))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("admin report list forbidden for residents", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/admin/reports", nil)
		req.Header.Set("X-Test-Role", string(models.RoleResident))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("admin report list allowed for staff", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/admin/reports", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStaff))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("announcement create forbidden for residents", func(t *testing.T) {
		payload := `{"title":"Fiesta","content":"Schedule of the town fiesta events.","type":"event"}`
		req, _ := http.NewRequest(http.MethodPost, "/admin/announcements", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleResident))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("announcement create success for staff", func(t *testing.T) {
		payload := `{"title":"Water interruption","content":"Supply is off from 8am to 5pm Tuesday.","type":"alert"}`
		req, _ := http.NewRequest(http.MethodPost, "/admin/announcements", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleStaff))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)

		var envelope struct {
			Data models.Announcement `json:"data"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
		require.True(t, envelope.Data.IsActive)
	})
}

func buildPortalRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{
				UserID:   "test-user",
				Username: "tester",
				Role:     models.UserRole(role),
			})
		}
		c.Next()
	})

	reportSvc := service.NewReportService(newReportRepoStub(), auditStub{}, nil, zap.NewNop())
	announcementSvc := service.NewAnnouncementService(newAnnouncementRepoStub(), cacheStub{}, nil, zap.NewNop())

	reportHandler := NewReportHandler(reportSvc)
	announcementHandler := NewAnnouncementHandler(announcementSvc)

	router.GET("/announcements", announcementHandler.List)

	secured := router.Group("", requireClaims())
	secured.POST("/reports", reportHandler.Create)

	admin := secured.Group("/admin", internalmiddleware.RequireStaff())
	admin.GET("/reports", reportHandler.ListAll)
	admin.POST("/announcements", announcementHandler.Create)

	return router
}

// requireClaims stands in for the JWT middleware in tests.
func requireClaims() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claimsFromContext(c) == nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type reportRepoStub struct {
	rows map[string]*models.IncidentReport
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{rows: map[string]*models.IncidentReport{}}
}

func (m *reportRepoStub) Create(ctx context.Context, report *models.IncidentReport) error {
	report.ID = fmt.Sprintf("r%d", len(m.rows)+1)
	report.CreatedAt = time.Now()
	m.rows[report.ID] = report
	return nil
}

func (m *reportRepoStub) FindByID(ctx context.Context, id string) (*models.IncidentReport, error) {
	if r, ok := m.rows[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *reportRepoStub) FindOwned(ctx context.Context, id, userID string) (*models.IncidentReport, error) {
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func (m *reportRepoStub) List(ctx context.Context, filter models.ReportFilter) ([]models.IncidentReport, int, error) {
	var out []models.IncidentReport
	for _, r := range m.rows {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *reportRepoStub) SetStatus(ctx context.Context, id string, status models.ReportStatus) (bool, error) {
	r, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	r.Status = status
	return true, nil
}

func (m *reportRepoStub) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

type announcementRepoStub struct {
	rows map[string]*models.Announcement
}

func newAnnouncementRepoStub() *announcementRepoStub {
	return &announcementRepoStub{rows: map[string]*models.Announcement{}}
}

func (m *announcementRepoStub) Create(ctx context.Context, a *models.Announcement) error {
	a.ID = fmt.Sprintf("a%d", len(m.rows)+1)
	a.CreatedAt = time.Now()
	m.rows[a.ID] = a
	return nil
}

func (m *announcementRepoStub) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	if a, ok := m.rows[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *announcementRepoStub) Update(ctx context.Context, a *models.Announcement) error {
	if _, ok := m.rows[a.ID]; !ok {
		return sql.ErrNoRows
	}
	m.rows[a.ID] = a
	return nil
}

func (m *announcementRepoStub) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	a, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	a.IsActive = active
	return true, nil
}

func (m *announcementRepoStub) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *announcementRepoStub) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	var out []models.Announcement
	for _, a := range m.rows {
		if filter.ActiveOnly && !a.IsActive {
			continue
		}
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (m *announcementRepoStub) CountActive(ctx context.Context) (int, error) {
	count := 0
	for _, a := range m.rows {
		if a.IsActive {
			count++
		}
	}
	return count, nil
}

type auditStub struct{}

func (auditStub) Create(ctx context.Context, entry *models.AuditLog) error { return nil }

type cacheStub struct{}

func (cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	return sql.ErrNoRows
}

func (cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (cacheStub) Delete(ctx context.Context, key string) error { return nil }
