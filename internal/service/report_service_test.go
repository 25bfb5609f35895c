package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/labang-online/portal-api/internal/models"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
)

type mockReportRepo struct {
	rows map[string]*models.IncidentReport
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{rows: map[string]*models.IncidentReport{}}
}

func (m *mockReportRepo) Create(ctx context.Context, report *models.IncidentReport) error {
	report.ID = fmt.Sprintf("row%d", len(m.rows)+1)
	m.rows[report.ID] = report
	return nil
}

func (m *mockReportRepo) FindByID(ctx context.Context, id string) (*models.IncidentReport, error) {
	if row, ok := m.rows[id]; ok {
		return row, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportRepo) FindOwned(ctx context.Context, id, userID string) (*models.IncidentReport, error) {
	row, ok := m.rows[id]
	if !ok || row.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

func (m *mockReportRepo) List(ctx context.Context, filter models.ReportFilter) ([]models.IncidentReport, int, error) {
	var out []models.IncidentReport
	for _, row := range m.rows {
		if filter.UserID != "" && row.UserID != filter.UserID {
			continue
		}
		out = append(out, *row)
	}
	return out, len(out), nil
}

func (m *mockReportRepo) SetStatus(ctx context.Context, id string, status models.ReportStatus) (bool, error) {
	row, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	row.Status = status
	return true, nil
}

func (m *mockReportRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func newReportService(repo *mockReportRepo) *ReportService {
	return NewReportService(repo, &mockAudit{}, validator.New(), zap.NewNop())
}

func TestFileReportAssignsID(t *testing.T) {
	svc := newReportService(newMockReportRepo())

	report, err := svc.Create(context.Background(), "u1", models.CreateReportRequest{
		Type:    models.ReportTheft,
		Place:   "Purok 3 covered court",
		Message: "A bicycle was taken from the court last night.",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^RPT-[0-9A-F]{8}$`, report.ReportID)
	assert.Equal(t, models.ReportPending, report.Status)
}

func TestFileReportMessageBoundary(t *testing.T) {
	svc := newReportService(newMockReportRepo())

	// Nineteen characters after trimming is one short.
	_, err := svc.Create(context.Background(), "u1", models.CreateReportRequest{
		Type:    models.ReportOther,
		Place:   "Purok 3 court",
		Message: "  " + strings.Repeat("a", 19) + "  ",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	report, err := svc.Create(context.Background(), "u1", models.CreateReportRequest{
		Type:    models.ReportOther,
		Place:   "Purok 3 court",
		Message: strings.Repeat("a", 20),
	})
	require.NoError(t, err)
	assert.Len(t, report.Message, 20)
}

func TestFileReportPlaceBoundary(t *testing.T) {
	svc := newReportService(newMockReportRepo())

	_, err := svc.Create(context.Background(), "u1", models.CreateReportRequest{
		Type:    models.ReportDisturbance,
		Place:   " four ",
		Message: "Loud karaoke past midnight again tonight.",
	})
	require.Error(t, err)

	report, err := svc.Create(context.Background(), "u1", models.CreateReportRequest{
		Type:    models.ReportDisturbance,
		Place:   "corner",
		Message: "Loud karaoke past midnight again tonight.",
	})
	require.NoError(t, err)
	assert.Equal(t, "corner", report.Place)
}

func TestFileReportRejectsUnknownType(t *testing.T) {
	svc := newReportService(newMockReportRepo())

	_, err := svc.Create(context.Background(), "u1", models.CreateReportRequest{
		Type:    "Arson",
		Place:   "Purok 3 court",
		Message: "Something happened near the covered court.",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStaffMovesReportBetweenAnyStates(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(repo)

	report, err := svc.Create(context.Background(), "u1", models.CreateReportRequest{
		Type:    models.ReportAssault,
		Place:   "Sitio Ibaba waiting shed",
		Message: "A fistfight broke out near the waiting shed.",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), nil, report.ID, models.UpdateReportStatusRequest{Status: models.ReportResolved})
	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, updated.Status)

	// Moving backwards is allowed.
	updated, err = svc.UpdateStatus(context.Background(), nil, report.ID, models.UpdateReportStatusRequest{Status: models.ReportUnderInvestigation})
	require.NoError(t, err)
	assert.Equal(t, models.ReportUnderInvestigation, updated.Status)

	_, err = svc.UpdateStatus(context.Background(), nil, report.ID, models.UpdateReportStatusRequest{Status: "Closed"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReporterCannotReadForeignReport(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(repo)

	report, err := svc.Create(context.Background(), "u1", models.CreateReportRequest{
		Type:    models.ReportVandalism,
		Place:   "Barangay hall wall",
		Message: "Graffiti appeared on the wall over the weekend.",
	})
	require.NoError(t, err)

	_, err = svc.GetOwned(context.Background(), report.ID, "u2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportExportPDF(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(repo)

	_, err := svc.Create(context.Background(), "u1", models.CreateReportRequest{
		Type:    models.ReportTheft,
		Place:   "Purok 3 covered court",
		Message: "A bicycle was taken from the court last night.",
	})
	require.NoError(t, err)

	data, contentType, err := svc.Export(context.Background(), models.ReportFilter{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}
