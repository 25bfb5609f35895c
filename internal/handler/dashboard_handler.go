package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/labang-online/portal-api/internal/service"
	"github.com/labang-online/portal-api/pkg/response"
)

// DashboardHandler exposes the staff overview endpoint.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Overview godoc
// @Summary Staff dashboard overview
// @Description Aggregated counts plus recent requests and reports
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	stats, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}
