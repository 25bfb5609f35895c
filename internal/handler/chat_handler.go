package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/labang-online/portal-api/internal/models"
	"github.com/labang-online/portal-api/internal/service"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
	"github.com/labang-online/portal-api/pkg/response"
)

// ChatHandler exposes the assistant endpoint.
type ChatHandler struct {
	service *service.ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// Ask godoc
// @Summary Ask the barangay assistant
// @Description Send a message to the portal assistant and get a reply
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body models.ChatRequest true "Chat message"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /chat [post]
func (h *ChatHandler) Ask(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chat payload"))
		return
	}

	res, err := h.service.Ask(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}
