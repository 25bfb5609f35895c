package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/labang-online/portal-api/internal/models"
	"github.com/labang-online/portal-api/internal/service"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
	"github.com/labang-online/portal-api/pkg/response"
)

// CertificateHandler exposes certificate request endpoints.
type CertificateHandler struct {
	service *service.CertificateService
}

// NewCertificateHandler creates a new certificate handler.
func NewCertificateHandler(svc *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{service: svc}
}

// Create godoc
// @Summary Request a certificate
// @Description File a certificate request, with a proof photo for indigency
// @Tags Certificates
// @Accept mpfd
// @Produce json
// @Param type formData string true "Certificate type"
// @Param purpose formData string true "Purpose"
// @Param proof_photo formData file false "Indigency proof photo"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /certificates [post]
func (h *CertificateHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateCertificateRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid certificate payload"))
		return
	}

	proofPhoto, err := photoFromForm(c, "proof_photo")
	if err != nil {
		response.Error(c, err)
		return
	}

	cert, err := h.service.Create(c.Request.Context(), claims.UserID, req, proofPhoto)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, cert)
}

// Fees godoc
// @Summary Certificate fee schedule
// @Description Returns the fee for each certificate type
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /certificates/fees [get]
func (h *CertificateHandler) Fees(c *gin.Context) {
	fees := make(map[models.CertificateType]float64, len(models.CertificateTypes))
	for _, t := range models.CertificateTypes {
		fees[t] = h.service.FeeFor(t)
	}
	response.JSON(c, http.StatusOK, fees, nil)
}

// Get godoc
// @Summary Get own certificate request
// @Description Returns a certificate request with its next required action
// @Tags Certificates
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.service.GetOwned(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// ListOwn godoc
// @Summary List own certificate requests
// @Description List the caller's requests with a payment summary
// @Tags Certificates
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param type query string false "Certificate type filter"
// @Param payment_status query string false "Payment status filter"
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) ListOwn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := certificateFilterFromQuery(c)
	requests, summary, pagination, err := h.service.ListOwned(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, pagination, map[string]interface{}{"summary": summary})
}

// ListAll godoc
// @Summary List all certificate requests
// @Description Staff view of every certificate request
// @Tags Certificates
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param type query string false "Certificate type filter"
// @Param payment_status query string false "Payment status filter"
// @Param claim_status query string false "Claim status filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/certificates [get]
func (h *CertificateHandler) ListAll(c *gin.Context) {
	filter := certificateFilterFromQuery(c)
	requests, pagination, err := h.service.ListAll(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, pagination)
}

// SelectPaymentMode godoc
// @Summary Select payment mode
// @Description Choose gcash or counter payment for an unpaid request
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.SelectPaymentModeRequest true "Payment mode"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /certificates/{id}/payment-mode [put]
func (h *CertificateHandler) SelectPaymentMode(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.SelectPaymentModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	cert, err := h.service.SelectPaymentMode(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cert, nil)
}

// PayGCash godoc
// @Summary Submit GCash reference
// @Description Submit a GCash reference number, moving payment to pending
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.GCashPaymentRequest true "GCash reference"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /certificates/{id}/pay/gcash [post]
func (h *CertificateHandler) PayGCash(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.GCashPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	cert, err := h.service.PayGCash(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cert, nil)
}

// PayCounter godoc
// @Summary Register counter payment intent
// @Description Generate a counter reference and move payment to pending
// @Tags Certificates
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /certificates/{id}/pay/counter [post]
func (h *CertificateHandler) PayCounter(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	cert, err := h.service.PayCounter(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cert, nil)
}

// VerifyPayment godoc
// @Summary Verify pending payment
// @Description Staff confirms a pending payment as paid
// @Tags Certificates
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /admin/certificates/{id}/payment/verify [post]
func (h *CertificateHandler) VerifyPayment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	cert, err := h.service.VerifyPayment(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cert, nil)
}

// RejectPayment godoc
// @Summary Reject pending payment
// @Description Staff marks a pending payment as failed
// @Tags Certificates
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /admin/certificates/{id}/payment/reject [post]
func (h *CertificateHandler) RejectPayment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	cert, err := h.service.RejectPayment(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cert, nil)
}

// UpdateClaimStatus godoc
// @Summary Update claim status
// @Description Staff moves a request through the claim lifecycle
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.UpdateClaimStatusRequest true "Claim status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/certificates/{id}/claim-status [put]
func (h *CertificateHandler) UpdateClaimStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateClaimStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	cert, err := h.service.UpdateClaimStatus(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cert, nil)
}

// Cancel godoc
// @Summary Cancel own unpaid request
// @Description Delete an own certificate request while it is still unpaid
// @Tags Certificates
// @Produce json
// @Param id path string true "Request ID"
// @Success 204 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /certificates/{id} [delete]
func (h *CertificateHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Delete godoc
// @Summary Delete certificate request
// @Description Staff removes a certificate request regardless of state
// @Tags Certificates
// @Produce json
// @Param id path string true "Request ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/certificates/{id} [delete]
func (h *CertificateHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Export godoc
// @Summary Export certificate requests
// @Description Download certificate requests as CSV or PDF
// @Tags Certificates
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/certificates/export [get]
func (h *CertificateHandler) Export(c *gin.Context) {
	filter := certificateFilterFromQuery(c)
	format := c.DefaultQuery("format", "csv")

	data, contentType, err := h.service.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("certificate-requests-%s.%s", time.Now().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func certificateFilterFromQuery(c *gin.Context) models.CertificateFilter {
	var filter models.CertificateFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	if t := c.Query("type"); t != "" {
		v := models.CertificateType(t)
		filter.Type = &v
	}
	if ps := c.Query("payment_status"); ps != "" {
		v := models.PaymentStatus(ps)
		filter.PaymentStatus = &v
	}
	if cs := c.Query("claim_status"); cs != "" {
		v := models.ClaimStatus(cs)
		filter.ClaimStatus = &v
	}
	if pm := c.Query("payment_mode"); pm != "" {
		v := models.PaymentMode(pm)
		filter.PaymentMode = &v
	}

	filter.Search = c.Query("search")
	return filter
}
