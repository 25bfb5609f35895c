package main

import (
	"github.com/gin-gonic/gin"

	"github.com/labang-online/portal-api/internal/handler"
	"github.com/labang-online/portal-api/internal/middleware"
	"github.com/labang-online/portal-api/internal/models"
	"github.com/labang-online/portal-api/internal/service"
)

type routeHandlers struct {
	auth         *handler.AuthHandler
	user         *handler.UserHandler
	certificate  *handler.CertificateHandler
	report       *handler.ReportHandler
	announcement *handler.AnnouncementHandler
	chat         *handler.ChatHandler
	dashboard    *handler.DashboardHandler
}

func registerRoutes(api *gin.RouterGroup, authSvc *service.AuthService, h routeHandlers) {
	// Public.
	auth := api.Group("/auth")
	auth.POST("/register", h.auth.Register)
	auth.POST("/login", h.auth.Login)
	auth.POST("/forgot-password", h.auth.ForgotPassword)
	auth.POST("/verify-reset-code", h.auth.VerifyResetCode)
	auth.POST("/reset-password", h.auth.ResetPassword)

	api.GET("/announcements", middleware.OptionalJWT(authSvc), h.announcement.List)
	api.GET("/announcements/active-count", h.announcement.ActiveCount)
	api.GET("/certificates/fees", h.certificate.Fees)

	// Authenticated.
	secured := api.Group("", middleware.JWT(authSvc))
	secured.POST("/auth/change-password", h.auth.ChangePassword)
	secured.GET("/auth/me", h.auth.Me)

	secured.GET("/users/me", h.user.GetProfile)
	secured.PUT("/users/me", h.user.UpdateProfile)

	secured.POST("/certificates", h.certificate.Create)
	secured.GET("/certificates", h.certificate.ListOwn)
	secured.GET("/certificates/:id", h.certificate.Get)
	secured.DELETE("/certificates/:id", h.certificate.Cancel)
	secured.PUT("/certificates/:id/payment-mode", h.certificate.SelectPaymentMode)
	secured.POST("/certificates/:id/pay/gcash", h.certificate.PayGCash)
	secured.POST("/certificates/:id/pay/counter", h.certificate.PayCounter)

	secured.POST("/reports", h.report.Create)
	secured.GET("/reports", h.report.ListOwn)
	secured.GET("/reports/:id", h.report.Get)

	secured.POST("/chat", h.chat.Ask)

	// Staff and admin.
	admin := secured.Group("/admin", middleware.RequireStaff())
	admin.GET("/dashboard", h.dashboard.Overview)

	admin.GET("/users", h.user.List)
	admin.GET("/users/:id", h.user.Get)
	admin.POST("/users/:id/verify", h.user.Verify)
	admin.DELETE("/users/:id/verify", h.user.Unverify)

	admin.GET("/certificates", h.certificate.ListAll)
	admin.GET("/certificates/export", h.certificate.Export)
	admin.POST("/certificates/:id/payment/verify", h.certificate.VerifyPayment)
	admin.POST("/certificates/:id/payment/reject", h.certificate.RejectPayment)
	admin.PUT("/certificates/:id/claim-status", h.certificate.UpdateClaimStatus)
	admin.DELETE("/certificates/:id", h.certificate.Delete)

	admin.GET("/reports", h.report.ListAll)
	admin.GET("/reports/export", h.report.Export)
	admin.PUT("/reports/:id/status", h.report.UpdateStatus)
	admin.DELETE("/reports/:id", h.report.Delete)

	admin.POST("/announcements", h.announcement.Create)
	admin.PUT("/announcements/:id", h.announcement.Update)
	admin.POST("/announcements/:id/toggle", h.announcement.ToggleActive)
	admin.DELETE("/announcements/:id", h.announcement.Delete)

	// Role and activation changes are admin-only.
	superuser := secured.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	superuser.PUT("/users/:id/role", h.user.ChangeRole)
	superuser.PUT("/users/:id/active", h.user.SetActive)
}
