package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/labang-online/portal-api/api/swagger"
	"github.com/labang-online/portal-api/internal/handler"
	"github.com/labang-online/portal-api/internal/middleware"
	"github.com/labang-online/portal-api/internal/repository"
	"github.com/labang-online/portal-api/internal/service"
	"github.com/labang-online/portal-api/pkg/cache"
	"github.com/labang-online/portal-api/pkg/config"
	"github.com/labang-online/portal-api/pkg/database"
	"github.com/labang-online/portal-api/pkg/genai"
	"github.com/labang-online/portal-api/pkg/logger"
	"github.com/labang-online/portal-api/pkg/mailer"
	corsmiddleware "github.com/labang-online/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/labang-online/portal-api/pkg/middleware/requestid"
	"github.com/labang-online/portal-api/pkg/storage"
)

// @title Labang Online Portal API
// @version 1.0.0
// @description Barangay e-government portal API
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStore(cfg.Storage.BaseDir, cfg.Storage.BaseURL)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	resetCodeRepo := repository.NewResetCodeRepository(db)
	certRepo := repository.NewCertificateRepository(db)
	reportRepo := repository.NewReportRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	mail := mailer.NewSMTP(cfg.Email)
	chatBackend := genai.New(cfg.Chat)

	authSvc := service.NewAuthService(userRepo, resetCodeRepo, cacheRepo, auditRepo, mail, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		ResetCodeTTL:      cfg.Reset.CodeTTL,
		ResetSessionTTL:   cfg.Reset.SessionTTL,
	})
	userSvc := service.NewUserService(userRepo, auditRepo, store, cfg.Storage.Bucket, cfg.Storage.MaxUploadBytes, cfg.Storage.AllowedMIMEs, validate, logr)
	certSvc := service.NewCertificateService(certRepo, auditRepo, store, cfg.Fees, cfg.Storage.Bucket, cfg.Storage.MaxUploadBytes, cfg.Storage.AllowedMIMEs, validate, logr)
	reportSvc := service.NewReportService(reportRepo, auditRepo, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, cacheRepo, validate, logr)
	chatSvc := service.NewChatService(chatBackend, userRepo, metricsSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(userRepo, certRepo, reportRepo, logr)

	// Handlers.
	handlers := routeHandlers{
		auth:         handler.NewAuthHandler(authSvc),
		user:         handler.NewUserHandler(userSvc),
		certificate:  handler.NewCertificateHandler(certSvc),
		report:       handler.NewReportHandler(reportSvc),
		announcement: handler.NewAnnouncementHandler(announcementSvc),
		chat:         handler.NewChatHandler(chatSvc),
		dashboard:    handler.NewDashboardHandler(dashboardSvc),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	r.Static("/uploads", cfg.Storage.BaseDir)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), authSvc, handlers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
