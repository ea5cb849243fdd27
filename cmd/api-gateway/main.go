package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/spayyavula/campuspandit-sub007/internal/handler"
	"github.com/spayyavula/campuspandit-sub007/internal/middleware"
	"github.com/spayyavula/campuspandit-sub007/internal/notify"
	"github.com/spayyavula/campuspandit-sub007/internal/repository"
	"github.com/spayyavula/campuspandit-sub007/internal/service"
	"github.com/spayyavula/campuspandit-sub007/pkg/cache"
	"github.com/spayyavula/campuspandit-sub007/pkg/clock"
	"github.com/spayyavula/campuspandit-sub007/pkg/config"
	"github.com/spayyavula/campuspandit-sub007/pkg/database"
	"github.com/spayyavula/campuspandit-sub007/pkg/logger"
	corsmiddleware "github.com/spayyavula/campuspandit-sub007/pkg/middleware/cors"
	reqidmiddleware "github.com/spayyavula/campuspandit-sub007/pkg/middleware/requestid"
)

// @title CampusPandit Scheduling API
// @version 1.0.0
// @description Tutoring session scheduling: availability, slots, bookings, reminders and rollups
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
		logr.Sugar().Fatalw("postgres connect failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connect failed", "error", err)
	}
	defer redisClient.Close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	// Repositories.
	ruleRepo := repository.NewAvailabilityRepository(db)
	blockRepo := repository.NewTimeBlockRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	noShowRepo := repository.NewNoShowRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	clk := clock.System{}

	// Services.
	tokenSvc := service.NewTokenService(cfg.JWT)
	metricsSvc := service.NewMetricsService()
	slotSvc := service.NewSlotService(ruleRepo, blockRepo, cacheRepo, clk, cfg.Slots, logr)
	availabilitySvc := service.NewAvailabilityService(ruleRepo, blockRepo, validate, logr)
	noShowSvc := service.NewNoShowService(noShowRepo, service.StudentFeePolicy{Fraction: 0.5}, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheRepo, cfg.Analytics, logr)

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify, logr)
	}
	reminderSvc := service.NewReminderService(reminderRepo, reminderRepo, sessionRepo, notifier, cfg.Reminders, clk, metricsSvc, logr)

	bookingSvc := service.NewBookingService(sessionRepo, slotSvc, noShowSvc, analyticsSvc, reminderSvc, metricsSvc, clk, validate, logr)

	// Handlers.
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	slotHandler := handler.NewSlotHandler(slotSvc, metricsSvc)
	sessionHandler := handler.NewSessionHandler(bookingSvc, noShowSvc)
	reminderHandler := handler.NewReminderHandler(reminderSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.HealthCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	// Slot discovery is read-only and safe to expose without auth.
	r.GET(cfg.APIPrefix+"/tutors/:id/slots", slotHandler.Resolve)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))
	{
		availability := api.Group("/availability")
		{
			availability.POST("/rules", availabilityHandler.UpsertRule)
			availability.GET("/rules", availabilityHandler.ListRules)
			availability.DELETE("/rules/:id", availabilityHandler.DeleteRule)
			availability.POST("/blocks", availabilityHandler.CreateBlock)
			availability.GET("/blocks", availabilityHandler.ListBlocks)
			availability.DELETE("/blocks/:id", availabilityHandler.DeleteBlock)
		}

		sessions := api.Group("/sessions")
		{
			sessions.POST("", sessionHandler.Book)
			sessions.GET("", sessionHandler.List)
			sessions.GET("/:id", sessionHandler.Get)
			sessions.POST("/:id/confirm", sessionHandler.Confirm)
			sessions.POST("/:id/start", sessionHandler.Start)
			sessions.POST("/:id/complete", sessionHandler.Complete)
			sessions.POST("/:id/cancel", sessionHandler.Cancel)
			sessions.POST("/:id/reschedule", sessionHandler.Reschedule)
			sessions.POST("/:id/no-show", sessionHandler.MarkNoShow)
			sessions.PUT("/:id/payment", sessionHandler.RecordPayment)
			sessions.PUT("/:id/materials", sessionHandler.UpdateMaterials)
			sessions.GET("/:id/reminders", reminderHandler.ListBySession)
		}

		reminders := api.Group("/reminders")
		{
			reminders.GET("/preferences", reminderHandler.GetPreferences)
			reminders.PUT("/preferences", reminderHandler.UpdatePreferences)
			reminders.POST("/:id/open", reminderHandler.RecordOpen)
			reminders.POST("/:id/click", reminderHandler.RecordClick)
		}

		api.GET("/analytics/rollups", analyticsHandler.GetRollups)
		api.GET("/no-shows", sessionHandler.NoShowHistory)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanner := service.NewReminderScanner(reminderSvc, cfg.Reminders.ScanInterval, logr)
	scannerDone := make(chan struct{})
	if cfg.Reminders.Enabled {
		go func() {
			defer close(scannerDone)
			scanner.Run(ctx)
		}()
	} else {
		close(scannerDone)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	<-scannerDone

	logr.Sugar().Infow("server stopped")
}
