package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/serene-scheduler/api/swagger"
	"github.com/noah-isme/serene-scheduler/internal/bootstrap"
	"github.com/noah-isme/serene-scheduler/internal/handler"
	internalmiddleware "github.com/noah-isme/serene-scheduler/internal/middleware"
	"github.com/noah-isme/serene-scheduler/internal/repository"
	"github.com/noah-isme/serene-scheduler/internal/scheduler"
	"github.com/noah-isme/serene-scheduler/internal/service"
	"github.com/noah-isme/serene-scheduler/pkg/config"
	"github.com/noah-isme/serene-scheduler/pkg/export"
	"github.com/noah-isme/serene-scheduler/pkg/jobs"
	"github.com/noah-isme/serene-scheduler/pkg/logger"
	corsmiddleware "github.com/noah-isme/serene-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/serene-scheduler/pkg/middleware/requestid"
)

// @title Serene Scheduler API
// @version 1.0.0
// @description Timetable generation, publication and temporary rescheduling for sections, teachers and students.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open storage", zap.Error(err))
	}
	defer backends.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()
	state := repository.NewStateRepository(backends.Datasets, metrics)

	var cacheRepo service.CacheRepository
	if backends.Cache != nil {
		cacheRepo = backends.Cache
	}
	generationCache := service.NewGenerationCache(cacheRepo, metrics, cfg.Scheduler.CacheTTL, logr, cfg.Scheduler.CacheEnabled)
	timetableSvc := service.NewTimetableService(scheduler.NewGenerator(logr), generationCache, metrics, validate, logr, service.GenerationDefaults{
		MaxLecturesPerDayTeacher:    cfg.Scheduler.MaxLecturesPerDayTeacher,
		MaxLecturesPerSubjectPerDay: cfg.Scheduler.MaxLecturesPerSubjectDay,
		MaxLecturesPerDaySection:    cfg.Scheduler.MaxLecturesPerDaySection,
		LabSessionDuration:          cfg.Scheduler.LabSessionDuration,
		LabCapacity:                 cfg.Scheduler.LabCapacity,
	})
	activitySvc := service.NewActivityService(state, cfg.Activity.Retention, logr)
	authSvc := service.NewAuthService(state, validate, logr, service.AuthConfig{
		AccessTokenSecret:      cfg.JWT.Secret,
		AccessTokenExpiry:      cfg.JWT.Expiration,
		Issuer:                 cfg.JWT.Issuer,
		DefaultAdminUsername:   cfg.Auth.DefaultAdminUsername,
		DefaultAdminPassword:   cfg.Auth.DefaultAdminPassword,
		DefaultTeacherPassword: cfg.Auth.DefaultTeacherPassword,
		DefaultStudentPassword: cfg.Auth.DefaultStudentPassword,
	})
	publicationSvc := service.NewPublicationService(state, activitySvc, authSvc, metrics, logr)
	rescheduleSvc := service.NewRescheduleService(publicationSvc, state, activitySvc, validate, logr)
	exportSvc := service.NewExportService(publicationSvc, export.NewCSVExporter(), export.NewPDFExporter(), validate, logr)

	expiryWorker := service.NewExpiryWorker(publicationSvc, logr)
	expiryQueue := jobs.NewQueue("expiry", expiryWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Expiry.Concurrency,
		MaxRetries: cfg.Expiry.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	expiryQueue.Start(ctx)
	defer expiryQueue.Stop()

	if cfg.Expiry.Enabled {
		sweeper, err := service.NewExpirySweeper(expiryQueue, cfg.Expiry.Spec, logr)
		if err != nil {
			logr.Fatal("failed to schedule expiry sweeper", zap.Error(err))
		}
		sweeper.Start()
		defer sweeper.Stop()
		// Catch up on anything that expired while the process was down.
		sweeper.Tick()
	}

	probes := make(map[string]handler.ReadinessProbe, len(backends.Probes))
	for name, probe := range backends.Probes {
		probes[name] = probe
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	handler.RegisterRoutes(r, cfg.APIPrefix, authSvc, handler.Handlers{
		Timetable: handler.NewTimetableHandler(timetableSvc, publicationSvc, exportSvc),
		Teacher:   handler.NewTeacherHandler(publicationSvc, rescheduleSvc),
		Student:   handler.NewStudentHandler(publicationSvc),
		Admin:     handler.NewAdminHandler(rescheduleSvc, activitySvc, authSvc),
		Auth:      handler.NewAuthHandler(authSvc),
		Metrics:   handler.NewMetricsHandler(metrics, probes),
	})

	if cfg.EnableDocs && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown", zap.Error(err))
	}
}
