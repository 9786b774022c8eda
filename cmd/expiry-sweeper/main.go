package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/bootstrap"
	"github.com/noah-isme/serene-scheduler/internal/repository"
	"github.com/noah-isme/serene-scheduler/internal/service"
	"github.com/noah-isme/serene-scheduler/pkg/config"
	"github.com/noah-isme/serene-scheduler/pkg/jobs"
	"github.com/noah-isme/serene-scheduler/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "refresh expired modifications once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// The generation cache belongs to the API process.
	cfg.Scheduler.CacheEnabled = false

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	logr = logr.Named("expiry-sweeper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open storage", zap.Error(err))
	}
	defer backends.Close()

	metrics := service.NewMetricsService()
	state := repository.NewStateRepository(backends.Datasets, metrics)
	activity := service.NewActivityService(state, cfg.Activity.Retention, logr)
	publications := service.NewPublicationService(state, activity, nil, metrics, logr)

	if *once {
		expired, err := publications.RefreshExpired(ctx)
		if err != nil {
			logr.Fatal("refresh failed", zap.Error(err))
		}
		logr.Info("refresh complete", zap.Int("expired", expired))
		return
	}

	worker := service.NewExpiryWorker(publications, logr)
	queue := jobs.NewQueue("expiry", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Expiry.Concurrency,
		MaxRetries: cfg.Expiry.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	sweeper, err := service.NewExpirySweeper(queue, cfg.Expiry.Spec, logr)
	if err != nil {
		logr.Fatal("failed to schedule expiry sweeper", zap.Error(err))
	}
	sweeper.Start()
	sweeper.Tick()

	<-ctx.Done()
	logr.Info("shutting down")
	<-sweeper.Stop().Done()
	queue.Stop()
}
