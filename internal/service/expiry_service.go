package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/pkg/jobs"
)

// ExpiryJobType identifies refresh jobs on the expiry queue.
const ExpiryJobType = "refresh_expired_modifications"

// midnightSpec fires right after modifications expire.
const midnightSpec = "0 0 * * *"

type jobDispatcher interface {
	Enqueue(job jobs.Job) (bool, error)
}

type expiryRefresher interface {
	RefreshExpired(ctx context.Context) (int, error)
}

// ExpiryWorker bridges queue jobs to PublicationService.RefreshExpired.
type ExpiryWorker struct {
	refresher expiryRefresher
	logger    *zap.Logger
}

// NewExpiryWorker constructs a worker.
func NewExpiryWorker(refresher expiryRefresher, logger *zap.Logger) *ExpiryWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryWorker{refresher: refresher, logger: logger}
}

// Handle processes a queue job. Errors are returned so the queue retries them.
func (w *ExpiryWorker) Handle(ctx context.Context, job jobs.Job) error {
	expired, err := w.refresher.RefreshExpired(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		w.logger.Info("expired modifications removed",
			zap.String("job_id", job.ID),
			zap.Int("expired", expired),
			zap.Int("attempt", job.Attempt))
	}
	return nil
}

// ExpirySweeper schedules refresh jobs on a cron spec and at every UTC midnight.
type ExpirySweeper struct {
	cron   *cron.Cron
	queue  jobDispatcher
	logger *zap.Logger
}

// NewExpirySweeper registers the schedule. An empty spec only keeps the midnight run.
func NewExpirySweeper(queue jobDispatcher, spec string, logger *zap.Logger) (*ExpirySweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExpirySweeper{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		queue:  queue,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(midnightSpec, s.Tick); err != nil {
		return nil, err
	}
	if spec != "" && spec != midnightSpec {
		if _, err := s.cron.AddFunc(spec, s.Tick); err != nil {
			return nil, fmt.Errorf("invalid expiry sweep spec %q: %w", spec, err)
		}
	}
	return s, nil
}

// Tick enqueues one refresh. Ticks arriving while a refresh is pending are coalesced.
func (s *ExpirySweeper) Tick() {
	queued, err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: ExpiryJobType, Key: ExpiryJobType})
	if err != nil {
		s.logger.Warn("failed to enqueue expiry refresh", zap.Error(err))
		return
	}
	if !queued {
		s.logger.Debug("expiry refresh already pending")
	}
}

// Entries returns the number of registered schedules.
func (s *ExpirySweeper) Entries() int {
	return len(s.cron.Entries())
}

// Start begins firing the schedule.
func (s *ExpirySweeper) Start() {
	s.cron.Start()
	s.logger.Info("expiry sweeper started", zap.Int("schedules", s.Entries()))
}

// Stop halts the schedule and returns a context done once running ticks finish.
func (s *ExpirySweeper) Stop() context.Context {
	return s.cron.Stop()
}
