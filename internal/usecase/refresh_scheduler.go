package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinCast/internal/domain/models"
	applogger "CoinCast/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Predictor is the part of the orchestrator the scheduler drives.
type Predictor interface {
	GetPrediction(ctx context.Context, trigger bool) (models.PredictionResult, error)
}

// RefreshScheduler triggers a prediction refresh on a cron schedule.
type RefreshScheduler struct {
	cron      *cron.Cron
	predictor Predictor
	schedule  string
	timeout   time.Duration
	log       *applogger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRefreshScheduler validates schedule ("@every 30m", or a 5-field cron spec).
func NewRefreshScheduler(predictor Predictor, schedule string, timeout time.Duration, log *applogger.Logger) (*RefreshScheduler, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &RefreshScheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		predictor: predictor,
		schedule:  schedule,
		timeout:   timeout,
		log:       log.With("scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunNow); err != nil {
		cancel()
		return nil, fmt.Errorf("register refresh %q: %w", schedule, err)
	}
	return s, nil
}

func (s *RefreshScheduler) Start() {
	s.cron.Start()
	s.log.Info("refresh scheduler started", applogger.String("schedule", s.schedule))
}

// Stop cancels a running refresh and waits for it to return.
func (s *RefreshScheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("refresh scheduler stopped")
}

// Next is the next scheduled run, zero when not started.
func (s *RefreshScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow performs one triggered refresh.
func (s *RefreshScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	res, err := s.predictor.GetPrediction(ctx, true)
	switch {
	case err == nil && res.Computed:
		s.log.Info("scheduled refresh computed", applogger.Float64("value", *res.State.PredictedValue))
	case err == nil:
		s.log.Debug("scheduled refresh skipped, prediction fresh")
	case errors.Is(err, models.ErrInsufficientData), errors.Is(err, models.ErrPredictionDisabled):
		s.log.Warn("scheduled refresh skipped", applogger.Error(err))
	default:
		s.log.Error("scheduled refresh failed", applogger.Error(err))
	}
}
