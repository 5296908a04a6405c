// Package scheduler runs the daily billing check in-process on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/autobill/internal/config"
	"github.com/flexprice/autobill/internal/domain/billingrecord"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/sentry"
	"github.com/flexprice/autobill/internal/service"
	"github.com/flexprice/autobill/internal/types"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module("scheduler",
		fx.Provide(NewScheduler),
	)
}

// Scheduler triggers RunDailyCheckForAll once per configured cron tick
type Scheduler struct {
	cron     *cron.Cron
	service  service.SchedulerService
	sentry   *sentry.Service
	config   config.SchedulerConfig
	logger   *logger.Logger
	location *time.Location

	now        func() time.Time
	newBackOff func() backoff.BackOff
}

func NewScheduler(
	svc service.SchedulerService,
	sentry *sentry.Service,
	cfg *config.Configuration,
	logger *logger.Logger,
) (*Scheduler, error) {
	loc, err := cfg.Scheduler.GetLocation()
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Scheduler timezone is invalid").
			Mark(ierr.ErrValidation)
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Desugar()))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:     c,
		service:  svc,
		sentry:   sentry,
		config:   cfg.Scheduler,
		logger:   logger,
		location: loc,
		now:      time.Now,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}, nil
}

// Start registers the daily check and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.DailyCheckSchedule, s.tick); err != nil {
		return ierr.WithError(err).
			WithHintf("Invalid daily check schedule %q", s.config.DailyCheckSchedule).
			Mark(ierr.ErrValidation)
	}

	s.cron.Start()
	s.logger.Infow("scheduled daily billing check",
		"schedule", s.config.DailyCheckSchedule,
		"timezone", s.location.String(),
	)
	return nil
}

// Stop stops the cron loop and waits for a running check to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterWithLifecycle ties the cron loop to the fx application
func (s *Scheduler) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Info("stopping daily billing scheduler")
			return s.Stop(ctx)
		},
	})
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil && !ierr.IsAlreadyRunning(err) {
		s.logger.Errorw("daily billing check failed", "error", err)
	}
}

// Today is the current calendar day in the scheduler timezone
func (s *Scheduler) Today() time.Time {
	return types.StartOfDay(s.now().In(s.location))
}

// RunOnce runs the check for today. Persistence failures are retried with
// exponential backoff; creation is idempotent per customer and period so a
// retry never duplicates records. Other failures are returned immediately.
func (s *Scheduler) RunOnce(ctx context.Context) ([]*billingrecord.BillingRecord, error) {
	today := s.Today()

	var (
		created  []*billingrecord.BillingRecord
		attempts int
	)
	operation := func() error {
		attempts++
		var err error
		created, err = s.service.RunDailyCheckForAll(ctx, today)
		if err != nil && !ierr.IsDatabase(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warnw("daily billing check failed, retrying",
			"error", err,
			"attempt", attempts,
			"retry_in", wait,
			"today", types.FormatDate(today),
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.config.MaxRetries), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if ierr.IsAlreadyRunning(err) {
			return nil, err
		}
		s.sentry.CaptureWithContext(ctx, err, map[string]string{
			"job":   "daily_check",
			"today": types.FormatDate(today),
		})
		return nil, err
	}

	s.logger.Infow("daily billing check finished",
		"today", types.FormatDate(today),
		"created", len(created),
		"attempts", attempts,
	)
	return created, nil
}
