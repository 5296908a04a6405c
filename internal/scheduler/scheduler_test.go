package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/autobill/internal/config"
	"github.com/flexprice/autobill/internal/domain/billingrecord"
	"github.com/flexprice/autobill/internal/domain/customer"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/sentry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerServiceStub struct {
	errs  []error
	calls []time.Time
}

func (s *schedulerServiceStub) RunDailyCheck(ctx context.Context, customers []*customer.Customer, today time.Time) ([]*billingrecord.BillingRecord, error) {
	return s.RunDailyCheckForAll(ctx, today)
}

func (s *schedulerServiceStub) RunDailyCheckForAll(ctx context.Context, today time.Time) ([]*billingrecord.BillingRecord, error) {
	s.calls = append(s.calls, today)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []*billingrecord.BillingRecord{{OrderID: "AUTO-2024-0001"}}, nil
}

func newTestScheduler(t *testing.T, stub *schedulerServiceStub, timezone string) *Scheduler {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Scheduler.Timezone = timezone
	log := logger.NewNopLogger()

	s, err := NewScheduler(stub, sentry.NewSentryService(cfg, log), cfg, log)
	require.NoError(t, err)
	s.newBackOff = func() backoff.BackOff {
		return &backoff.ZeroBackOff{}
	}
	return s
}

func dbErr() error {
	return ierr.NewError("connection reset").Mark(ierr.ErrDatabase)
}

func TestRunOnceRetriesPersistenceFailures(t *testing.T) {
	stub := &schedulerServiceStub{errs: []error{dbErr(), dbErr()}}
	s := newTestScheduler(t, stub, "UTC")

	created, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Len(t, stub.calls, 3)
}

func TestRunOnceGivesUpAfterMaxRetries(t *testing.T) {
	stub := &schedulerServiceStub{errs: []error{dbErr(), dbErr(), dbErr(), dbErr(), dbErr()}}
	s := newTestScheduler(t, stub, "UTC")

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, ierr.IsDatabase(err))
	// first attempt plus MaxRetries
	assert.Len(t, stub.calls, 4)
}

func TestRunOnceDoesNotRetryOtherFailures(t *testing.T) {
	testCases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{
			name:  "already_running",
			err:   ierr.NewError("held").Mark(ierr.ErrAlreadyRunning),
			check: ierr.IsAlreadyRunning,
		},
		{
			name:  "invalid_operation",
			err:   ierr.NewError("bad state").Mark(ierr.ErrInvalidOperation),
			check: ierr.IsInvalidOperation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &schedulerServiceStub{errs: []error{tc.err}}
			s := newTestScheduler(t, stub, "UTC")

			_, err := s.RunOnce(context.Background())
			require.Error(t, err)
			assert.True(t, tc.check(err))
			assert.Len(t, stub.calls, 1)
		})
	}
}

func TestTodayUsesSchedulerTimezone(t *testing.T) {
	if _, err := time.LoadLocation("Europe/Istanbul"); err != nil {
		t.Skip("tzdata not available")
	}
	stub := &schedulerServiceStub{}
	s := newTestScheduler(t, stub, "Europe/Istanbul")
	// 22:30 UTC on Aug 4 is already Aug 5 in Istanbul
	s.now = func() time.Time { return time.Date(2024, time.August, 4, 22, 30, 0, 0, time.UTC) }

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, stub.calls, 1)

	y, m, d := stub.calls[0].Date()
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.August, m)
	assert.Equal(t, 5, d)
	assert.Equal(t, "Europe/Istanbul", stub.calls[0].Location().String())
}

func TestInvalidScheduleFailsStart(t *testing.T) {
	stub := &schedulerServiceStub{}
	s := newTestScheduler(t, stub, "UTC")
	s.config.DailyCheckSchedule = "every day"

	err := s.Start()
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestStartAndStop(t *testing.T) {
	stub := &schedulerServiceStub{}
	s := newTestScheduler(t, stub, "UTC")

	require.NoError(t, s.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestInvalidTimezone(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Scheduler.Timezone = "Mars/Olympus"
	log := logger.NewNopLogger()

	_, err := NewScheduler(&schedulerServiceStub{}, sentry.NewSentryService(cfg, log), cfg, log)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
