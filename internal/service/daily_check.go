package service

import (
	"context"
	"time"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
	"github.com/flexprice/autobill/internal/domain/customer"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/lock"
	"github.com/flexprice/autobill/internal/metrics"
	"github.com/flexprice/autobill/internal/types"
	"github.com/samber/lo"
)

// Skip reasons reported in customers_skipped_total
const (
	SkipReasonNotSubscribed = "not_subscribed"
	SkipReasonInvalidTerms  = "invalid_terms"
)

// SchedulerService runs the daily billing check
type SchedulerService interface {
	// RunDailyCheck creates the records due today for the given customers, in
	// input order, and returns only the newly created ones. Running it again
	// on the same day creates nothing.
	RunDailyCheck(ctx context.Context, customers []*customer.Customer, today time.Time) ([]*billingrecord.BillingRecord, error)

	// RunDailyCheckForAll runs the check over every subscribed customer
	RunDailyCheckForAll(ctx context.Context, today time.Time) ([]*billingrecord.BillingRecord, error)
}

type schedulerService struct {
	ServiceParams
	generator OrderGenerator
}

func NewSchedulerService(params ServiceParams, generator OrderGenerator) SchedulerService {
	return &schedulerService{
		ServiceParams: params,
		generator:     generator,
	}
}

func (s *schedulerService) RunDailyCheckForAll(ctx context.Context, today time.Time) ([]*billingrecord.BillingRecord, error) {
	customers, err := s.CustomerRepo.List(ctx, &types.CustomerFilter{SubscribedOnly: true})
	if err != nil {
		return nil, err
	}
	return s.RunDailyCheck(ctx, customers, today)
}

func (s *schedulerService) RunDailyCheck(ctx context.Context, customers []*customer.Customer, today time.Time) ([]*billingrecord.BillingRecord, error) {
	ctx, runID := types.WithJobRunID(ctx)
	start := time.Now()

	release, err := s.Locker.TryAcquire(ctx, lock.DailyCheckKey(today), s.Config.Scheduler.LockTTL)
	if err != nil {
		if ierr.IsAlreadyRunning(err) {
			s.Metrics.DailyCheckRunsTotal.WithLabelValues(metrics.OutcomeAlreadyRunning).Inc()
			s.Logger.Warnw("daily check already running",
				"job_run_id", runID,
				"today", types.FormatDate(today),
			)
		}
		return nil, err
	}
	defer func() {
		// the run context may already be cancelled
		if err := release(context.Background()); err != nil {
			s.Logger.Errorw("failed to release daily check lock", "job_run_id", runID, "error", err)
		}
	}()

	span, ctx := s.Sentry.StartTransaction(ctx, "billing.daily_check")
	if span != nil {
		span.SetTag("job_run_id", runID)
		defer span.Finish()
	}

	s.Logger.Infow("starting daily check",
		"job_run_id", runID,
		"today", types.FormatDate(today),
		"customers", len(customers),
	)

	var created []*billingrecord.BillingRecord
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.BillingRecordRepo.List(ctx, &types.BillingRecordFilter{
			CustomerIDs: lo.Map(customers, func(c *customer.Customer, _ int) int64 { return c.ID }),
			IsAutomatic: lo.ToPtr(true),
		})
		if err != nil {
			return err
		}
		byCustomer := lo.GroupBy(existing, func(r *billingrecord.BillingRecord) int64 {
			return r.CustomerID
		})

		due := make([]*billingrecord.BillingRecord, 0)
		for _, c := range customers {
			if !c.IsSubscribed() {
				s.Metrics.CustomersSkippedTotal.WithLabelValues(SkipReasonNotSubscribed).Inc()
				s.Sentry.AddBreadcrumb("daily_check", "customer skipped", map[string]interface{}{
					"customer_id": c.ID,
					"reason":      SkipReasonNotSubscribed,
				})
				s.Logger.Debugw("skipping customer without subscription", "customer_id", c.ID)
				continue
			}

			record, err := s.generator.GenerateIfDue(ctx, c, today, byCustomer[c.ID])
			if err != nil {
				if ierr.IsValidation(err) {
					s.skipInvalidCustomer(ctx, c, err)
					continue
				}
				return err
			}
			if record != nil {
				due = append(due, record)
			}
		}

		if len(due) == 0 {
			created = []*billingrecord.BillingRecord{}
			return nil
		}

		created, err = s.BillingRecordRepo.CreateMany(ctx, due)
		return err
	})

	took := time.Since(start)
	if err != nil {
		s.Metrics.ObserveDailyCheck(metrics.OutcomeFailure, 0, took)
		s.Logger.Errorw("daily check failed",
			"job_run_id", runID,
			"today", types.FormatDate(today),
			"error", err,
		)
		return nil, err
	}

	s.Metrics.ObserveDailyCheck(metrics.OutcomeSuccess, len(created), took)
	s.Logger.Infow("daily check completed",
		"job_run_id", runID,
		"today", types.FormatDate(today),
		"created", len(created),
		"duration_ms", took.Milliseconds(),
	)
	return created, nil
}

// skipInvalidCustomer leaves a customer with malformed terms out of the batch
func (s *schedulerService) skipInvalidCustomer(ctx context.Context, c *customer.Customer, err error) {
	s.Metrics.CustomersSkippedTotal.WithLabelValues(SkipReasonInvalidTerms).Inc()
	s.Sentry.AddBreadcrumb("daily_check", "customer skipped", map[string]interface{}{
		"customer_id": c.ID,
		"reason":      SkipReasonInvalidTerms,
	})
	s.Logger.Errorw("skipping customer with invalid subscription terms",
		"job_run_id", types.GetJobRunID(ctx),
		"customer_id", c.ID,
		"payment_day", c.PaymentDay,
		"error", err,
	)
	s.Sentry.CaptureWithContext(ctx, err, map[string]string{
		"component": "daily_check",
	})
}
