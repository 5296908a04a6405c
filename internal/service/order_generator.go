package service

import (
	"context"
	"time"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
	"github.com/flexprice/autobill/internal/domain/customer"
	"github.com/flexprice/autobill/internal/types"
	"github.com/samber/lo"
)

// OrderGenerator decides whether one customer owes a record today
type OrderGenerator interface {
	// GenerateIfDue returns a new pending record, or nil when nothing is due.
	// existing holds the customer's automatic records. Nothing is persisted
	// apart from the sequence allocation.
	GenerateIfDue(ctx context.Context, c *customer.Customer, today time.Time, existing []*billingrecord.BillingRecord) (*billingrecord.BillingRecord, error)
}

type orderGenerator struct {
	ServiceParams
	sequence SequenceAllocator
}

func NewOrderGenerator(params ServiceParams, sequence SequenceAllocator) OrderGenerator {
	return &orderGenerator{
		ServiceParams: params,
		sequence:      sequence,
	}
}

func (g *orderGenerator) GenerateIfDue(ctx context.Context, c *customer.Customer, today time.Time, existing []*billingrecord.BillingRecord) (*billingrecord.BillingRecord, error) {
	if c.PaidPeriods.IsComplete() {
		return nil, nil
	}

	period := types.NextUnpaidPeriod(c.PaidPeriods)
	if period > types.MaxBillingPeriods {
		return nil, nil
	}

	due, err := types.DueDateFor(c.GetSubscriptionStart(), c.PaymentDay, period)
	if err != nil {
		return nil, err
	}

	// exact calendar day match only, missed days are never caught up
	if !types.SameDay(due, today) {
		if types.CalendarBefore(due, today) {
			g.Logger.Warnw("missed billing window",
				"customer_id", c.ID,
				"period_number", period,
				"due_date", types.FormatDate(due),
				"today", types.FormatDate(today),
				"job_run_id", types.GetJobRunID(ctx),
			)
			g.Metrics.MissedDueDatesTotal.Inc()
		}
		return nil, nil
	}

	if lo.ContainsBy(existing, func(r *billingrecord.BillingRecord) bool {
		return r.IsFor(c.ID, period)
	}) {
		return nil, nil
	}

	orderID, err := g.sequence.NextOrderID(ctx, today)
	if err != nil {
		return nil, err
	}

	record := billingrecord.NewAutomatic(
		c,
		orderID,
		period,
		due,
		g.Idempotency.AutomaticBillingRecordKey(c.ID, period),
		time.Now().UTC(),
	)

	g.Logger.Infow("billing record due",
		"customer_id", c.ID,
		"period_number", period,
		"order_id", orderID,
		"due_date", types.FormatDate(due),
	)
	return record, nil
}
