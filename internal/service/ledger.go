package service

import (
	"context"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/types"
	"github.com/samber/lo"
)

// LedgerSynchronizer keeps each customer's paid periods equal to the set of
// periods with a completed billing record. Callers run it inside the
// transaction that changes the record.
type LedgerSynchronizer interface {
	// ApplyTransition updates the ledger for a record moving from one status to another
	ApplyTransition(ctx context.Context, record *billingrecord.BillingRecord, from, to types.BillingRecordStatus) error

	// RemovePeriod drops the period of a deleted completed record unless
	// another completed record still covers it
	RemovePeriod(ctx context.Context, record *billingrecord.BillingRecord) error

	// Reconcile recomputes the ledger from the customer's completed records
	Reconcile(ctx context.Context, customerID int64) (*LedgerReconciliation, error)
}

// LedgerReconciliation reports the periods a reconciliation changed
type LedgerReconciliation struct {
	CustomerID  int64
	Added       []int
	Removed     []int
	PaidPeriods types.PaidPeriods
}

type ledgerSynchronizer struct {
	ServiceParams
}

func NewLedgerSynchronizer(params ServiceParams) LedgerSynchronizer {
	return &ledgerSynchronizer{ServiceParams: params}
}

// NextLedger returns the ledger after a record for period moves from one
// status to another. The period ends up present iff the new status is
// completed or stillCovered reports another completed record for it;
// transitions not touching completed leave the ledger alone.
func NextLedger(paid types.PaidPeriods, period int, from, to types.BillingRecordStatus, stillCovered bool) types.PaidPeriods {
	switch {
	case to == types.BillingRecordStatusCompleted:
		return paid.Add(period)
	case from == types.BillingRecordStatusCompleted && !stillCovered:
		return paid.Remove(period)
	default:
		return paid.Normalize()
	}
}

func (s *ledgerSynchronizer) ApplyTransition(ctx context.Context, record *billingrecord.BillingRecord, from, to types.BillingRecordStatus) error {
	if from != types.BillingRecordStatusCompleted && to != types.BillingRecordStatusCompleted {
		return nil
	}
	return s.update(ctx, record.CustomerID, func(paid types.PaidPeriods) (types.PaidPeriods, error) {
		covered := false
		if to != types.BillingRecordStatusCompleted {
			var err error
			if covered, err = s.coveredByOther(ctx, record); err != nil {
				return nil, err
			}
		}
		return NextLedger(paid, record.PeriodNumber, from, to, covered), nil
	})
}

func (s *ledgerSynchronizer) RemovePeriod(ctx context.Context, record *billingrecord.BillingRecord) error {
	return s.ApplyTransition(ctx, record, types.BillingRecordStatusCompleted, "")
}

// coveredByOther reports whether a completed record other than record exists
// for the same customer and period. Must run under the customer row lock.
func (s *ledgerSynchronizer) coveredByOther(ctx context.Context, record *billingrecord.BillingRecord) (bool, error) {
	period := record.PeriodNumber
	siblings, err := s.BillingRecordRepo.List(ctx, &types.BillingRecordFilter{
		CustomerIDs:  []int64{record.CustomerID},
		Statuses:     []types.BillingRecordStatus{types.BillingRecordStatusCompleted},
		PeriodNumber: &period,
	})
	if err != nil {
		return false, err
	}
	return lo.ContainsBy(siblings, func(r *billingrecord.BillingRecord) bool {
		return r.ID != record.ID
	}), nil
}

func (s *ledgerSynchronizer) update(ctx context.Context, customerID int64, next func(types.PaidPeriods) (types.PaidPeriods, error)) error {
	cust, err := s.CustomerRepo.GetForUpdate(ctx, customerID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return ierr.WithError(err).
				WithHintf("Customer %d of the billing record does not exist", customerID).
				Mark(ierr.ErrInvalidOperation)
		}
		return err
	}

	updated, err := next(cust.PaidPeriods)
	if err != nil {
		return err
	}
	if updated.Equal(cust.PaidPeriods) {
		return nil
	}

	if err := s.CustomerRepo.UpdatePaidPeriods(ctx, customerID, updated); err != nil {
		return err
	}

	s.Logger.Infow("paid periods updated",
		"customer_id", customerID,
		"previous", cust.PaidPeriods,
		"paid_periods", updated,
	)
	return nil
}

func (s *ledgerSynchronizer) Reconcile(ctx context.Context, customerID int64) (*LedgerReconciliation, error) {
	cust, err := s.CustomerRepo.GetForUpdate(ctx, customerID)
	if err != nil {
		return nil, err
	}

	completed, err := s.BillingRecordRepo.List(ctx, &types.BillingRecordFilter{
		CustomerIDs: []int64{customerID},
		Statuses:    []types.BillingRecordStatus{types.BillingRecordStatusCompleted},
	})
	if err != nil {
		return nil, err
	}

	expected := types.NewPaidPeriods(lo.Map(completed, func(r *billingrecord.BillingRecord, _ int) int {
		return r.PeriodNumber
	})...)
	current := cust.PaidPeriods.Normalize()

	result := &LedgerReconciliation{
		CustomerID:  customerID,
		Added:       lo.Without(expected, current...),
		Removed:     lo.Without(current, expected...),
		PaidPeriods: expected,
	}

	if len(result.Added) == 0 && len(result.Removed) == 0 {
		return result, nil
	}

	if err := s.CustomerRepo.UpdatePaidPeriods(ctx, customerID, expected); err != nil {
		return nil, err
	}

	s.Metrics.LedgerReconciledPeriods.WithLabelValues("added").Add(float64(len(result.Added)))
	s.Metrics.LedgerReconciledPeriods.WithLabelValues("removed").Add(float64(len(result.Removed)))
	s.Logger.Warnw("ledger drift repaired",
		"customer_id", customerID,
		"added", result.Added,
		"removed", result.Removed,
	)
	return result, nil
}
