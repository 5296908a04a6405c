package service

import (
	"context"
	"time"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
	"github.com/flexprice/autobill/internal/domain/customer"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/types"
	"github.com/samber/lo"
)

// CustomerService exposes the subscription side of customers.
// Identity and contact data are owned elsewhere and only read here.
type CustomerService interface {
	ListCustomers(ctx context.Context, filter *types.CustomerFilter) ([]*customer.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*customer.Customer, error)
	SetCustomerPaymentDay(ctx context.Context, id int64, day int) (bool, error)
	GetBillingSchedule(ctx context.Context, id int64) (*BillingSchedule, error)
	ReconcileLedger(ctx context.Context, id int64) (*LedgerReconciliation, error)
}

// BillingSchedule previews the next period a customer will be billed for
type BillingSchedule struct {
	CustomerID       int64
	PaidPeriods      types.PaidPeriods
	NextPeriod       int
	NextDueDate      *time.Time
	RemainingPeriods int
	Complete         bool
	PendingOrderIDs  []string
}

type customerService struct {
	ServiceParams
	ledger LedgerSynchronizer
}

func NewCustomerService(params ServiceParams, ledger LedgerSynchronizer) CustomerService {
	return &customerService{
		ServiceParams: params,
		ledger:        ledger,
	}
}

func (s *customerService) ListCustomers(ctx context.Context, filter *types.CustomerFilter) ([]*customer.Customer, error) {
	if filter == nil {
		filter = types.NewCustomerFilter()
	}
	return s.CustomerRepo.List(ctx, filter)
}

func (s *customerService) GetCustomer(ctx context.Context, id int64) (*customer.Customer, error) {
	return s.CustomerRepo.Get(ctx, id)
}

func (s *customerService) SetCustomerPaymentDay(ctx context.Context, id int64, day int) (bool, error) {
	if err := types.ValidatePaymentDay(day); err != nil {
		return false, err
	}

	if err := s.CustomerRepo.UpdatePaymentDay(ctx, id, day); err != nil {
		if ierr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	s.Logger.Infow("payment day updated", "customer_id", id, "payment_day", day)
	return true, nil
}

func (s *customerService) GetBillingSchedule(ctx context.Context, id int64) (*BillingSchedule, error) {
	cust, err := s.CustomerRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	paid := cust.PaidPeriods.Normalize()
	schedule := &BillingSchedule{
		CustomerID:       cust.ID,
		PaidPeriods:      paid,
		NextPeriod:       types.NextUnpaidPeriod(paid),
		RemainingPeriods: types.MaxBillingPeriods - len(paid.Billable()),
		Complete:         paid.IsComplete(),
	}

	if !schedule.Complete && cust.IsSubscribed() {
		due, err := types.DueDateFor(cust.GetSubscriptionStart(), cust.PaymentDay, schedule.NextPeriod)
		if err != nil {
			return nil, err
		}
		schedule.NextDueDate = &due
	}

	pending, err := s.BillingRecordRepo.List(ctx, &types.BillingRecordFilter{
		CustomerIDs: []int64{cust.ID},
		Statuses:    []types.BillingRecordStatus{types.BillingRecordStatusPending},
	})
	if err != nil {
		return nil, err
	}
	schedule.PendingOrderIDs = pendingOrderIDs(pending)
	return schedule, nil
}

func (s *customerService) ReconcileLedger(ctx context.Context, id int64) (*LedgerReconciliation, error) {
	var result *LedgerReconciliation
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.ledger.Reconcile(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// pendingOrderIDs lists the order ids of the pending records for the schedule view
func pendingOrderIDs(records []*billingrecord.BillingRecord) []string {
	return lo.FilterMap(records, func(r *billingrecord.BillingRecord, _ int) (string, bool) {
		return r.OrderID, r.Status == types.BillingRecordStatusPending
	})
}
