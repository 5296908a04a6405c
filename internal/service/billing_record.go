package service

import (
	"context"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/types"
)

// DeleteOptions controls the side effects of deleting a billing record
type DeleteOptions struct {
	// ReverseLedger removes the record's period from the customer's paid
	// periods when the deleted record was completed. Off by default, which
	// leaves the ledger untouched.
	ReverseLedger bool
}

// BillingRecordService is the store facade over billing records.
// Mutators report a missing order id as (false, nil).
type BillingRecordService interface {
	CreateBillingRecords(ctx context.Context, records []*billingrecord.BillingRecord) ([]*billingrecord.BillingRecord, error)
	GetBillingRecord(ctx context.Context, orderID string) (*billingrecord.BillingRecord, error)
	ListBillingRecords(ctx context.Context, filter *types.BillingRecordFilter) ([]*billingrecord.BillingRecord, error)
	ListPendingForCustomer(ctx context.Context, customerID int64) ([]*billingrecord.BillingRecord, error)
	UpdateFields(ctx context.Context, orderID string, updates billingrecord.FieldUpdates) (bool, error)
	SetStatus(ctx context.Context, orderID string, status types.BillingRecordStatus) (bool, error)
	DeleteBillingRecord(ctx context.Context, orderID string, opts DeleteOptions) (bool, error)
}

type billingRecordService struct {
	ServiceParams
	ledger LedgerSynchronizer
}

func NewBillingRecordService(params ServiceParams, ledger LedgerSynchronizer) BillingRecordService {
	return &billingRecordService{
		ServiceParams: params,
		ledger:        ledger,
	}
}

func (s *billingRecordService) CreateBillingRecords(ctx context.Context, records []*billingrecord.BillingRecord) ([]*billingrecord.BillingRecord, error) {
	for _, r := range records {
		if err := validateBillingRecord(r); err != nil {
			return nil, err
		}
	}

	var created []*billingrecord.BillingRecord
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.BillingRecordRepo.CreateMany(ctx, records)
		if err != nil {
			return err
		}
		// records created completed count as paid right away
		for _, r := range created {
			if r.Status == types.BillingRecordStatusCompleted {
				if err := s.ledger.ApplyTransition(ctx, r, "", r.Status); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateBillingRecord(r *billingrecord.BillingRecord) error {
	if r == nil {
		return ierr.NewError("billing record cannot be nil").Mark(ierr.ErrValidation)
	}
	if r.OrderID == "" || r.ID == "" {
		return ierr.NewError("billing record id and order id are required").
			WithHint("Provide both the internal id and the order id").
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidatePeriodNumber(r.PeriodNumber); err != nil {
		return err
	}
	if err := r.Status.Validate(); err != nil {
		return err
	}
	if r.Amount.IsNegative() {
		return ierr.NewError("amount cannot be negative").
			WithHint("Billing record amount must be zero or positive").
			WithReportableDetails(map[string]any{
				"amount": r.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (s *billingRecordService) GetBillingRecord(ctx context.Context, orderID string) (*billingrecord.BillingRecord, error) {
	return s.BillingRecordRepo.GetByOrderID(ctx, orderID)
}

func (s *billingRecordService) ListBillingRecords(ctx context.Context, filter *types.BillingRecordFilter) ([]*billingrecord.BillingRecord, error) {
	if filter == nil {
		filter = types.NewBillingRecordFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.BillingRecordRepo.List(ctx, filter)
}

func (s *billingRecordService) ListPendingForCustomer(ctx context.Context, customerID int64) ([]*billingrecord.BillingRecord, error) {
	return s.BillingRecordRepo.List(ctx, &types.BillingRecordFilter{
		CustomerIDs: []int64{customerID},
		Statuses:    []types.BillingRecordStatus{types.BillingRecordStatusPending},
	})
}

func (s *billingRecordService) UpdateFields(ctx context.Context, orderID string, updates billingrecord.FieldUpdates) (bool, error) {
	if updates.Amount != nil && updates.Amount.IsNegative() {
		return false, ierr.NewError("amount cannot be negative").
			WithHint("Billing record amount must be zero or positive").
			Mark(ierr.ErrValidation)
	}

	found := true
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		record, err := s.BillingRecordRepo.GetByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			if ierr.IsNotFound(err) {
				found = false
				return nil
			}
			return err
		}
		if updates.IsEmpty() {
			return nil
		}
		updates.Apply(record)
		return s.BillingRecordRepo.Update(ctx, record)
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *billingRecordService) SetStatus(ctx context.Context, orderID string, status types.BillingRecordStatus) (bool, error) {
	if err := status.Validate(); err != nil {
		return false, err
	}

	var (
		found bool
		from  types.BillingRecordStatus
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		record, err := s.BillingRecordRepo.GetByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			if ierr.IsNotFound(err) {
				return nil
			}
			return err
		}
		found = true
		from = record.Status

		if from == status {
			return nil
		}

		record.Status = status
		if err := s.BillingRecordRepo.Update(ctx, record); err != nil {
			return err
		}
		return s.ledger.ApplyTransition(ctx, record, from, status)
	})
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if from != status {
		s.Metrics.StatusTransitionsTotal.WithLabelValues(string(from), string(status)).Inc()
		s.Logger.Infow("billing record status changed",
			"order_id", orderID,
			"from", from,
			"to", status,
		)
	}
	return true, nil
}

func (s *billingRecordService) DeleteBillingRecord(ctx context.Context, orderID string, opts DeleteOptions) (bool, error) {
	found := true
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		record, err := s.BillingRecordRepo.GetByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			if ierr.IsNotFound(err) {
				found = false
				return nil
			}
			return err
		}

		if err := s.BillingRecordRepo.Delete(ctx, orderID); err != nil {
			return err
		}

		if opts.ReverseLedger && record.Status == types.BillingRecordStatusCompleted {
			return s.ledger.RemovePeriod(ctx, record)
		}
		if record.Status == types.BillingRecordStatusCompleted {
			s.Logger.Warnw("deleted completed billing record without ledger reversal",
				"order_id", orderID,
				"customer_id", record.CustomerID,
				"period_number", record.PeriodNumber,
			)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if found {
		s.Logger.Infow("billing record deleted",
			"order_id", orderID,
			"reverse_ledger", opts.ReverseLedger,
		)
	}
	return found, nil
}
