package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/types"
	"github.com/samber/lo"
)

// InMemoryBillingRecordStore implements billingrecord.Repository keyed by
// order id. Like the partial unique index, it refuses a second automatic
// record for the same customer and period.
type InMemoryBillingRecordStore struct {
	*InMemoryStore[*billingrecord.BillingRecord]

	mu        sync.Mutex
	createErr error
}

var _ billingrecord.Repository = (*InMemoryBillingRecordStore)(nil)

func NewInMemoryBillingRecordStore() *InMemoryBillingRecordStore {
	return &InMemoryBillingRecordStore{
		InMemoryStore: NewInMemoryStore[*billingrecord.BillingRecord](),
	}
}

// FailCreateWith makes every following CreateMany fail with err, nil resets it
func (s *InMemoryBillingRecordStore) FailCreateWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

func billingRecordFilterFn(ctx context.Context, r *billingrecord.BillingRecord, filter interface{}) bool {
	f, ok := filter.(*types.BillingRecordFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.CustomerIDs) > 0 && !lo.Contains(f.CustomerIDs, r.CustomerID) {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.PeriodNumber != nil && r.PeriodNumber != *f.PeriodNumber {
		return false
	}
	if f.IsAutomatic != nil && r.IsAutomatic != *f.IsAutomatic {
		return false
	}
	return true
}

func billingRecordSortFn(i, j *billingrecord.BillingRecord) bool {
	if i.CustomerID != j.CustomerID {
		return i.CustomerID < j.CustomerID
	}
	if i.PeriodNumber != j.PeriodNumber {
		return i.PeriodNumber < j.PeriodNumber
	}
	return i.CreatedAt.Before(j.CreatedAt)
}

func (s *InMemoryBillingRecordStore) CreateMany(ctx context.Context, records []*billingrecord.BillingRecord) ([]*billingrecord.BillingRecord, error) {
	s.mu.Lock()
	createErr := s.createErr
	s.mu.Unlock()
	if createErr != nil {
		return nil, ierr.WithError(createErr).
			WithHint("Failed to create billing record").
			Mark(ierr.ErrDatabase)
	}

	created := make([]*billingrecord.BillingRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsAutomatic {
			n, _ := s.Count(ctx, nil, func(_ context.Context, existing *billingrecord.BillingRecord, _ interface{}) bool {
				return existing.IsFor(rec.CustomerID, rec.PeriodNumber)
			})
			if n > 0 {
				continue
			}
		}
		if err := s.InMemoryStore.Create(ctx, rec.OrderID, rec.Copy()); err != nil {
			if ierr.IsAlreadyExists(err) {
				return nil, ierr.WithError(err).
					WithHintf("Billing record %s already exists", rec.OrderID).
					Mark(ierr.ErrAlreadyExists)
			}
			return nil, err
		}
		created = append(created, rec)
	}
	return created, nil
}

func (s *InMemoryBillingRecordStore) GetByOrderID(ctx context.Context, orderID string) (*billingrecord.BillingRecord, error) {
	rec, err := s.InMemoryStore.Get(ctx, orderID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Billing record %s not found", orderID).
			Mark(ierr.ErrNotFound)
	}
	return rec.Copy(), nil
}

func (s *InMemoryBillingRecordStore) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*billingrecord.BillingRecord, error) {
	return s.GetByOrderID(ctx, orderID)
}

func (s *InMemoryBillingRecordStore) List(ctx context.Context, filter *types.BillingRecordFilter) ([]*billingrecord.BillingRecord, error) {
	items, err := s.InMemoryStore.List(ctx, filter, billingRecordFilterFn, billingRecordSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(r *billingrecord.BillingRecord, _ int) *billingrecord.BillingRecord { return r.Copy() }), nil
}

func (s *InMemoryBillingRecordStore) Update(ctx context.Context, rec *billingrecord.BillingRecord) error {
	return s.InMemoryStore.Update(ctx, rec.OrderID, rec.Copy())
}

func (s *InMemoryBillingRecordStore) Delete(ctx context.Context, orderID string) error {
	return s.InMemoryStore.Delete(ctx, orderID)
}
