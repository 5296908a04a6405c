package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/autobill/internal/domain/customer"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/types"
	"github.com/samber/lo"
)

// InMemoryCustomerStore implements customer.Repository
type InMemoryCustomerStore struct {
	*InMemoryStore[*customer.Customer]
	nextID int64
}

var _ customer.Repository = (*InMemoryCustomerStore)(nil)

func NewInMemoryCustomerStore() *InMemoryCustomerStore {
	return &InMemoryCustomerStore{
		InMemoryStore: NewInMemoryStore[*customer.Customer](),
	}
}

func customerKey(id int64) string {
	return fmt.Sprintf("%d", id)
}

func customerFilterFn(ctx context.Context, c *customer.Customer, filter interface{}) bool {
	f, ok := filter.(*types.CustomerFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.CustomerIDs) > 0 && !lo.Contains(f.CustomerIDs, c.ID) {
		return false
	}
	if f.SubscribedOnly && !c.IsSubscribed() {
		return false
	}
	return true
}

func customerSortFn(i, j *customer.Customer) bool {
	return i.ID < j.ID
}

// Create assigns the next id when ID is zero
func (s *InMemoryCustomerStore) Create(ctx context.Context, c *customer.Customer) error {
	if c == nil {
		return ierr.NewError("customer cannot be nil").Mark(ierr.ErrValidation)
	}
	if c.ID == 0 {
		s.nextID++
		c.ID = s.nextID
	} else if c.ID > s.nextID {
		s.nextID = c.ID
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.PaidPeriods = c.PaidPeriods.Normalize()
	return s.InMemoryStore.Create(ctx, customerKey(c.ID), c.Copy())
}

func (s *InMemoryCustomerStore) Get(ctx context.Context, id int64) (*customer.Customer, error) {
	c, err := s.InMemoryStore.Get(ctx, customerKey(id))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Customer %d not found", id).
			Mark(ierr.ErrNotFound)
	}
	return c.Copy(), nil
}

func (s *InMemoryCustomerStore) GetForUpdate(ctx context.Context, id int64) (*customer.Customer, error) {
	return s.Get(ctx, id)
}

func (s *InMemoryCustomerStore) List(ctx context.Context, filter *types.CustomerFilter) ([]*customer.Customer, error) {
	items, err := s.InMemoryStore.List(ctx, filter, customerFilterFn, customerSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(c *customer.Customer, _ int) *customer.Customer { return c.Copy() }), nil
}

func (s *InMemoryCustomerStore) UpdatePaidPeriods(ctx context.Context, id int64, periods types.PaidPeriods) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	c.PaidPeriods = periods.Normalize()
	c.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, customerKey(id), c)
}

func (s *InMemoryCustomerStore) UpdatePaymentDay(ctx context.Context, id int64, day int) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	c.PaymentDay = day
	c.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, customerKey(id), c)
}
