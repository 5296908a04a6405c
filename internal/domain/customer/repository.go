package customer

import (
	"context"

	"github.com/flexprice/autobill/internal/types"
)

// Repository defines the interface for customer data access.
// Get and GetForUpdate return an error marked ierr.ErrNotFound for unknown ids.
type Repository interface {
	Create(ctx context.Context, customer *Customer) error
	Get(ctx context.Context, id int64) (*Customer, error)
	// GetForUpdate locks the customer row for the rest of the transaction
	GetForUpdate(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context, filter *types.CustomerFilter) ([]*Customer, error)
	UpdatePaidPeriods(ctx context.Context, id int64, periods types.PaidPeriods) error
	UpdatePaymentDay(ctx context.Context, id int64, day int) error
}
