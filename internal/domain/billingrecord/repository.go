package billingrecord

import (
	"context"

	"github.com/flexprice/autobill/internal/types"
)

// Repository defines the interface for billing record persistence.
// Lookups by order id return an error marked ierr.ErrNotFound when missing.
type Repository interface {
	// CreateMany inserts the records in one statement batch and returns the
	// ones actually stored. Automatic records colliding with an existing
	// automatic record for the same customer and period are skipped, not
	// failed. Any other duplicate fails with ierr.ErrAlreadyExists.
	CreateMany(ctx context.Context, records []*BillingRecord) ([]*BillingRecord, error)

	GetByOrderID(ctx context.Context, orderID string) (*BillingRecord, error)

	// GetByOrderIDForUpdate locks the record row for the rest of the transaction
	GetByOrderIDForUpdate(ctx context.Context, orderID string) (*BillingRecord, error)

	List(ctx context.Context, filter *types.BillingRecordFilter) ([]*BillingRecord, error)

	// Update writes snapshot fields, amount and status
	Update(ctx context.Context, record *BillingRecord) error

	Delete(ctx context.Context, orderID string) error
}
