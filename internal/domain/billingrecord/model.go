package billingrecord

import (
	"fmt"
	"time"

	"github.com/flexprice/autobill/internal/domain/customer"
	"github.com/flexprice/autobill/internal/types"
	"github.com/shopspring/decimal"
)

// BillingRecord is a billing intent for one customer and one period.
// Contact fields are a snapshot taken at creation and are never re-synced
// from the customer.
type BillingRecord struct {
	// ID is the internal identifier derived from customer, period and creation time
	ID string `db:"id" json:"id"`

	// OrderID is the human readable identifier, e.g. AUTO-2024-0042
	OrderID string `db:"order_id" json:"order_id"`

	CustomerID int64 `db:"customer_id" json:"customer_id"`

	// snapshot of the customer at creation time
	CustomerName string `db:"customer_name" json:"customer_name"`
	Email        string `db:"email" json:"email"`
	Phone        string `db:"phone" json:"phone"`
	NationalID   string `db:"national_id" json:"national_id"`
	Address      string `db:"address" json:"address"`

	Amount        decimal.Decimal     `db:"amount" json:"amount"`
	PaymentMethod types.PaymentMethod `db:"payment_method" json:"payment_method"`

	// PeriodNumber is the billed period, 1..24
	PeriodNumber int       `db:"period_number" json:"period_number"`
	DueDate      time.Time `db:"due_date" json:"due_date"`

	Status types.BillingRecordStatus `db:"status" json:"status"`

	// IsAutomatic separates scheduler output from manually entered records
	IsAutomatic bool `db:"is_automatic" json:"is_automatic"`

	// IdempotencyKey is unique per customer and period for automatic records
	IdempotencyKey string `db:"idempotency_key" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewAutomatic builds a pending automatic record from the customer's
// current contact details and subscription terms
func NewAutomatic(c *customer.Customer, orderID string, periodNumber int, dueDate time.Time, idempotencyKey string, now time.Time) *BillingRecord {
	return &BillingRecord{
		ID:             NewID(c.ID, periodNumber, now),
		OrderID:        orderID,
		CustomerID:     c.ID,
		CustomerName:   c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		NationalID:     c.NationalID,
		Address:        c.Address,
		Amount:         c.TotalAmount,
		PaymentMethod:  c.PaymentMethod,
		PeriodNumber:   periodNumber,
		DueDate:        dueDate,
		Status:         types.BillingRecordStatusPending,
		IsAutomatic:    true,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewID derives the internal id, e.g. auto_42_8_1722816000000
func NewID(customerID int64, periodNumber int, createdAt time.Time) string {
	return fmt.Sprintf("%s_%d_%d_%d", types.UUID_PREFIX_BILLING_RECORD, customerID, periodNumber, createdAt.UnixMilli())
}

// IsFor reports whether the record bills the given customer period automatically
func (r *BillingRecord) IsFor(customerID int64, periodNumber int) bool {
	return r.IsAutomatic && r.CustomerID == customerID && r.PeriodNumber == periodNumber
}

// Copy returns a shallow copy, all fields are values
func (r *BillingRecord) Copy() *BillingRecord {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

// FieldUpdates carries the snapshot fields that may be corrected after creation.
// Nil fields are left untouched.
type FieldUpdates struct {
	Name       *string
	Email      *string
	Phone      *string
	NationalID *string
	Address    *string
	Amount     *decimal.Decimal
}

// IsEmpty reports whether no field is set
func (u FieldUpdates) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil &&
		u.NationalID == nil && u.Address == nil && u.Amount == nil
}

// Apply copies the set fields onto the record. Status and period are never touched.
func (u FieldUpdates) Apply(r *BillingRecord) {
	if u.Name != nil {
		r.CustomerName = *u.Name
	}
	if u.Email != nil {
		r.Email = *u.Email
	}
	if u.Phone != nil {
		r.Phone = *u.Phone
	}
	if u.NationalID != nil {
		r.NationalID = *u.NationalID
	}
	if u.Address != nil {
		r.Address = *u.Address
	}
	if u.Amount != nil {
		r.Amount = *u.Amount
	}
}
