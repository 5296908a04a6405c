package customer

import (
	"time"

	"github.com/flexprice/autobill/internal/types"
	"github.com/shopspring/decimal"
)

// Customer is a subscriber of the consultation marketplace. Identity and
// contact fields are owned by registration; this module only reads them and
// writes the payment day and the paid periods ledger.
type Customer struct {
	// ID is the numeric identifier assigned at registration
	ID int64 `db:"id" json:"id"`

	Name       string `db:"name" json:"name"`
	Email      string `db:"email" json:"email"`
	Phone      string `db:"phone" json:"phone"`
	NationalID string `db:"national_id" json:"national_id"`
	Address    string `db:"address" json:"address"`

	// SubscriptionStart is the first day of the subscription, nil when the
	// customer never subscribed
	SubscriptionStart *time.Time `db:"subscription_start" json:"subscription_start,omitempty"`

	// PaymentDay is the day of month (1-31) periods are billed on, 0 when unset
	PaymentDay int `db:"payment_day" json:"payment_day"`

	// TotalAmount is the amount billed for every period
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`

	PaymentMethod types.PaymentMethod `db:"payment_method" json:"payment_method"`

	// PaidPeriods is the ledger of completed periods
	PaidPeriods types.PaidPeriods `db:"paid_periods" json:"paid_periods"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsSubscribed reports whether the customer has billable subscription terms
func (c *Customer) IsSubscribed() bool {
	return c.SubscriptionStart != nil && !c.SubscriptionStart.IsZero() && c.PaymentDay > 0
}

// GetSubscriptionStart returns the start date or the zero time
func (c *Customer) GetSubscriptionStart() time.Time {
	if c.SubscriptionStart == nil {
		return time.Time{}
	}
	return *c.SubscriptionStart
}

// Copy returns a deep copy so that callers can mutate the ledger freely
func (c *Customer) Copy() *Customer {
	if c == nil {
		return nil
	}
	out := *c
	if c.SubscriptionStart != nil {
		start := *c.SubscriptionStart
		out.SubscriptionStart = &start
	}
	out.PaidPeriods = append(types.PaidPeriods(nil), c.PaidPeriods...)
	return &out
}
