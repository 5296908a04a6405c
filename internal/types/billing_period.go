package types

import (
	"database/sql/driver"
	"slices"
	"sort"
	"time"

	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

const (
	// MaxBillingPeriods is the number of monthly periods in a subscription lifetime
	MaxBillingPeriods = 24

	// SubscriptionCompletePeriod is returned by NextUnpaidPeriod once every period is paid
	SubscriptionCompletePeriod = MaxBillingPeriods + 1

	MinPaymentDay = 1
	MaxPaymentDay = 31
)

// PaidPeriods is the ledger of paid billing periods of a customer.
// Values are kept unique and sorted ascending.
type PaidPeriods []int

// NewPaidPeriods builds a normalised ledger from arbitrary input
func NewPaidPeriods(periods ...int) PaidPeriods {
	return PaidPeriods(periods).Normalize()
}

// Normalize returns a deduplicated, ascending copy
func (p PaidPeriods) Normalize() PaidPeriods {
	out := lo.Uniq([]int(p))
	sort.Ints(out)
	return PaidPeriods(out)
}

func (p PaidPeriods) Contains(period int) bool {
	return lo.Contains(p, period)
}

// Add returns the ledger with period included
func (p PaidPeriods) Add(period int) PaidPeriods {
	if p.Contains(period) {
		return p.Normalize()
	}
	return append(slices.Clone(p), period).Normalize()
}

// Remove returns the ledger with period excluded
func (p PaidPeriods) Remove(period int) PaidPeriods {
	return PaidPeriods(lo.Without(p, period)).Normalize()
}

// Equal compares two ledgers as sets
func (p PaidPeriods) Equal(other PaidPeriods) bool {
	a, b := p.Normalize(), other.Normalize()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Billable returns the normalised ledger restricted to 1..MaxBillingPeriods.
// Stored ledgers are not trusted to be in range.
func (p PaidPeriods) Billable() PaidPeriods {
	return PaidPeriods(lo.Filter(p.Normalize(), func(v int, _ int) bool {
		return v >= 1 && v <= MaxBillingPeriods
	}))
}

// IsComplete reports whether no further period can be billed
func (p PaidPeriods) IsComplete() bool {
	return len(p.Billable()) >= MaxBillingPeriods
}

func (p PaidPeriods) Validate() error {
	for _, period := range p {
		if err := ValidatePeriodNumber(period); err != nil {
			return err
		}
	}
	return nil
}

// Value stores the ledger as a postgres integer array
func (p PaidPeriods) Value() (driver.Value, error) {
	arr := lo.Map(p.Normalize(), func(v int, _ int) int64 { return int64(v) })
	return pq.Int64Array(arr).Value()
}

// Scan reads the ledger from a postgres integer array
func (p *PaidPeriods) Scan(src interface{}) error {
	var arr pq.Int64Array
	if err := arr.Scan(src); err != nil {
		return err
	}
	*p = PaidPeriods(lo.Map(arr, func(v int64, _ int) int { return int(v) })).Normalize()
	return nil
}

// ValidatePeriodNumber rejects period numbers outside 1..MaxBillingPeriods
func ValidatePeriodNumber(period int) error {
	if period < 1 || period > MaxBillingPeriods {
		return ierr.NewError("period number out of range").
			WithHintf("Period number must be between 1 and %d", MaxBillingPeriods).
			WithReportableDetails(map[string]any{
				"period_number": period,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ValidatePaymentDay rejects days of month outside 1..31
func ValidatePaymentDay(day int) error {
	if day < MinPaymentDay || day > MaxPaymentDay {
		return ierr.NewError("payment day out of range").
			WithHintf("Payment day must be between %d and %d", MinPaymentDay, MaxPaymentDay).
			WithReportableDetails(map[string]any{
				"payment_day": day,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// NextUnpaidPeriod returns the smallest period in 1..MaxBillingPeriods missing
// from the ledger, or SubscriptionCompletePeriod when all of them are paid.
func NextUnpaidPeriod(paid PaidPeriods) int {
	for period := 1; period <= MaxBillingPeriods; period++ {
		if !paid.Contains(period) {
			return period
		}
	}
	return SubscriptionCompletePeriod
}

// DueDateFor computes the calendar day a period is billed on. The start month
// is advanced by periodNumber-1 and the day is set to paymentDay, clamped to
// the end of the month. A result earlier than the subscription start (only
// possible for the first period) is moved one year forward.
func DueDateFor(subscriptionStart time.Time, paymentDay int, periodNumber int) (time.Time, error) {
	if subscriptionStart.IsZero() {
		return time.Time{}, ierr.NewError("subscription start date is missing").
			WithHint("Customer has no subscription start date").
			Mark(ierr.ErrValidation)
	}
	if err := ValidatePaymentDay(paymentDay); err != nil {
		return time.Time{}, err
	}
	if err := ValidatePeriodNumber(periodNumber); err != nil {
		return time.Time{}, err
	}

	due := AddMonthsClamped(subscriptionStart, periodNumber-1, paymentDay)
	if due.Before(StartOfDay(subscriptionStart)) {
		due = AddMonthsClamped(due, 12, paymentDay)
	}
	return due, nil
}
