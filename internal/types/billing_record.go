package types

import (
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/samber/lo"
)

// BillingRecordStatus is the lifecycle state of a billing record
type BillingRecordStatus string

const (
	BillingRecordStatusPending   BillingRecordStatus = "pending"
	BillingRecordStatusCompleted BillingRecordStatus = "completed"
	BillingRecordStatusCancelled BillingRecordStatus = "cancelled"
)

func (s BillingRecordStatus) String() string {
	return string(s)
}

func (s BillingRecordStatus) Validate() error {
	allowed := []BillingRecordStatus{
		BillingRecordStatusPending,
		BillingRecordStatusCompleted,
		BillingRecordStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid billing record status").
			WithHint("Please provide a valid billing record status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"status":  s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentMethod is a free-form tag describing how a customer pays,
// copied onto every billing record
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
)

// BillingRecordFilter narrows billing record listings
type BillingRecordFilter struct {
	CustomerIDs  []int64               `json:"customer_ids,omitempty" form:"customer_ids"`
	Statuses     []BillingRecordStatus `json:"statuses,omitempty" form:"statuses"`
	PeriodNumber *int                  `json:"period_number,omitempty" form:"period_number"`
	IsAutomatic  *bool                 `json:"is_automatic,omitempty" form:"is_automatic"`
}

// NewBillingRecordFilter returns a filter matching every record
func NewBillingRecordFilter() *BillingRecordFilter {
	return &BillingRecordFilter{}
}

func (f *BillingRecordFilter) Validate() error {
	if f == nil {
		return nil
	}
	for _, s := range f.Statuses {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if f.PeriodNumber != nil {
		if err := ValidatePeriodNumber(*f.PeriodNumber); err != nil {
			return err
		}
	}
	return nil
}

// CustomerFilter narrows customer listings
type CustomerFilter struct {
	CustomerIDs []int64 `json:"customer_ids,omitempty" form:"customer_ids"`
	// SubscribedOnly keeps customers with a subscription start date and payment day
	SubscribedOnly bool `json:"subscribed_only,omitempty" form:"subscribed_only"`
}

func NewCustomerFilter() *CustomerFilter {
	return &CustomerFilter{}
}
