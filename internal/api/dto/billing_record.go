package dto

import (
	"time"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/types"
	"github.com/flexprice/autobill/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// UpdateBillingRecordRequest edits the customer snapshot and amount of a record.
// Status is changed through its own endpoint.
type UpdateBillingRecordRequest struct {
	CustomerName *string          `json:"customer_name,omitempty" validate:"omitempty,min=1,max=255"`
	Email        *string          `json:"email,omitempty" validate:"omitempty,email"`
	Phone        *string          `json:"phone,omitempty" validate:"omitempty,max=32"`
	NationalID   *string          `json:"national_id,omitempty" validate:"omitempty,max=32"`
	Address      *string          `json:"address,omitempty" validate:"omitempty,max=1024"`
	Amount       *decimal.Decimal `json:"amount,omitempty" swaggertype:"string"`
}

func (r *UpdateBillingRecordRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Amount != nil && r.Amount.IsNegative() {
		return ierr.NewError("amount cannot be negative").
			WithHint("Billing record amount must be zero or positive").
			WithReportableDetails(map[string]any{
				"amount": r.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *UpdateBillingRecordRequest) ToFieldUpdates() billingrecord.FieldUpdates {
	return billingrecord.FieldUpdates{
		Name:       r.CustomerName,
		Email:      r.Email,
		Phone:      r.Phone,
		NationalID: r.NationalID,
		Address:    r.Address,
		Amount:     r.Amount,
	}
}

type UpdateBillingRecordStatusRequest struct {
	Status types.BillingRecordStatus `json:"status" validate:"required"`
}

func (r *UpdateBillingRecordStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Status.Validate()
}

// ListBillingRecordsRequest is bound from the query string
type ListBillingRecordsRequest struct {
	CustomerIDs  []int64                     `form:"customer_id"`
	Statuses     []types.BillingRecordStatus `form:"status"`
	PeriodNumber *int                        `form:"period_number"`
	IsAutomatic  *bool                       `form:"is_automatic"`
}

func (r *ListBillingRecordsRequest) ToFilter() *types.BillingRecordFilter {
	return &types.BillingRecordFilter{
		CustomerIDs:  r.CustomerIDs,
		Statuses:     r.Statuses,
		PeriodNumber: r.PeriodNumber,
		IsAutomatic:  r.IsAutomatic,
	}
}

type BillingRecordResponse struct {
	ID            string                    `json:"id"`
	OrderID       string                    `json:"order_id"`
	CustomerID    int64                     `json:"customer_id"`
	CustomerName  string                    `json:"customer_name"`
	Email         string                    `json:"email"`
	Phone         string                    `json:"phone"`
	NationalID    string                    `json:"national_id"`
	Address       string                    `json:"address"`
	Amount        decimal.Decimal           `json:"amount" swaggertype:"string"`
	PaymentMethod types.PaymentMethod       `json:"payment_method"`
	PeriodNumber  int                       `json:"period_number"`
	DueDate       string                    `json:"due_date"`
	Status        types.BillingRecordStatus `json:"status"`
	IsAutomatic   bool                      `json:"is_automatic"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

func NewBillingRecordResponse(r *billingrecord.BillingRecord) *BillingRecordResponse {
	return &BillingRecordResponse{
		ID:            r.ID,
		OrderID:       r.OrderID,
		CustomerID:    r.CustomerID,
		CustomerName:  r.CustomerName,
		Email:         r.Email,
		Phone:         r.Phone,
		NationalID:    r.NationalID,
		Address:       r.Address,
		Amount:        r.Amount,
		PaymentMethod: r.PaymentMethod,
		PeriodNumber:  r.PeriodNumber,
		DueDate:       types.FormatDate(r.DueDate),
		Status:        r.Status,
		IsAutomatic:   r.IsAutomatic,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type ListBillingRecordsResponse struct {
	Items []*BillingRecordResponse `json:"items"`
	Total int                      `json:"total"`
}

func NewListBillingRecordsResponse(records []*billingrecord.BillingRecord) *ListBillingRecordsResponse {
	return &ListBillingRecordsResponse{
		Items: lo.Map(records, func(r *billingrecord.BillingRecord, _ int) *BillingRecordResponse {
			return NewBillingRecordResponse(r)
		}),
		Total: len(records),
	}
}
