package dto

import (
	"time"

	"github.com/flexprice/autobill/internal/domain/customer"
	"github.com/flexprice/autobill/internal/service"
	"github.com/flexprice/autobill/internal/types"
	"github.com/flexprice/autobill/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type CustomerResponse struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name"`
	Email             string              `json:"email"`
	Phone             string              `json:"phone"`
	NationalID        string              `json:"national_id"`
	Address           string              `json:"address"`
	SubscriptionStart *string             `json:"subscription_start,omitempty"`
	PaymentDay        int                 `json:"payment_day"`
	TotalAmount       decimal.Decimal     `json:"total_amount" swaggertype:"string"`
	PaymentMethod     types.PaymentMethod `json:"payment_method"`
	PaidPeriods       types.PaidPeriods   `json:"paid_periods"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func NewCustomerResponse(c *customer.Customer) *CustomerResponse {
	resp := &CustomerResponse{
		ID:            c.ID,
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		NationalID:    c.NationalID,
		Address:       c.Address,
		PaymentDay:    c.PaymentDay,
		TotalAmount:   c.TotalAmount,
		PaymentMethod: c.PaymentMethod,
		PaidPeriods:   c.PaidPeriods.Normalize(),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.SubscriptionStart != nil {
		resp.SubscriptionStart = lo.ToPtr(types.FormatDate(*c.SubscriptionStart))
	}
	return resp
}

type ListCustomersResponse struct {
	Items []*CustomerResponse `json:"items"`
	Total int                 `json:"total"`
}

func NewListCustomersResponse(customers []*customer.Customer) *ListCustomersResponse {
	return &ListCustomersResponse{
		Items: lo.Map(customers, func(c *customer.Customer, _ int) *CustomerResponse {
			return NewCustomerResponse(c)
		}),
		Total: len(customers),
	}
}

type UpdatePaymentDayRequest struct {
	PaymentDay int `json:"payment_day" validate:"required,min=1,max=31"`
}

func (r *UpdatePaymentDayRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return types.ValidatePaymentDay(r.PaymentDay)
}

type BillingScheduleResponse struct {
	CustomerID       int64             `json:"customer_id"`
	PaidPeriods      types.PaidPeriods `json:"paid_periods"`
	NextPeriod       int               `json:"next_period,omitempty"`
	NextDueDate      *string           `json:"next_due_date,omitempty"`
	RemainingPeriods int               `json:"remaining_periods"`
	Complete         bool              `json:"complete"`
	PendingOrderIDs  []string          `json:"pending_order_ids"`
}

func NewBillingScheduleResponse(s *service.BillingSchedule) *BillingScheduleResponse {
	resp := &BillingScheduleResponse{
		CustomerID:       s.CustomerID,
		PaidPeriods:      s.PaidPeriods,
		RemainingPeriods: s.RemainingPeriods,
		Complete:         s.Complete,
		PendingOrderIDs:  s.PendingOrderIDs,
	}
	if !s.Complete {
		resp.NextPeriod = s.NextPeriod
	}
	if s.NextDueDate != nil {
		resp.NextDueDate = lo.ToPtr(types.FormatDate(*s.NextDueDate))
	}
	return resp
}

type LedgerReconciliationResponse struct {
	CustomerID  int64             `json:"customer_id"`
	Added       []int             `json:"added"`
	Removed     []int             `json:"removed"`
	PaidPeriods types.PaidPeriods `json:"paid_periods"`
}

func NewLedgerReconciliationResponse(r *service.LedgerReconciliation) *LedgerReconciliationResponse {
	return &LedgerReconciliationResponse{
		CustomerID:  r.CustomerID,
		Added:       lo.Ternary(r.Added == nil, []int{}, r.Added),
		Removed:     lo.Ternary(r.Removed == nil, []int{}, r.Removed),
		PaidPeriods: r.PaidPeriods,
	}
}
