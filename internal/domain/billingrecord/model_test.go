package billingrecord

import (
	"testing"
	"time"

	"github.com/flexprice/autobill/internal/domain/customer"
	"github.com/flexprice/autobill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatOrderID(t *testing.T) {
	assert.Equal(t, "AUTO-2024-0001", FormatOrderID("AUTO", 2024, 1))
	assert.Equal(t, "AUTO-2024-0420", FormatOrderID("AUTO", 2024, 420))
	assert.Equal(t, "AUTO-2025-12345", FormatOrderID("AUTO", 2025, 12345))
}

func TestNewAutomatic_SnapshotsCustomer(t *testing.T) {
	start := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)
	c := &customer.Customer{
		ID:                42,
		Name:              "Ayşe Yılmaz",
		Email:             "ayse@example.com",
		Phone:             "+905551112233",
		NationalID:        "12345678901",
		Address:           "Kadıköy, İstanbul",
		SubscriptionStart: &start,
		PaymentDay:        5,
		TotalAmount:       decimal.RequireFromString("1798.80"),
		PaymentMethod:     types.PaymentMethodCard,
	}
	now := time.Date(2024, time.August, 5, 0, 5, 0, 0, time.UTC)
	due := time.Date(2024, time.August, 5, 0, 0, 0, 0, time.UTC)

	r := NewAutomatic(c, "AUTO-2024-0001", 8, due, "key", now)

	assert.Equal(t, NewID(42, 8, now), r.ID)
	assert.Equal(t, "Ayşe Yılmaz", r.CustomerName)
	assert.Equal(t, "12345678901", r.NationalID)
	assert.True(t, r.Amount.Equal(decimal.RequireFromString("1798.80")))
	assert.Equal(t, types.BillingRecordStatusPending, r.Status)
	assert.True(t, r.IsAutomatic)
	assert.True(t, r.IsFor(42, 8))
	assert.False(t, r.IsFor(42, 9))

	// later customer edits do not leak into the record
	c.Email = "changed@example.com"
	assert.Equal(t, "ayse@example.com", r.Email)
}

func TestFieldUpdates_Apply(t *testing.T) {
	r := &BillingRecord{CustomerName: "old", Email: "old@example.com", Status: types.BillingRecordStatusCompleted, PeriodNumber: 3}
	u := FieldUpdates{Name: lo.ToPtr("new"), Amount: lo.ToPtr(decimal.NewFromInt(10))}

	assert.False(t, u.IsEmpty())
	u.Apply(r)

	assert.Equal(t, "new", r.CustomerName)
	assert.Equal(t, "old@example.com", r.Email)
	assert.True(t, r.Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, types.BillingRecordStatusCompleted, r.Status)
	assert.Equal(t, 3, r.PeriodNumber)
	assert.True(t, FieldUpdates{}.IsEmpty())
}
