package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
	"github.com/flexprice/autobill/internal/domain/customer"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/testutil"
	"github.com/flexprice/autobill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type BillingRecordServiceSuite struct {
	billingServiceSuite
	customer *customer.Customer
}

func TestBillingRecordService(t *testing.T) {
	suite.Run(t, new(BillingRecordServiceSuite))
}

func (s *BillingRecordServiceSuite) SetupTest() {
	s.billingServiceSuite.SetupTest()
	s.customer = s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 5), 5, testutil.PeriodsUpTo(7)...)
}

// createRecord stores an automatic record for the suite customer
func (s *BillingRecordServiceSuite) createRecord(period int, status types.BillingRecordStatus) *billingrecord.BillingRecord {
	orderID, err := s.sequence.NextOrderID(s.GetContext(), testutil.Date(2024, time.August, 5))
	s.Require().NoError(err)

	due, err := types.DueDateFor(s.customer.GetSubscriptionStart(), s.customer.PaymentDay, period)
	s.Require().NoError(err)

	r := billingrecord.NewAutomatic(s.customer, orderID, period, due,
		s.params.Idempotency.AutomaticBillingRecordKey(s.customer.ID, period), s.GetNow())
	r.Status = status

	created, err := s.records.CreateBillingRecords(s.GetContext(), []*billingrecord.BillingRecord{r})
	s.Require().NoError(err)
	s.Require().Len(created, 1)
	return created[0]
}

func (s *BillingRecordServiceSuite) status(orderID string) types.BillingRecordStatus {
	r, err := s.records.GetBillingRecord(s.GetContext(), orderID)
	s.Require().NoError(err)
	return r.Status
}

func (s *BillingRecordServiceSuite) TestSetStatusTransitions() {
	testCases := []struct {
		name     string
		from     types.BillingRecordStatus
		to       types.BillingRecordStatus
		inLedger bool
	}{
		{"pending_to_completed_adds", types.BillingRecordStatusPending, types.BillingRecordStatusCompleted, true},
		{"completed_to_cancelled_removes", types.BillingRecordStatusCompleted, types.BillingRecordStatusCancelled, false},
		{"pending_to_cancelled_no_effect", types.BillingRecordStatusPending, types.BillingRecordStatusCancelled, false},
		{"completed_to_completed_noop", types.BillingRecordStatusCompleted, types.BillingRecordStatusCompleted, true},
		{"cancelled_to_completed_readds", types.BillingRecordStatusCancelled, types.BillingRecordStatusCompleted, true},
		{"completed_to_pending_removes", types.BillingRecordStatusCompleted, types.BillingRecordStatusPending, false},
		{"cancelled_to_pending_no_effect", types.BillingRecordStatusCancelled, types.BillingRecordStatusPending, false},
	}

	for i, tc := range testCases {
		s.Run(tc.name, func() {
			period := 8 + i
			r := s.createRecord(period, tc.from)
			s.Equal(tc.from == types.BillingRecordStatusCompleted, s.paidPeriods(s.customer.ID).Contains(period))

			ok, err := s.records.SetStatus(s.GetContext(), r.OrderID, tc.to)
			s.Require().NoError(err)
			s.True(ok)

			s.Equal(tc.to, s.status(r.OrderID))
			s.Equal(tc.inLedger, s.paidPeriods(s.customer.ID).Contains(period))
		})
	}
	// periods 1..7 were paid without records and stay paid
	for period := 1; period <= 7; period++ {
		s.True(s.paidPeriods(s.customer.ID).Contains(period))
	}
}

func (s *BillingRecordServiceSuite) TestLedgerEquivalenceOverTransitionSequence() {
	// start from a customer without history so that the ledger is fully record backed
	c := s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 5), 5)
	s.customer = c

	r1 := s.createRecord(1, types.BillingRecordStatusPending)
	r2 := s.createRecord(2, types.BillingRecordStatusPending)
	r3 := s.createRecord(3, types.BillingRecordStatusPending)

	steps := []struct {
		orderID string
		status  types.BillingRecordStatus
	}{
		{r1.OrderID, types.BillingRecordStatusCompleted},
		{r2.OrderID, types.BillingRecordStatusCompleted},
		{r1.OrderID, types.BillingRecordStatusCancelled},
		{r3.OrderID, types.BillingRecordStatusCancelled},
		{r1.OrderID, types.BillingRecordStatusCompleted},
		{r2.OrderID, types.BillingRecordStatusCompleted},
		{r3.OrderID, types.BillingRecordStatusCompleted},
		{r2.OrderID, types.BillingRecordStatusPending},
	}
	for _, step := range steps {
		ok, err := s.records.SetStatus(s.GetContext(), step.orderID, step.status)
		s.Require().NoError(err)
		s.Require().True(ok)
		s.assertLedgerConsistent(c.ID)
	}
	s.Equal(types.NewPaidPeriods(1, 3), s.paidPeriods(c.ID))
}

func (s *BillingRecordServiceSuite) TestReversalRoundTrip() {
	r := s.createRecord(8, types.BillingRecordStatusPending)
	before := s.paidPeriods(s.customer.ID)

	_, err := s.records.SetStatus(s.GetContext(), r.OrderID, types.BillingRecordStatusCompleted)
	s.Require().NoError(err)
	_, err = s.records.SetStatus(s.GetContext(), r.OrderID, types.BillingRecordStatusCancelled)
	s.Require().NoError(err)

	s.Equal(before, s.paidPeriods(s.customer.ID))
}

func (s *BillingRecordServiceSuite) TestSetStatusUnknownOrder() {
	ok, err := s.records.SetStatus(s.GetContext(), "AUTO-2024-9999", types.BillingRecordStatusCompleted)
	s.NoError(err)
	s.False(ok)
}

func (s *BillingRecordServiceSuite) TestSetStatusInvalidStatus() {
	r := s.createRecord(8, types.BillingRecordStatusPending)

	ok, err := s.records.SetStatus(s.GetContext(), r.OrderID, types.BillingRecordStatus("refunded"))
	s.False(ok)
	s.True(ierr.IsValidation(err))
	s.Equal(types.BillingRecordStatusPending, s.status(r.OrderID))
}

func (s *BillingRecordServiceSuite) TestDeleteKeepsLedgerByDefault() {
	r := s.createRecord(8, types.BillingRecordStatusCompleted)
	s.True(s.paidPeriods(s.customer.ID).Contains(8))

	ok, err := s.records.DeleteBillingRecord(s.GetContext(), r.OrderID, DeleteOptions{})
	s.Require().NoError(err)
	s.True(ok)

	_, err = s.records.GetBillingRecord(s.GetContext(), r.OrderID)
	s.True(ierr.IsNotFound(err))
	s.True(s.paidPeriods(s.customer.ID).Contains(8))

	// reconciliation repairs the drift
	result, err := s.customers.ReconcileLedger(s.GetContext(), s.customer.ID)
	s.Require().NoError(err)
	s.Equal([]int{1, 2, 3, 4, 5, 6, 7, 8}, result.Removed)
	s.Empty(result.Added)
	s.Empty(s.paidPeriods(s.customer.ID))
}

func (s *BillingRecordServiceSuite) TestDeleteWithReverseLedger() {
	r := s.createRecord(8, types.BillingRecordStatusCompleted)

	ok, err := s.records.DeleteBillingRecord(s.GetContext(), r.OrderID, DeleteOptions{ReverseLedger: true})
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(types.NewPaidPeriods(testutil.PeriodsUpTo(7)...), s.paidPeriods(s.customer.ID))
}

func (s *BillingRecordServiceSuite) TestDeleteUnknownOrder() {
	ok, err := s.records.DeleteBillingRecord(s.GetContext(), "AUTO-2024-9999", DeleteOptions{ReverseLedger: true})
	s.NoError(err)
	s.False(ok)
}

func (s *BillingRecordServiceSuite) TestUpdateFieldsLeavesStatusAndLedger() {
	r := s.createRecord(8, types.BillingRecordStatusCompleted)
	ledger := s.paidPeriods(s.customer.ID)

	ok, err := s.records.UpdateFields(s.GetContext(), r.OrderID, billingrecord.FieldUpdates{
		Email:  lo.ToPtr("new@example.com"),
		Amount: lo.ToPtr(decimal.RequireFromString("1500.00")),
	})
	s.Require().NoError(err)
	s.True(ok)

	updated, err := s.records.GetBillingRecord(s.GetContext(), r.OrderID)
	s.Require().NoError(err)
	s.Equal("new@example.com", updated.Email)
	s.Equal(r.CustomerName, updated.CustomerName)
	s.True(updated.Amount.Equal(decimal.RequireFromString("1500.00")))
	s.Equal(types.BillingRecordStatusCompleted, updated.Status)
	s.Equal(ledger, s.paidPeriods(s.customer.ID))

	// the customer record is not touched by snapshot edits
	c, err := s.GetStores().CustomerRepo.Get(s.GetContext(), s.customer.ID)
	s.Require().NoError(err)
	s.Equal("ayse@example.com", c.Email)
}

func (s *BillingRecordServiceSuite) TestUpdateFieldsValidation() {
	r := s.createRecord(8, types.BillingRecordStatusPending)

	ok, err := s.records.UpdateFields(s.GetContext(), r.OrderID, billingrecord.FieldUpdates{
		Amount: lo.ToPtr(decimal.NewFromInt(-1)),
	})
	s.False(ok)
	s.True(ierr.IsValidation(err))

	ok, err = s.records.UpdateFields(s.GetContext(), "AUTO-2024-9999", billingrecord.FieldUpdates{Name: lo.ToPtr("x")})
	s.NoError(err)
	s.False(ok)
}

func (s *BillingRecordServiceSuite) TestListPendingForCustomer() {
	pending := s.createRecord(8, types.BillingRecordStatusPending)
	s.createRecord(9, types.BillingRecordStatusCompleted)
	s.createRecord(10, types.BillingRecordStatusCancelled)

	records, err := s.records.ListPendingForCustomer(s.GetContext(), s.customer.ID)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(pending.OrderID, records[0].OrderID)

	none, err := s.records.ListPendingForCustomer(s.GetContext(), 12345)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *BillingRecordServiceSuite) TestCreateRejectsDuplicateAutomaticPeriod() {
	s.createRecord(8, types.BillingRecordStatusPending)

	orderID, err := s.sequence.NextOrderID(s.GetContext(), testutil.Date(2024, time.August, 5))
	s.Require().NoError(err)
	dup := billingrecord.NewAutomatic(s.customer, orderID, 8, testutil.Date(2024, time.August, 5), "k", s.GetNow())

	created, err := s.records.CreateBillingRecords(s.GetContext(), []*billingrecord.BillingRecord{dup})
	s.Require().NoError(err)
	s.Empty(created)
}

func (s *BillingRecordServiceSuite) TestCreateRejectsDuplicateOrderID() {
	r := s.createRecord(8, types.BillingRecordStatusPending)

	manual := billingrecord.NewAutomatic(s.customer, r.OrderID, 9, testutil.Date(2024, time.September, 5), "", s.GetNow())
	manual.ID = "manual_9"
	manual.IsAutomatic = false

	created, err := s.records.CreateBillingRecords(s.GetContext(), []*billingrecord.BillingRecord{manual})
	s.Nil(created)
	s.True(ierr.IsAlreadyExists(err))
}

// createManualCompleted stores a completed manual record for a period that
// may already have an automatic one
func (s *BillingRecordServiceSuite) createManualCompleted(c *customer.Customer, orderID string, period int) *billingrecord.BillingRecord {
	due, err := types.DueDateFor(c.GetSubscriptionStart(), c.PaymentDay, period)
	s.Require().NoError(err)

	r := billingrecord.NewAutomatic(c, orderID, period, due, "", s.GetNow())
	r.ID = "manual_" + orderID
	r.IsAutomatic = false
	r.Status = types.BillingRecordStatusCompleted

	created, err := s.records.CreateBillingRecords(s.GetContext(), []*billingrecord.BillingRecord{r})
	s.Require().NoError(err)
	s.Require().Len(created, 1)
	return created[0]
}

func (s *BillingRecordServiceSuite) TestLedgerKeepsPeriodCoveredBySiblingRecord() {
	testCases := []struct {
		name   string
		remove func(r *billingrecord.BillingRecord)
	}{
		{
			name: "cancel",
			remove: func(r *billingrecord.BillingRecord) {
				ok, err := s.records.SetStatus(s.GetContext(), r.OrderID, types.BillingRecordStatusCancelled)
				s.Require().NoError(err)
				s.True(ok)
			},
		},
		{
			name: "set_pending",
			remove: func(r *billingrecord.BillingRecord) {
				ok, err := s.records.SetStatus(s.GetContext(), r.OrderID, types.BillingRecordStatusPending)
				s.Require().NoError(err)
				s.True(ok)
			},
		},
		{
			name: "delete_with_reverse",
			remove: func(r *billingrecord.BillingRecord) {
				ok, err := s.records.DeleteBillingRecord(s.GetContext(), r.OrderID, DeleteOptions{ReverseLedger: true})
				s.Require().NoError(err)
				s.True(ok)
			},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			c := s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 5), 5)

			day := testutil.Date(2024, time.January, 5)
			created, err := s.scheduler.RunDailyCheck(s.GetContext(), []*customer.Customer{c}, day)
			s.Require().NoError(err)
			s.Require().Len(created, 1)
			auto := created[0]

			ok, err := s.records.SetStatus(s.GetContext(), auto.OrderID, types.BillingRecordStatusCompleted)
			s.Require().NoError(err)
			s.True(ok)
			manual := s.createManualCompleted(c, fmt.Sprintf("MANUAL-%d", c.ID), auto.PeriodNumber)
			s.assertLedgerConsistent(c.ID)

			// one sibling leaves completed, the other still covers the period
			tc.remove(auto)
			s.Equal(types.NewPaidPeriods(auto.PeriodNumber), s.paidPeriods(c.ID))
			s.assertLedgerConsistent(c.ID)

			// the last completed record leaving removes it
			ok, err = s.records.SetStatus(s.GetContext(), manual.OrderID, types.BillingRecordStatusCancelled)
			s.Require().NoError(err)
			s.True(ok)
			s.Empty(s.paidPeriods(c.ID))
			s.assertLedgerConsistent(c.ID)
		})
	}
}

func (s *BillingRecordServiceSuite) TestListFilterValidation() {
	_, err := s.records.ListBillingRecords(s.GetContext(), &types.BillingRecordFilter{
		PeriodNumber: lo.ToPtr(25),
	})
	s.True(ierr.IsValidation(err))
}

func TestNextLedger(t *testing.T) {
	paid := types.NewPaidPeriods(1, 2)

	assert.Equal(t, types.NewPaidPeriods(1, 2, 3), NextLedger(paid, 3, types.BillingRecordStatusPending, types.BillingRecordStatusCompleted, false))
	assert.Equal(t, types.NewPaidPeriods(1, 2), NextLedger(paid, 2, types.BillingRecordStatusCompleted, types.BillingRecordStatusCompleted, false))
	assert.Equal(t, types.NewPaidPeriods(1), NextLedger(paid, 2, types.BillingRecordStatusCompleted, types.BillingRecordStatusCancelled, false))
	assert.Equal(t, types.NewPaidPeriods(1, 2), NextLedger(paid, 2, types.BillingRecordStatusCompleted, types.BillingRecordStatusCancelled, true))
	assert.Equal(t, types.NewPaidPeriods(1, 2), NextLedger(paid, 3, types.BillingRecordStatusPending, types.BillingRecordStatusCancelled, false))
	assert.Equal(t, types.NewPaidPeriods(1, 2), NextLedger(paid, 4, types.BillingRecordStatusCompleted, types.BillingRecordStatusCancelled, false))
	assert.Equal(t, types.NewPaidPeriods(1, 2), paid, "input ledger is not mutated")
}
