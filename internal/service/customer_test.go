package service

import (
	"testing"
	"time"

	"github.com/flexprice/autobill/internal/domain/customer"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/testutil"
	"github.com/flexprice/autobill/internal/types"
	"github.com/stretchr/testify/suite"
)

type CustomerServiceSuite struct {
	billingServiceSuite
}

func TestCustomerService(t *testing.T) {
	suite.Run(t, new(CustomerServiceSuite))
}

func (s *CustomerServiceSuite) TestSetCustomerPaymentDay() {
	c := s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 5), 5)

	testCases := []struct {
		name          string
		customerID    int64
		day           int
		expectedOK    bool
		expectedError bool
	}{
		{name: "valid_day", customerID: c.ID, day: 31, expectedOK: true},
		{name: "zero_day", customerID: c.ID, day: 0, expectedError: true},
		{name: "day_too_large", customerID: c.ID, day: 32, expectedError: true},
		{name: "unknown_customer", customerID: 9999, day: 10},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			ok, err := s.customers.SetCustomerPaymentDay(s.GetContext(), tc.customerID, tc.day)
			if tc.expectedError {
				s.Error(err)
				s.True(ierr.IsValidation(err))
				s.False(ok)
				return
			}
			s.NoError(err)
			s.Equal(tc.expectedOK, ok)
		})
	}

	stored, err := s.customers.GetCustomer(s.GetContext(), c.ID)
	s.Require().NoError(err)
	s.Equal(31, stored.PaymentDay)
}

func (s *CustomerServiceSuite) TestPaymentDayChangeMovesNextDueDate() {
	c := s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 15), 15, 1, 2)

	schedule, err := s.customers.GetBillingSchedule(s.GetContext(), c.ID)
	s.Require().NoError(err)
	s.Require().NotNil(schedule.NextDueDate)
	s.Equal(testutil.Date(2024, time.March, 15), *schedule.NextDueDate)

	ok, err := s.customers.SetCustomerPaymentDay(s.GetContext(), c.ID, 31)
	s.Require().NoError(err)
	s.Require().True(ok)

	schedule, err = s.customers.GetBillingSchedule(s.GetContext(), c.ID)
	s.Require().NoError(err)
	s.Equal(testutil.Date(2024, time.March, 31), *schedule.NextDueDate)
}

func (s *CustomerServiceSuite) TestGetBillingSchedule() {
	c := s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 31), 31, 1)

	_, err := s.scheduler.RunDailyCheck(s.GetContext(), []*customer.Customer{c}, testutil.Date(2024, time.February, 29))
	s.Require().NoError(err)

	schedule, err := s.customers.GetBillingSchedule(s.GetContext(), c.ID)
	s.Require().NoError(err)

	s.Equal(c.ID, schedule.CustomerID)
	s.Equal(types.NewPaidPeriods(1), schedule.PaidPeriods)
	s.Equal(2, schedule.NextPeriod)
	s.Equal(types.MaxBillingPeriods-1, schedule.RemainingPeriods)
	s.False(schedule.Complete)
	s.Require().NotNil(schedule.NextDueDate)
	s.Equal(testutil.Date(2024, time.February, 29), *schedule.NextDueDate)
	s.Len(schedule.PendingOrderIDs, 1)
}

func (s *CustomerServiceSuite) TestGetBillingScheduleComplete() {
	c := s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 5), 5, testutil.PeriodsUpTo(types.MaxBillingPeriods)...)

	schedule, err := s.customers.GetBillingSchedule(s.GetContext(), c.ID)
	s.Require().NoError(err)
	s.True(schedule.Complete)
	s.Nil(schedule.NextDueDate)
	s.Zero(schedule.RemainingPeriods)
	s.Empty(schedule.PendingOrderIDs)
}

func (s *CustomerServiceSuite) TestOutOfRangeLedgerValuesDoNotEndBilling() {
	c := s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 5), 5, append(testutil.PeriodsUpTo(22), 0, 25)...)

	schedule, err := s.customers.GetBillingSchedule(s.GetContext(), c.ID)
	s.Require().NoError(err)
	s.False(schedule.Complete)
	s.Equal(23, schedule.NextPeriod)
	s.Equal(2, schedule.RemainingPeriods)
	s.Require().NotNil(schedule.NextDueDate)
	s.Equal("2025-11-05", types.FormatDate(*schedule.NextDueDate))

	result, err := s.customers.ReconcileLedger(s.GetContext(), c.ID)
	s.Require().NoError(err)
	s.Contains(result.Removed, 0)
	s.Contains(result.Removed, 25)
}

func (s *CustomerServiceSuite) TestGetBillingScheduleUnknownCustomer() {
	_, err := s.customers.GetBillingSchedule(s.GetContext(), 9999)
	s.True(ierr.IsNotFound(err))
}

func (s *CustomerServiceSuite) TestListCustomers() {
	subscribed := s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 5), 5)
	unsubscribed := &customer.Customer{Name: "Mehmet Demir", Email: "mehmet@example.com"}
	s.Require().NoError(s.GetStores().CustomerRepo.Create(s.GetContext(), unsubscribed))

	all, err := s.customers.ListCustomers(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Len(all, 2)

	onlySubscribed, err := s.customers.ListCustomers(s.GetContext(), &types.CustomerFilter{SubscribedOnly: true})
	s.Require().NoError(err)
	s.Require().Len(onlySubscribed, 1)
	s.Equal(subscribed.ID, onlySubscribed[0].ID)

	byID, err := s.customers.ListCustomers(s.GetContext(), &types.CustomerFilter{CustomerIDs: []int64{unsubscribed.ID}})
	s.Require().NoError(err)
	s.Require().Len(byID, 1)
	s.Equal("Mehmet Demir", byID[0].Name)
}

func (s *CustomerServiceSuite) TestReconcileLedgerWithoutDrift() {
	c := s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 5), 5)

	result, err := s.customers.ReconcileLedger(s.GetContext(), c.ID)
	s.Require().NoError(err)
	s.Empty(result.Added)
	s.Empty(result.Removed)
	s.Zero(s.GetDB().Rollbacks())
}
