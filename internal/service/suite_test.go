package service

import (
	"github.com/flexprice/autobill/internal/idempotency"
	"github.com/flexprice/autobill/internal/testutil"
	"github.com/flexprice/autobill/internal/types"
)

// billingServiceSuite wires every billing service to the in-memory stores.
// It carries no tests of its own.
type billingServiceSuite struct {
	testutil.BaseServiceTestSuite

	params    ServiceParams
	sequence  SequenceAllocator
	generator OrderGenerator
	ledger    LedgerSynchronizer
	scheduler SchedulerService
	records   BillingRecordService
	customers CustomerService
}

func (s *billingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	s.params = ServiceParams{
		Logger:            s.GetLogger(),
		Config:            s.GetConfig(),
		DB:                s.GetDB(),
		Sentry:            s.GetSentry(),
		Metrics:           s.GetMetrics(),
		Locker:            s.GetLocker(),
		Idempotency:       idempotency.NewGenerator(),
		CustomerRepo:      stores.CustomerRepo,
		BillingRecordRepo: stores.BillingRecordRepo,
		SequenceRepo:      stores.SequenceRepo,
	}
	s.sequence = NewSequenceAllocator(s.params)
	s.generator = NewOrderGenerator(s.params, s.sequence)
	s.ledger = NewLedgerSynchronizer(s.params)
	s.scheduler = NewSchedulerService(s.params, s.generator)
	s.records = NewBillingRecordService(s.params, s.ledger)
	s.customers = NewCustomerService(s.params, s.ledger)
}

// paidPeriods reads the stored ledger of a customer
func (s *billingServiceSuite) paidPeriods(customerID int64) types.PaidPeriods {
	c, err := s.GetStores().CustomerRepo.Get(s.GetContext(), customerID)
	s.Require().NoError(err)
	return c.PaidPeriods
}

// completedPeriods derives the ledger from stored records
func (s *billingServiceSuite) completedPeriods(customerID int64) types.PaidPeriods {
	records, err := s.GetStores().BillingRecordRepo.List(s.GetContext(), &types.BillingRecordFilter{
		CustomerIDs: []int64{customerID},
		Statuses:    []types.BillingRecordStatus{types.BillingRecordStatusCompleted},
	})
	s.Require().NoError(err)
	periods := make([]int, 0, len(records))
	for _, r := range records {
		periods = append(periods, r.PeriodNumber)
	}
	return types.NewPaidPeriods(periods...)
}

func (s *billingServiceSuite) assertLedgerConsistent(customerID int64) {
	s.Equal(s.completedPeriods(customerID), s.paidPeriods(customerID))
}
