package testutil

import (
	"context"
	"time"

	"github.com/flexprice/autobill/internal/config"
	"github.com/flexprice/autobill/internal/domain/billingrecord"
	"github.com/flexprice/autobill/internal/domain/customer"
	"github.com/flexprice/autobill/internal/lock"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/metrics"
	"github.com/flexprice/autobill/internal/sentry"
	"github.com/flexprice/autobill/internal/types"
	"github.com/flexprice/autobill/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	CustomerRepo      customer.Repository
	BillingRecordRepo billingrecord.Repository
	SequenceRepo      billingrecord.SequenceRepository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	stores  Stores
	db      *MockPostgresClient
	logger  *logger.Logger
	config  *config.Configuration
	sentry  *sentry.Service
	metrics *metrics.Metrics
	locker  lock.Locker
	now     time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()
	s.config.Logging.Level = types.LogLevelInfo
	s.logger = logger.NewNopLogger()
	s.sentry = sentry.NewSentryService(s.config, s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.metrics = metrics.NewNopMetrics()
	s.locker = lock.NewMemoryLocker()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	customers := NewInMemoryCustomerStore()
	records := NewInMemoryBillingRecordStore()
	sequence := NewInMemorySequenceStore()

	s.stores = Stores{
		CustomerRepo:      customers,
		BillingRecordRepo: records,
		SequenceRepo:      sequence,
	}
	s.db = NewMockPostgresClient(s.logger, customers, records, sequence)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.CustomerRepo.(*InMemoryCustomerStore).Clear()
	s.stores.BillingRecordRepo.(*InMemoryBillingRecordStore).Clear()
	s.stores.SequenceRepo.(*InMemorySequenceStore).Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

func (s *BaseServiceTestSuite) GetLocker() lock.Locker {
	return s.locker
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// Date is shorthand for a UTC calendar day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateSubscribedCustomer stores a customer with the given terms and ledger
func (s *BaseServiceTestSuite) CreateSubscribedCustomer(start time.Time, paymentDay int, paid ...int) *customer.Customer {
	c := &customer.Customer{
		Name:              "Ayşe Yılmaz",
		Email:             "ayse@example.com",
		Phone:             "+905551112233",
		NationalID:        "12345678901",
		Address:           "Kadıköy, İstanbul",
		SubscriptionStart: &start,
		PaymentDay:        paymentDay,
		TotalAmount:       decimal.RequireFromString("1798.80"),
		PaymentMethod:     types.PaymentMethodCard,
		PaidPeriods:       types.NewPaidPeriods(paid...),
	}
	s.Require().NoError(s.stores.CustomerRepo.Create(s.ctx, c))
	return c
}

// PeriodsUpTo returns 1..n
func PeriodsUpTo(n int) []int {
	out := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, i)
	}
	return out
}
