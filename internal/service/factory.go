package service

import (
	"github.com/flexprice/autobill/internal/config"
	"github.com/flexprice/autobill/internal/domain/billingrecord"
	"github.com/flexprice/autobill/internal/domain/customer"
	"github.com/flexprice/autobill/internal/idempotency"
	"github.com/flexprice/autobill/internal/lock"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/metrics"
	"github.com/flexprice/autobill/internal/postgres"
	"github.com/flexprice/autobill/internal/sentry"
	"go.uber.org/fx"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger      *logger.Logger
	Config      *config.Configuration
	DB          postgres.IClient
	Sentry      *sentry.Service
	Metrics     *metrics.Metrics
	Locker      lock.Locker
	Idempotency *idempotency.Generator

	// Repositories
	CustomerRepo      customer.Repository
	BillingRecordRepo billingrecord.Repository
	SequenceRepo      billingrecord.SequenceRepository
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	sentry *sentry.Service,
	metrics *metrics.Metrics,
	locker lock.Locker,
	customerRepo customer.Repository,
	billingRecordRepo billingrecord.Repository,
	sequenceRepo billingrecord.SequenceRepository,
) ServiceParams {
	return ServiceParams{
		Logger:            logger,
		Config:            config,
		DB:                db,
		Sentry:            sentry,
		Metrics:           metrics,
		Locker:            locker,
		Idempotency:       idempotency.NewGenerator(),
		CustomerRepo:      customerRepo,
		BillingRecordRepo: billingRecordRepo,
		SequenceRepo:      sequenceRepo,
	}
}

// Module provides every service to the fx graph
func Module() fx.Option {
	return fx.Provide(
		NewServiceParams,
		NewSequenceAllocator,
		NewOrderGenerator,
		NewLedgerSynchronizer,
		NewSchedulerService,
		NewBillingRecordService,
		NewCustomerService,
	)
}
