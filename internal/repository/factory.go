package repository

import (
	"github.com/flexprice/autobill/internal/domain/billingrecord"
	"github.com/flexprice/autobill/internal/domain/customer"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/postgres"
	postgresRepo "github.com/flexprice/autobill/internal/repository/postgres"
	"go.uber.org/fx"
)

// Module provides every repository to the fx graph
func Module() fx.Option {
	return fx.Provide(
		NewCustomerRepository,
		NewBillingRecordRepository,
		NewSequenceRepository,
	)
}

func NewCustomerRepository(db postgres.IClient, logger *logger.Logger) customer.Repository {
	return postgresRepo.NewCustomerRepository(db, logger)
}

func NewBillingRecordRepository(db postgres.IClient, logger *logger.Logger) billingrecord.Repository {
	return postgresRepo.NewBillingRecordRepository(db, logger)
}

func NewSequenceRepository(db postgres.IClient, logger *logger.Logger) billingrecord.SequenceRepository {
	return postgresRepo.NewSequenceRepository(db, logger)
}
