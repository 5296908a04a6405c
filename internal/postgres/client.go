package postgres

import (
	"context"

	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/sentry"
	"go.uber.org/fx"
)

// IClient defines the interface for postgres client operations
type IClient interface {
	// WithTx wraps the given function in a transaction. Nested calls
	// run inside a savepoint of the outer transaction.
	WithTx(ctx context.Context, fn func(context.Context) error) error

	// GetQuerier returns the transaction from context if any, or the pool
	GetQuerier(ctx context.Context) Querier
}

// Module provides the postgres client to the fx graph
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
		fx.Invoke(registerHooks),
	)
}

// NewClient exposes the pool as an IClient, instrumented with sentry spans
func NewClient(db *DB, sentry *sentry.Service, logger *logger.Logger) IClient {
	return NewSentryClient(db, sentry, logger)
}

func registerHooks(lc fx.Lifecycle, db *DB, logger *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing postgres connection pool")
			db.Close()
			return nil
		},
	})
}
