package testutil

import (
	"context"

	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

// TxParticipant is an in-memory store that can be rolled back
type TxParticipant interface {
	Snapshot() func()
}

type mockTxKey struct{}

// MockPostgresClient is a mock implementation of postgres client for testing.
// WithTx snapshots every participant and restores them when fn fails, so
// each level behaves like a transaction or savepoint.
type MockPostgresClient struct {
	logger       *logger.Logger
	participants []TxParticipant
	commits      int
	rollbacks    int
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger, participants ...TxParticipant) *MockPostgresClient {
	return &MockPostgresClient{
		logger:       logger,
		participants: participants,
	}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	restores := make([]func(), 0, len(c.participants))
	for _, p := range c.participants {
		restores = append(restores, p.Snapshot())
	}

	if err := fn(context.WithValue(ctx, mockTxKey{}, true)); err != nil {
		for _, restore := range restores {
			restore()
		}
		c.rollbacks++
		c.logger.Debugw("mock transaction rolled back", "error", err)
		return err
	}
	c.commits++
	return nil
}

// GetQuerier is never used by the in-memory stores
func (c *MockPostgresClient) GetQuerier(ctx context.Context) postgres.Querier {
	return nil
}

// InTx reports whether ctx was produced by WithTx
func InTx(ctx context.Context) bool {
	v, _ := ctx.Value(mockTxKey{}).(bool)
	return v
}

func (c *MockPostgresClient) Commits() int   { return c.commits }
func (c *MockPostgresClient) Rollbacks() int { return c.rollbacks }
