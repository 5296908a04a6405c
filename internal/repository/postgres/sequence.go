package postgres

import (
	"context"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/postgres"
)

type sequenceRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewSequenceRepository(db postgres.IClient, logger *logger.Logger) billingrecord.SequenceRepository {
	return &sequenceRepository{db: db, logger: logger}
}

// NextValue increments the single row counter atomically. The upsert creates
// the row on first use and the row lock serialises concurrent callers.
func (r *sequenceRepository) NextValue(ctx context.Context) (int64, error) {
	query := `
		INSERT INTO sequence_counter (id, value) VALUES (1, 1)
		ON CONFLICT (id) DO UPDATE SET value = sequence_counter.value + 1
		RETURNING value`

	var value int64
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &value, query); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to allocate order sequence").
			Mark(ierr.ErrDatabase)
	}
	return value, nil
}
