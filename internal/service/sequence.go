package service

import (
	"context"
	"time"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
)

// SequenceAllocator issues human readable order ids backed by the global counter
type SequenceAllocator interface {
	// NextOrderID allocates the next counter value and renders it for the
	// year of day, e.g. AUTO-2024-0042
	NextOrderID(ctx context.Context, day time.Time) (string, error)
}

type sequenceAllocator struct {
	ServiceParams
}

func NewSequenceAllocator(params ServiceParams) SequenceAllocator {
	return &sequenceAllocator{ServiceParams: params}
}

func (s *sequenceAllocator) NextOrderID(ctx context.Context, day time.Time) (string, error) {
	value, err := s.SequenceRepo.NextValue(ctx)
	if err != nil {
		return "", err
	}
	return billingrecord.FormatOrderID(s.Config.Billing.OrderPrefix, day.Year(), value), nil
}
