// Package lock provides the mutual exclusion that keeps a single daily
// billing check running per calendar day, in one process or across replicas.
package lock

import (
	"context"
	"time"

	"github.com/flexprice/autobill/internal/config"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// ReleaseFunc gives a held lock back. Releasing twice or after expiry is a no-op.
type ReleaseFunc func(ctx context.Context) error

// Locker hands out non-blocking, expiring locks
type Locker interface {
	// TryAcquire takes the lock for key or fails with an error marked
	// ierr.ErrAlreadyRunning when someone else holds it
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}

// NewLocker builds the backend selected by scheduler.lock_backend
func NewLocker(lc fx.Lifecycle, cfg *config.Configuration, logger *logger.Logger) (Locker, error) {
	switch cfg.Scheduler.LockBackend {
	case types.LockBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					return ierr.WithError(err).
						WithHintf("Could not reach redis at %s", cfg.Redis.Address).
						Mark(ierr.ErrSystem)
				}
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		logger.Infow("using redis job lock", "address", cfg.Redis.Address)
		return NewRedisLocker(client, cfg.Redis.KeyPrefix), nil
	case types.LockBackendMemory, "":
		logger.Info("using in-memory job lock")
		return NewMemoryLocker(), nil
	default:
		return nil, ierr.NewError("unknown lock backend").
			WithHintf("Lock backend must be %s or %s", types.LockBackendMemory, types.LockBackendRedis).
			WithReportableDetails(map[string]any{
				"lock_backend": cfg.Scheduler.LockBackend,
			}).
			Mark(ierr.ErrValidation)
	}
}

// DailyCheckKey is the lock key of the daily check for one calendar day
func DailyCheckKey(day time.Time) string {
	return "daily-check:" + types.FormatDate(day)
}

func alreadyHeld(key string) error {
	return ierr.NewError("lock already held").
		WithHintf("Another run holds %s", key).
		WithReportableDetails(map[string]any{
			"key": key,
		}).
		Mark(ierr.ErrAlreadyRunning)
}
