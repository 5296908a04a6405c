package lock

import (
	"context"
	"time"

	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/types"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the go-redis client the locker needs
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// releaseScript deletes the key only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serialises runs across replicas sharing one redis
type RedisLocker struct {
	client RedisClient
	prefix string
}

func NewRedisLocker(client RedisClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	fullKey := l.prefix + key
	token := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LOCK)

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to acquire job lock").
			WithReportableDetails(map[string]any{
				"key": fullKey,
			}).
			Mark(ierr.ErrSystem)
	}
	if !ok {
		return nil, alreadyHeld(fullKey)
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
			return ierr.WithError(err).
				WithHint("Failed to release job lock").
				Mark(ierr.ErrSystem)
		}
		return nil
	}, nil
}
