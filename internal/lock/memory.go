package lock

import (
	"context"
	"sync"
	"time"

	"github.com/flexprice/autobill/internal/types"
	goCache "github.com/patrickmn/go-cache"
)

const memoryCleanupInterval = 10 * time.Minute

// MemoryLocker serialises runs inside one process. Entries expire with
// their ttl so a crashed run never blocks the next day.
type MemoryLocker struct {
	mu    sync.Mutex
	cache *goCache.Cache
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		cache: goCache.New(goCache.NoExpiration, memoryCleanupInterval),
	}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	token := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LOCK)
	if ttl <= 0 {
		ttl = goCache.NoExpiration
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Add fails while an unexpired entry exists
	if err := l.cache.Add(key, token, ttl); err != nil {
		return nil, alreadyHeld(key)
	}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, ok := l.cache.Get(key); ok && current == token {
			l.cache.Delete(key)
		}
		return nil
	}, nil
}
