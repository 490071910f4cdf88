package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// DefaultSyncLockTTL bounds how long a crashed holder blocks other runs
const DefaultSyncLockTTL = 2 * time.Hour

// InMemorySyncLock implements integration.SyncLock for a single process.
// The lock expires after the TTL so a holder that never unlocks cannot
// block sync forever.
type InMemorySyncLock struct {
	mu        sync.Mutex
	ttl       time.Duration
	held      bool
	expiresAt time.Time
	now       func() time.Time
}

// NewInMemorySyncLock creates a process-local sync lock
func NewInMemorySyncLock(ttl time.Duration) *InMemorySyncLock {
	if ttl <= 0 {
		ttl = DefaultSyncLockTTL
	}
	return &InMemorySyncLock{ttl: ttl, now: time.Now}
}

// TryLock acquires the lock if it is free or expired
func (l *InMemorySyncLock) TryLock(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.held && now.Before(l.expiresAt) {
		return false, nil
	}
	l.held = true
	l.expiresAt = now.Add(l.ttl)
	return true, nil
}

// Unlock releases the lock
func (l *InMemorySyncLock) Unlock(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}

// Ensure InMemorySyncLock implements SyncLock
var _ integration.SyncLock = (*InMemorySyncLock)(nil)
