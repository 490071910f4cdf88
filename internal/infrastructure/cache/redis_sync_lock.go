package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// DefaultSyncLockKey is the Redis key guarding sync runs
const DefaultSyncLockKey = "catalog-sync:lock"

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSyncLock implements integration.SyncLock using Redis so several
// instances pointed at the same catalogs never sync concurrently.
// Acquisition is SET NX PX with a per-acquisition token; release is a
// compare-and-delete so an expired holder cannot free someone else's lock.
type RedisSyncLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisSyncLock connects to Redis and creates a sync lock
func NewRedisSyncLock(cfg RedisConfig, ttl time.Duration) (*RedisSyncLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSyncLockWithClient(client, "", ttl), nil
}

// NewRedisSyncLockWithClient creates a lock with an existing Redis client
func NewRedisSyncLockWithClient(client *redis.Client, key string, ttl time.Duration) *RedisSyncLock {
	if key == "" {
		key = DefaultSyncLockKey
	}
	if ttl <= 0 {
		ttl = DefaultSyncLockTTL
	}
	return &RedisSyncLock{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// TryLock acquires the lock without waiting
func (l *RedisSyncLock) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

// Unlock releases the lock if this holder still owns it
func (l *RedisSyncLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisSyncLock) Close() error {
	return l.client.Close()
}

// Ensure RedisSyncLock implements SyncLock
var _ integration.SyncLock = (*RedisSyncLock)(nil)
