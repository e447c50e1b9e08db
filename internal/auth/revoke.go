package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v7"
)

// Revoker is a deny-list of envelope ids that must be refused before their natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, envelopeID string, until time.Time) error
	IsRevoked(ctx context.Context, envelopeID string) (bool, error)
}

// MemoryRevoker keeps revoked envelope ids in process memory. Entries are dropped
// once the envelope would have expired anyway.
type MemoryRevoker struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryRevoker starts a deny-list with a background cleanup every interval.
func NewMemoryRevoker(cleanupInterval time.Duration) *MemoryRevoker {
	m := &MemoryRevoker{
		entries: make(map[string]time.Time),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.cleanupLoop(cleanupInterval)
	}
	return m
}

// Revoke denies envelopeID until the given instant.
func (m *MemoryRevoker) Revoke(_ context.Context, envelopeID string, until time.Time) error {
	if envelopeID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[envelopeID] = until
	return nil
}

// IsRevoked reports whether envelopeID is denied right now.
func (m *MemoryRevoker) IsRevoked(_ context.Context, envelopeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	until, ok := m.entries[envelopeID]
	if !ok {
		return false, nil
	}
	return m.now().Before(until), nil
}

// Len returns the number of tracked entries.
func (m *MemoryRevoker) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stop ends the cleanup goroutine.
func (m *MemoryRevoker) Stop() {
	m.once.Do(func() { close(m.stopCh) })
}

func (m *MemoryRevoker) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MemoryRevoker) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, until := range m.entries {
		if !now.Before(until) {
			delete(m.entries, id)
		}
	}
}

const redisRevokedPrefix = "findocs:revoked:"

// RedisRevoker shares the deny-list between instances. Keys expire with the envelope.
type RedisRevoker struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRevoker connects and pings the Redis server.
func NewRedisRevoker(addr, password string, db int) (*RedisRevoker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisRevoker{client: client, now: time.Now}, nil
}

// Revoke stores envelopeID with a TTL reaching until.
func (r *RedisRevoker) Revoke(ctx context.Context, envelopeID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if envelopeID == "" || ttl <= 0 {
		return nil
	}
	return r.client.WithContext(ctx).Set(redisRevokedPrefix+envelopeID, "1", ttl).Err()
}

// IsRevoked reports whether the key is still present.
func (r *RedisRevoker) IsRevoked(ctx context.Context, envelopeID string) (bool, error) {
	n, err := r.client.WithContext(ctx).Exists(redisRevokedPrefix + envelopeID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping checks connectivity; used by the readiness probe.
func (r *RedisRevoker) Ping(ctx context.Context) error {
	return r.client.WithContext(ctx).Ping().Err()
}

// Close releases the connection pool.
func (r *RedisRevoker) Close() error {
	return r.client.Close()
}
