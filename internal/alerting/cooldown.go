package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore suppresses repeat alerts for a key within a window.
// Claim is atomic: exactly one caller wins the window for a given key.
type CooldownStore interface {
	Claim(ctx context.Context, key string, window time.Duration) (bool, error)
}

// MemoryCooldown is the in-process cooldown store
type MemoryCooldown struct {
	mu      sync.Mutex
	claimed map[string]time.Time
	clock   func() time.Time
}

// NewMemoryCooldown creates an in-process cooldown store
func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{
		claimed: make(map[string]time.Time),
		clock:   time.Now,
	}
}

// SetClock overrides the time source for tests
func (m *MemoryCooldown) SetClock(clock func() time.Time) {
	m.clock = clock
}

// Claim returns true if the key was free and is now held until the
// window elapses
func (m *MemoryCooldown) Claim(_ context.Context, key string, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if until, ok := m.claimed[key]; ok && now.Before(until) {
		return false, nil
	}
	m.claimed[key] = now.Add(window)

	// Opportunistic sweep so long-gone keys do not accumulate
	if len(m.claimed) > 4096 {
		for k, until := range m.claimed {
			if now.After(until) {
				delete(m.claimed, k)
			}
		}
	}
	return true, nil
}

// RedisCooldown shares cooldown state across processes using SET NX PX,
// so only one instance alerts per key per window
type RedisCooldown struct {
	client *redis.Client
	prefix string
}

// NewRedisCooldown creates a Redis-backed cooldown store
func NewRedisCooldown(client *redis.Client, prefix string) *RedisCooldown {
	if prefix == "" {
		prefix = "deadline:cooldown:"
	}
	return &RedisCooldown{client: client, prefix: prefix}
}

// Claim sets the key only if absent, with the window as TTL
func (r *RedisCooldown) Claim(ctx context.Context, key string, window time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.prefix+key, 1, window).Result()
}
