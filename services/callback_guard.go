package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// CallbackGuard lets exactly one callback per gateway payment id through to
// verification.
type CallbackGuard interface {
	// Claim returns false when the payment id was already claimed
	Claim(ctx context.Context, paymentID string) (bool, error)
}

// MemoryCallbackGuard is the single-instance guard
type MemoryCallbackGuard struct {
	mu      sync.Mutex
	claimed map[string]time.Time
	ttl     time.Duration
}

func NewMemoryCallbackGuard(ttl time.Duration) *MemoryCallbackGuard {
	return &MemoryCallbackGuard{claimed: make(map[string]time.Time), ttl: ttl}
}

func (g *MemoryCallbackGuard) Claim(_ context.Context, paymentID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for id, at := range g.claimed {
		if now.Sub(at) > g.ttl {
			delete(g.claimed, id)
		}
	}
	if _, ok := g.claimed[paymentID]; ok {
		return false, nil
	}
	g.claimed[paymentID] = now
	return true, nil
}

// RedisCallbackGuard shares claims between instances with SETNX
type RedisCallbackGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCallbackGuard(client *redis.Client, ttl time.Duration) *RedisCallbackGuard {
	return &RedisCallbackGuard{client: client, ttl: ttl}
}

func (g *RedisCallbackGuard) key(paymentID string) string {
	return "checkout:callback:" + paymentID
}

func (g *RedisCallbackGuard) Claim(ctx context.Context, paymentID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(paymentID), time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "claim callback %s", paymentID)
	}
	return ok, nil
}
