package contact

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stealthtrack/internal/constants"
)

// IdentificationGuard suppresses duplicate identification events. The
// tracker fires beacons with keepalive plus an XHR fallback, so the same
// lead capture can arrive more than once; the document-state check in
// the service catches most duplicates and this guard catches the rest
// when two deliveries race.
type IdentificationGuard interface {
	// FirstIdentification returns true exactly once per contact within
	// the TTL window.
	FirstIdentification(ctx context.Context, contactID string) (bool, error)
}

type redisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) IdentificationGuard {
	if ttl <= 0 {
		ttl = constants.DefaultIdentifiedTTL
	}
	return &redisGuard{client: client, ttl: ttl}
}

func (g *redisGuard) FirstIdentification(ctx context.Context, contactID string) (bool, error) {
	key := constants.IdentifiedKeyPrefix + contactID
	ok, err := g.client.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set identification guard: %w", err)
	}
	return ok, nil
}

// noopGuard is used when Redis is not configured; the document-state
// check alone decides.
type noopGuard struct{}

func NewNoopGuard() IdentificationGuard {
	return noopGuard{}
}

func (noopGuard) FirstIdentification(ctx context.Context, contactID string) (bool, error) {
	return true, nil
}
