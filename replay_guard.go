package authflow

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// replayGuard records consumed purpose-token ids in Redis for the token's
// remaining lifetime. Without it, single use of a purpose token is only
// approximated by the 60-second window; with it, each jti is accepted
// exactly once.
type replayGuard struct {
	redis  *redis.Client
	prefix string
}

func newReplayGuard(client *redis.Client, prefix string) *replayGuard {
	return &replayGuard{redis: client, prefix: prefix}
}

func (g *replayGuard) key(jti string) string {
	return g.prefix + ":" + jti
}

// Consume marks jti as used. It returns false when the id was already
// consumed, and an error only on a Redis outage.
func (g *replayGuard) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := g.redis.SetNX(ctx, g.key(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}
