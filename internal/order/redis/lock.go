package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Guard prevents a user from running two checkouts at once. The lock is a
// SetNX key with a TTL, so a crashed checkout never wedges the user: the key
// simply expires.
type Guard struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Guard{Client: client, TTL: ttl}
}

func checkoutKey(userID string) string {
	return "checkout_lock:" + userID
}

// Acquire takes the checkout lock for a user, tagging it with the attempt ID.
// Returns false when another checkout for the same user is already in flight.
func (g *Guard) Acquire(ctx context.Context, userID, attemptID string) (bool, error) {
	return g.Client.SetNX(ctx, checkoutKey(userID), attemptID, g.TTL).Result()
}

// Release drops the lock, but only if this attempt still owns it. A lock that
// expired and was re-acquired by a newer attempt is left alone.
func (g *Guard) Release(ctx context.Context, userID, attemptID string) error {
	key := checkoutKey(userID)
	val, err := g.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == attemptID {
		_, err := g.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
