package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers logged-out tokens until they would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocations keeps revoked token ids in Redis with a matching TTL.
type RedisRevocations struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisRevocations constructs a RedisRevocations.
func NewRedisRevocations(client redis.Cmdable) *RedisRevocations {
	return &RedisRevocations{client: client, prefix: "stocksaas:revoked:", now: time.Now}
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return errors.New("auth: revoke: empty token id")
	}
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("auth: revoke: %w", err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("auth: revocation lookup: %w", err)
	}
	return n > 0, nil
}

var _ RevocationStore = (*RedisRevocations)(nil)
