package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "idem:order:create:"
	pendingValue = "__pending__"
)

var ErrInProgress = errors.New("request with this idempotency key is still in progress")

// IdempotencyStore remembers which order a client-supplied idempotency key produced.
type IdempotencyStore interface {
	// Begin claims key. It returns the order number of a finished request, or "" when the caller owns the key.
	Begin(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key, orderNumber string) error
	Abandon(ctx context.Context, key string) error
}

type redisIdempotency struct {
	client   *redis.Client
	ttl      time.Duration
	claimTTL time.Duration
}

// NewIdempotencyStore keeps finished keys for ttl. An unfinished claim lives for claimTTL only, so a request
// that died between Begin and Complete frees its key once the saga could no longer be running.
func NewIdempotencyStore(client *redis.Client, ttl, claimTTL time.Duration) IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if claimTTL <= 0 || claimTTL > ttl {
		claimTTL = min(time.Minute, ttl)
	}

	return &redisIdempotency{client: client, ttl: ttl, claimTTL: claimTTL}
}

func (s *redisIdempotency) Begin(ctx context.Context, key string) (string, error) {
	claimed, err := s.client.SetNX(ctx, keyPrefix+key, pendingValue, s.claimTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if claimed {
		return "", nil
	}

	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls
		return s.Begin(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read idempotency key: %w", err)
	}

	if val == pendingValue {
		return "", ErrInProgress
	}

	return val, nil
}

func (s *redisIdempotency) Complete(ctx context.Context, key, orderNumber string) error {
	if err := s.client.Set(ctx, keyPrefix+key, orderNumber, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}

func (s *redisIdempotency) Abandon(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
