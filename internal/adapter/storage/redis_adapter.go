package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const (
	summaryKey        = "summary:stock"
	idempotencyKeyTTL = 24 * time.Hour
)

// RedisAdapter holds idempotency keys and the cached stock summary. Calls go
// through a circuit breaker so a dead Redis fails fast instead of stalling requests.
type RedisAdapter struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "redis",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	})
	if err != nil {
		return false, err
	}

	return ok.(bool), nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Del(ctx, key).Err()
	})
	return err
}

func (r *RedisAdapter) GetSummary(ctx context.Context) (*domain.StockSummary, bool, error) {
	data, err := r.breaker.Execute(func() (interface{}, error) {
		data, err := r.client.Get(ctx, summaryKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return []byte(nil), nil
		}
		return data, err
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	raw := data.([]byte)
	if raw == nil {
		return nil, false, nil
	}

	var summary domain.StockSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return &summary, true, nil
}

func (r *RedisAdapter) SetSummary(ctx context.Context, summary domain.StockSummary, ttl time.Duration) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, summaryKey, data, ttl).Err()
	})
	return err
}

func (r *RedisAdapter) InvalidateSummary(ctx context.Context) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Del(ctx, summaryKey).Err()
	})
	return err
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
