package recent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookstore-pos/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// RedisStore shares the summary across every screen of one terminal,
// keyed by employee code.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, employeeCode string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    storeKey(employeeCode),
		ttl:    defaultTTL,
	}
}

func (r *RedisStore) Get(ctx context.Context) (*domain.RecentOrder, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRecentOrder
	}
	if err != nil {
		return nil, fmt.Errorf("redis get recent order: %w", err)
	}
	var order domain.RecentOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("unmarshal recent order: %w", err)
	}
	return &order, nil
}

func (r *RedisStore) Set(ctx context.Context, order domain.RecentOrder) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal recent order: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set recent order: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis delete recent order: %w", err)
	}
	return nil
}

func storeKey(employeeCode string) string {
	return fmt.Sprintf("pos:recent-order:%s", employeeCode)
}
