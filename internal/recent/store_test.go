package recent

import (
	"context"
	"testing"
	"time"

	"bookstore-pos/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "NV001"), mr
}

func TestStores(t *testing.T) {
	redisStore, _ := setupRedisStore(t)
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx)
			assert.ErrorIs(t, err, ErrNoRecentOrder)

			confirmed := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
			require.NoError(t, store.Set(ctx, domain.RecentOrder{OrderCode: "HD001", FinalAmount: 153900, ConfirmedAt: confirmed}))

			got, err := store.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, "HD001", got.OrderCode)
			assert.EqualValues(t, 153900, got.FinalAmount)
			assert.True(t, confirmed.Equal(got.ConfirmedAt))

			require.NoError(t, store.Clear(ctx))
			_, err = store.Get(ctx)
			assert.ErrorIs(t, err, ErrNoRecentOrder)
		})
	}
}

func TestRedisStoreKeyAndTTL(t *testing.T) {
	store, mr := setupRedisStore(t)
	require.NoError(t, store.Set(context.Background(), domain.RecentOrder{OrderCode: "HD002", FinalAmount: 1}))

	assert.True(t, mr.Exists("pos:recent-order:NV001"))
	assert.Equal(t, defaultTTL, mr.TTL("pos:recent-order:NV001"))

	mr.FastForward(defaultTTL + time.Second)
	_, err := store.Get(context.Background())
	assert.ErrorIs(t, err, ErrNoRecentOrder)
}

func TestRedisStoreInvalidJSON(t *testing.T) {
	store, mr := setupRedisStore(t)
	require.NoError(t, mr.Set("pos:recent-order:NV001", "not json"))

	_, err := store.Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecentOrder)
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	_, err := store.Get(context.Background())
	require.Error(t, err)
	assert.Error(t, store.Set(context.Background(), domain.RecentOrder{OrderCode: "HD003"}))
}
