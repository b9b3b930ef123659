package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBill(t *testing.T) *sales.Bill {
	t.Helper()
	bill, err := sales.NewBill(inventory.ChannelPhysical, sales.PaymentCash, "", "cashier-1")
	require.NoError(t, err)
	plan := inventory.AllocationPlan{
		ProductCode: "RICE",
		Channel:     inventory.ChannelPhysical,
		Requested:   3,
		Allocations: []inventory.Allocation{
			{BatchID: uuid.New(), Quantity: 3},
		},
	}
	require.NoError(t, bill.SetProductLines(sales.PricedProduct{
		Code:      "RICE",
		Name:      "Rice 1kg",
		UnitPrice: decimal.RequireFromString("2.50"),
	}, plan))
	return bill
}

// sessionStoreContract runs the behaviour every sales.SessionStore must have
func sessionStoreContract(t *testing.T, store sales.SessionStore) {
	ctx := context.Background()

	t.Run("get of a missing session is not an error", func(t *testing.T) {
		bill, ok, err := store.Get(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, bill)
	})

	t.Run("put then get returns an equal copy", func(t *testing.T) {
		bill := newTestBill(t)
		require.NoError(t, store.Put(ctx, bill))

		got, ok, err := store.Get(ctx, bill.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, bill.ID, got.ID)
		assert.Equal(t, sales.BillStatusInProgress, got.Status)
		require.Len(t, got.Lines, 1)
		assert.Equal(t, 3, got.Lines[0].Quantity)
		assert.True(t, bill.Subtotal.Equal(got.Subtotal))

		got.Lines[0].Quantity = 99
		again, _, err := store.Get(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, again.Lines[0].Quantity, "stored session must not alias returned bills")
	})

	t.Run("delete removes the session and tolerates repeats", func(t *testing.T) {
		bill := newTestBill(t)
		require.NoError(t, store.Put(ctx, bill))
		require.NoError(t, store.Delete(ctx, bill.ID))
		require.NoError(t, store.Delete(ctx, bill.ID))

		_, ok, err := store.Get(ctx, bill.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list returns live sessions", func(t *testing.T) {
		a, b := newTestBill(t), newTestBill(t)
		require.NoError(t, store.Put(ctx, a))
		require.NoError(t, store.Put(ctx, b))

		bills, err := store.List(ctx)
		require.NoError(t, err)
		ids := make(map[uuid.UUID]bool)
		for _, bill := range bills {
			ids[bill.ID] = true
		}
		assert.True(t, ids[a.ID])
		assert.True(t, ids[b.ID])
	})
}

func TestInMemorySessionStore(t *testing.T) {
	store := NewInMemorySessionStore()
	defer store.Close()

	sessionStoreContract(t, store)
}

func TestInMemorySessionStore_TTL(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	store := NewInMemorySessionStore(WithSessionTTL(10*time.Minute), WithCleanupInterval(time.Hour), withClock(clock))
	defer store.Close()
	ctx := context.Background()

	bill := newTestBill(t)
	require.NoError(t, store.Put(ctx, bill))

	t.Run("put refreshes the idle timer", func(t *testing.T) {
		advance(8 * time.Minute)
		require.NoError(t, store.Put(ctx, bill))
		advance(8 * time.Minute)

		_, ok, err := store.Get(ctx, bill.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("idle session expires", func(t *testing.T) {
		advance(11 * time.Minute)

		_, ok, err := store.Get(ctx, bill.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		bills, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, bills)
	})

	t.Run("cleanup sweeps expired entries", func(t *testing.T) {
		assert.Equal(t, 1, store.Len())
		store.cleanup()
		assert.Equal(t, 0, store.Len())
	})
}

func TestInMemorySessionStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemorySessionStore(WithCleanupInterval(time.Millisecond))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestRedisSessionStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis test in short mode")
	}
	addr := os.Getenv("RETAIL_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	prefix := "retail:test:" + uuid.NewString() + ":"
	store := NewRedisSessionStoreWithClient(client, prefix, time.Minute)
	defer store.Close()

	sessionStoreContract(t, store)

	t.Run("keys carry the idle TTL", func(t *testing.T) {
		bill := newTestBill(t)
		require.NoError(t, store.Put(context.Background(), bill))

		ttl, err := client.TTL(context.Background(), prefix+bill.ID.String()).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 50*time.Second)
		assert.LessOrEqual(t, ttl, time.Minute)
	})
}

func TestSessionStoreFactory(t *testing.T) {
	t.Run("memory store by default", func(t *testing.T) {
		f := NewSessionStoreFactory(config.RedisConfig{}, config.SessionConfig{Store: "memory", IdleTTL: time.Minute})
		store, err := f.CreateStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemorySessionStore{}, store)
	})

	t.Run("falls back to memory when Redis is unreachable", func(t *testing.T) {
		f := NewSessionStoreFactory(
			config.RedisConfig{Host: "127.0.0.1", Port: 1},
			config.SessionConfig{Store: "redis", IdleTTL: time.Minute},
		)
		store, err := f.CreateStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemorySessionStore{}, store)
	})

	t.Run("fails without fallback when Redis is unreachable", func(t *testing.T) {
		f := NewSessionStoreFactory(
			config.RedisConfig{Host: "127.0.0.1", Port: 1},
			config.SessionConfig{Store: "redis"},
			WithInMemoryFallback(false),
		)
		_, err := f.CreateStore()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Redis required")
	})
}
