package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/goleak"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestGetRedisClient_UnreachableLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")

	t.Run("unreachable", func(t *testing.T) {
		getRedisClient(t)
		t.Error("expected the helper to skip")
	})
}

func TestSetIdempotency_Success(t *testing.T) {
	client := getRedisClient(t)

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	// Setup
	client.Del(ctx, "idempotency:test-idem-key")

	// First call should succeed
	ok, err := adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first call to succeed")
	}

	// Second call should fail (key exists)
	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second call to fail")
	}

	// Still pending, so no order yet
	orderID, err := adapter.LookupIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderID != "" {
		t.Errorf("expected empty order id while pending, got %q", orderID)
	}
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	// Setup
	client.Del(ctx, "idempotency:concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one should succeed
	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}

func TestCompleteIdempotency(t *testing.T) {
	client := getRedisClient(t)

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)
	client.Del(ctx, "idempotency:complete-key")

	adapter.SetIdempotency(ctx, "complete-key")
	if err := adapter.CompleteIdempotency(ctx, "complete-key", "order-123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	orderID, err := adapter.LookupIdempotency(ctx, "complete-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderID != "order-123" {
		t.Errorf("expected order-123, got %q", orderID)
	}

	// A completed key is never released
	adapter.ReleaseIdempotency(ctx, "complete-key")
	if n, _ := client.Exists(ctx, "idempotency:complete-key").Result(); n != 1 {
		t.Error("completed key must survive release")
	}

	ttl, _ := client.TTL(ctx, "idempotency:complete-key").Result()
	if ttl <= 0 {
		t.Errorf("expected ttl to be kept, got %v", ttl)
	}
}

func TestReleaseIdempotency_Pending(t *testing.T) {
	client := getRedisClient(t)

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)
	client.Del(ctx, "idempotency:release-key")

	adapter.SetIdempotency(ctx, "release-key")
	if err := adapter.ReleaseIdempotency(ctx, "release-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, _ := adapter.SetIdempotency(ctx, "release-key")
	if !ok {
		t.Error("expected released key to be claimable again")
	}
}

func TestCatalogCache_Invalidate(t *testing.T) {
	client := getRedisClient(t)

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)
	filter := domain.ProductFilter{Search: "cafe", Page: 0, Size: 10}

	page := domain.NewPage([]domain.Product{{ID: 1, Name: "Café Torrado 500g", Price: decimal.RequireFromString("18.90"), Stock: 5, Active: true}}, filter, 1)
	_, gen, err := adapter.GetPage(ctx, filter)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if err := adapter.SetPage(ctx, gen, filter, page); err != nil {
		t.Fatalf("SetPage failed: %v", err)
	}

	cached, _, err := adapter.GetPage(ctx, filter)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if cached == nil || len(cached.Content) != 1 {
		t.Fatalf("expected cached page, got %+v", cached)
	}
	if !cached.Content[0].Price.Equal(decimal.RequireFromString("18.90")) {
		t.Errorf("expected price 18.90, got %s", cached.Content[0].Price)
	}

	if err := adapter.InvalidateCatalog(ctx); err != nil {
		t.Fatalf("InvalidateCatalog failed: %v", err)
	}

	cached, _, err = adapter.GetPage(ctx, filter)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if cached != nil {
		t.Error("expected cache miss after invalidation")
	}
}

func TestCatalogCache_PageReadBeforeInvalidationIsOrphaned(t *testing.T) {
	client := getRedisClient(t)

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)
	filter := domain.ProductFilter{Search: "orphan", Page: 0, Size: 10}

	_, gen, err := adapter.GetPage(ctx, filter)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}

	// An order commits between the cache miss and the write-back.
	if err := adapter.InvalidateCatalog(ctx); err != nil {
		t.Fatalf("InvalidateCatalog failed: %v", err)
	}

	stale := domain.NewPage([]domain.Product{{ID: 1, Name: "orphan", Price: decimal.RequireFromString("1.00"), Stock: 5, Active: true}}, filter, 1)
	if err := adapter.SetPage(ctx, gen, filter, stale); err != nil {
		t.Fatalf("SetPage failed: %v", err)
	}

	cached, newGen, err := adapter.GetPage(ctx, filter)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if newGen != gen+1 {
		t.Errorf("expected generation %d, got %d", gen+1, newGen)
	}
	if cached != nil {
		t.Errorf("expected the stale page to stay orphaned, got %+v", cached)
	}
}
