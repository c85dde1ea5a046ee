package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
	idempotencyPending   = "pending"
	catalogGenKey        = "catalog:gen"
	catalogKeyPrefix     = "catalog:"
)

var releaseIdempotencyScript = redis.NewScript(`
local key = KEYS[1]
local pending = ARGV[1]

if redis.call('GET', key) == pending then
	return redis.call('DEL', key)
end

return 0
`)

type RedisAdapter struct {
	client   *redis.Client
	cacheTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, cacheTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, cacheTTL: cacheTTL}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, idempotencyPending, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) CompleteIdempotency(ctx context.Context, key, orderID string) error {
	return r.client.Set(ctx, idempotencyKeyPrefix+key, orderID, redis.KeepTTL).Err()
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return releaseIdempotencyScript.Run(ctx, r.client, []string{idempotencyKeyPrefix + key}, idempotencyPending).Err()
}

func (r *RedisAdapter) LookupIdempotency(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) || v == idempotencyPending {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *RedisAdapter) GetPage(ctx context.Context, filter domain.ProductFilter) (*domain.Page[domain.Product], int64, error) {
	gen, err := r.client.Get(ctx, catalogGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}

	data, err := r.client.Get(ctx, pageKey(gen, filter)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var page domain.Page[domain.Product]
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, 0, fmt.Errorf("decode cached page: %w", err)
	}
	return &page, gen, nil
}

// SetPage writes under the generation the caller read before querying the
// store. A page loaded across an invalidation lands under the old generation
// and is never served.
func (r *RedisAdapter) SetPage(ctx context.Context, gen int64, filter domain.ProductFilter, page domain.Page[domain.Product]) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	return r.client.Set(ctx, pageKey(gen, filter), data, r.cacheTTL).Err()
}

// InvalidateCatalog bumps the generation counter, orphaning every cached page
// until its TTL expires.
func (r *RedisAdapter) InvalidateCatalog(ctx context.Context) error {
	return r.client.Incr(ctx, catalogGenKey).Err()
}

func pageKey(gen int64, f domain.ProductFilter) string {
	return fmt.Sprintf("%s%d:%d:%d:%s", catalogKeyPrefix, gen, f.Page, f.Size, f.Search)
}
