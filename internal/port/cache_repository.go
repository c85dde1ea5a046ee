package port

import (
	"context"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
)

type IdempotencyRepository interface {
	// SetIdempotency claims key as pending, returns false if it already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// CompleteIdempotency binds a claimed key to the created order
	CompleteIdempotency(ctx context.Context, key, orderID string) error

	// ReleaseIdempotency frees a key that is still pending
	ReleaseIdempotency(ctx context.Context, key string) error

	// LookupIdempotency returns the order bound to key, "" while pending
	LookupIdempotency(ctx context.Context, key string) (string, error)
}

type CatalogCache interface {
	// GetPage returns the cached page (nil on a miss) and the cache
	// generation the lookup ran against
	GetPage(ctx context.Context, filter domain.ProductFilter) (*domain.Page[domain.Product], int64, error)

	// SetPage stores page under generation gen, as returned by GetPage
	SetPage(ctx context.Context, gen int64, filter domain.ProductFilter, page domain.Page[domain.Product]) error

	// InvalidateCatalog drops every cached page
	InvalidateCatalog(ctx context.Context) error
}
