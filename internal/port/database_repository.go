package port

import (
	"context"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
)

// TxManager runs fn inside one storage transaction. The transaction commits
// only when fn returns nil and rolls back on any error or panic.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the catalog and order store as seen from inside a transaction.
type Tx interface {
	// GetProductForUpdate locks the product row until the transaction ends.
	// It returns nil, nil when the product does not exist.
	GetProductForUpdate(ctx context.Context, id int64) (*domain.Product, error)

	// SaveProduct writes stock with a version check and increments the version.
	// A version mismatch yields domain.ErrConcurrencyConflict.
	SaveProduct(ctx context.Context, product domain.Product) error

	// SaveOrder persists the order and its lines, assigning ID and CreatedAt.
	SaveOrder(ctx context.Context, order domain.Order) (domain.Order, error)
}

type CatalogRepository interface {
	ListActiveProducts(ctx context.Context, filter domain.ProductFilter) (domain.Page[domain.Product], error)

	TopSellers(ctx context.Context, limit int) ([]domain.TopSeller, error)

	// CountProducts is used by the startup seeder.
	CountProducts(ctx context.Context) (int, error)

	InsertProducts(ctx context.Context, products []domain.Product) error
}

type OrderRepository interface {
	// GetOrder returns domain.ErrOrderNotFound when id is unknown.
	GetOrder(ctx context.Context, id string) (domain.Order, error)
}
