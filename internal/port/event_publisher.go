package port

import (
	"context"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
)

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order domain.Order) error
}
