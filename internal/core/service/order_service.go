package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
	"github.com/maiandreh/ecommerce-fullstack/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

const defaultBaseBackoff = 20 * time.Millisecond

// PlacedOrder is the outcome of PlaceOrder. Replayed is set when the order
// was created by an earlier request carrying the same idempotency key.
type PlacedOrder struct {
	Order    domain.Order
	Replayed bool
}

type OrderServiceOptions struct {
	Idempotency     port.IdempotencyRepository
	CatalogCache    port.CatalogCache
	Publisher       port.EventPublisher
	ConflictRetries int
	BaseBackoff     time.Duration
	Logger          *zap.Logger
}

type OrderService struct {
	engine      *ReservationEngine
	orders      port.OrderRepository
	idempotency port.IdempotencyRepository
	cache       port.CatalogCache
	publisher   port.EventPublisher
	retries     int
	backoff     time.Duration
	logger      *zap.Logger
}

func NewOrderService(engine *ReservationEngine, orders port.OrderRepository, opts OrderServiceOptions) *OrderService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backoff := opts.BaseBackoff
	if backoff <= 0 {
		backoff = defaultBaseBackoff
	}
	return &OrderService{
		engine:      engine,
		orders:      orders,
		idempotency: opts.Idempotency,
		cache:       opts.CatalogCache,
		publisher:   opts.Publisher,
		retries:     max(opts.ConflictRetries, 0),
		backoff:     backoff,
		logger:      logger,
	}
}

// PlaceOrder reserves stock and creates the order. An empty idempotencyKey
// disables replay protection.
func (s *OrderService) PlaceOrder(ctx context.Context, idempotencyKey string, requests []domain.LineRequest) (PlacedOrder, error) {
	if idempotencyKey != "" && s.idempotency != nil {
		replay, claimed, err := s.claim(ctx, idempotencyKey)
		if err != nil {
			return PlacedOrder{}, err
		}
		if !claimed {
			return replay, nil
		}
	}

	order, err := s.reserveWithRetry(ctx, requests)
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			if relErr := s.idempotency.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKey); relErr != nil {
				s.logger.Warn("failed to release idempotency key", zap.String("key", idempotencyKey), zap.Error(relErr))
			}
		}
		return PlacedOrder{}, err
	}

	s.afterCommit(ctx, idempotencyKey, order)

	return PlacedOrder{Order: order}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

// claim returns claimed=true when this request owns the key. Otherwise it
// returns the order created under the key, or ErrDuplicateRequest while the
// first request is still in flight.
func (s *OrderService) claim(ctx context.Context, key string) (PlacedOrder, bool, error) {
	ok, err := s.idempotency.SetIdempotency(ctx, key)
	if err != nil {
		return PlacedOrder{}, false, fmt.Errorf("idempotency check failed: %w", err)
	}
	if ok {
		return PlacedOrder{}, true, nil
	}

	orderID, err := s.idempotency.LookupIdempotency(ctx, key)
	if err != nil {
		return PlacedOrder{}, false, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if orderID == "" {
		return PlacedOrder{}, false, ErrDuplicateRequest
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return PlacedOrder{}, false, fmt.Errorf("load replayed order %s: %w", orderID, err)
	}
	return PlacedOrder{Order: order, Replayed: true}, false, nil
}

func (s *OrderService) reserveWithRetry(ctx context.Context, requests []domain.LineRequest) (domain.Order, error) {
	for attempt := 0; ; attempt++ {
		order, err := s.engine.ReserveAndPrice(ctx, requests)
		if err == nil || !errors.Is(err, domain.ErrConcurrencyConflict) || attempt >= s.retries {
			return order, err
		}

		s.logger.Info("retrying order after concurrency conflict", zap.Int("attempt", attempt+1), zap.Error(err))
		if err := s.sleep(ctx, attempt); err != nil {
			return domain.Order{}, err
		}
	}
}

func (s *OrderService) sleep(ctx context.Context, attempt int) error {
	exp := s.backoff * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Int64N(int64(exp/2) + 1))

	timer := time.NewTimer(exp + jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// afterCommit runs the side effects that must not hold the transaction open.
// Their failures are logged; the order is already durable.
func (s *OrderService) afterCommit(ctx context.Context, key string, order domain.Order) {
	ctx = context.WithoutCancel(ctx)

	if key != "" && s.idempotency != nil {
		s.completeIdempotency(ctx, key, order.ID)
	}

	if s.cache != nil && len(order.Lines) > 0 {
		if err := s.cache.InvalidateCatalog(ctx); err != nil {
			s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
			s.logger.Error("failed to publish order created", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.Int("lines", len(order.Lines)),
		zap.String("total", domain.FormatMoney(order.Total)),
	)
}

// completeIdempotency binds key to the committed order, with one retry. A key
// left pending makes every replay look like an in-flight duplicate.
func (s *OrderService) completeIdempotency(ctx context.Context, key, orderID string) {
	err := s.idempotency.CompleteIdempotency(ctx, key, orderID)
	if err == nil {
		return
	}
	s.logger.Warn("failed to complete idempotency key, retrying", zap.String("key", key), zap.Error(err))

	if err = s.idempotency.CompleteIdempotency(ctx, key, orderID); err != nil {
		s.logger.Error("idempotency key left pending; replays get duplicate-request until it expires",
			zap.String("key", key),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}
