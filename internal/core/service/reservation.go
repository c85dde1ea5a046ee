package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
	"github.com/maiandreh/ecommerce-fullstack/internal/port"
)

const tracerName = "github.com/maiandreh/ecommerce-fullstack/internal/core/service"

// ReservationEngine validates, decrements and prices an order as one
// transaction. It never retries; ErrConcurrencyConflict goes to the caller.
type ReservationEngine struct {
	store  port.TxManager
	tracer trace.Tracer
}

func NewReservationEngine(store port.TxManager) *ReservationEngine {
	return &ReservationEngine{
		store:  store,
		tracer: otel.Tracer(tracerName),
	}
}

func (e *ReservationEngine) ReserveAndPrice(ctx context.Context, requests []domain.LineRequest) (domain.Order, error) {
	ctx, span := e.tracer.Start(ctx, "reserve_and_price")
	defer span.End()
	span.SetAttributes(attribute.Int("order.lines", len(requests)))

	order, err := e.reserveAndPrice(ctx, requests)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.total", domain.FormatMoney(order.Total)),
	)
	span.SetStatus(codes.Ok, "stock reserved")
	return order, nil
}

func (e *ReservationEngine) reserveAndPrice(ctx context.Context, requests []domain.LineRequest) (domain.Order, error) {
	if err := validateRequests(requests); err != nil {
		return domain.Order{}, err
	}

	var saved domain.Order
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		products, err := lockProducts(ctx, tx, requests)
		if err != nil {
			return err
		}

		remaining := make(map[int64]int, len(products))
		for id, p := range products {
			if p != nil {
				remaining[id] = p.Stock
			}
		}

		var shortfalls []domain.StockError
		for _, r := range requests {
			if products[r.ProductID] == nil {
				return &domain.ProductNotFoundError{ProductID: r.ProductID}
			}
			available := remaining[r.ProductID]
			if r.Quantity > available {
				shortfalls = append(shortfalls, domain.StockError{ProductID: r.ProductID, Available: available})
				continue
			}
			remaining[r.ProductID] = available - r.Quantity
		}
		if len(shortfalls) > 0 {
			return &domain.InsufficientStockError{Shortfalls: shortfalls}
		}

		order := priceOrder(products, requests)

		for _, id := range sortedIDs(requests) {
			p := *products[id]
			p.Stock = remaining[id]
			if p.Stock < 0 {
				return fmt.Errorf("stock for product %d would be negative", id)
			}
			if err := tx.SaveProduct(ctx, p); err != nil {
				return fmt.Errorf("save product %d: %w", id, err)
			}
		}

		saved, err = tx.SaveOrder(ctx, order)
		if err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	return saved, nil
}

func validateRequests(requests []domain.LineRequest) error {
	var details []string
	for i, r := range requests {
		if r.Quantity < 1 {
			details = append(details, fmt.Sprintf("items[%d].quantity: must be greater than zero", i))
		}
	}
	if len(details) > 0 {
		return domain.NewValidationError(details...)
	}
	return nil
}

// lockProducts locks every distinct product in ascending id order so that
// overlapping orders always acquire row locks in the same sequence.
func lockProducts(ctx context.Context, tx port.Tx, requests []domain.LineRequest) (map[int64]*domain.Product, error) {
	products := make(map[int64]*domain.Product, len(requests))
	for _, id := range sortedIDs(requests) {
		p, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock product %d: %w", id, err)
		}
		products[id] = p
	}
	return products, nil
}

func priceOrder(products map[int64]*domain.Product, requests []domain.LineRequest) domain.Order {
	lines := make([]domain.OrderLine, 0, len(requests))
	totals := make([]decimal.Decimal, 0, len(requests))
	for _, r := range requests {
		p := products[r.ProductID]
		line := domain.OrderLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    r.Quantity,
			UnitPrice:   p.Price,
			LineTotal:   domain.LineTotal(p.Price, r.Quantity),
		}
		lines = append(lines, line)
		totals = append(totals, line.LineTotal)
	}

	return domain.Order{
		Total: domain.SumMoney(totals...),
		Lines: lines,
	}
}

func sortedIDs(requests []domain.LineRequest) []int64 {
	ids := make([]int64, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
