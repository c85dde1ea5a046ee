package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
	"github.com/maiandreh/ecommerce-fullstack/internal/core/service"
)

type GRPCHandler struct {
	orderService   *service.OrderService
	catalogService *service.CatalogService
	logger         *zap.Logger
}

func NewGRPCHandler(orderService *service.OrderService, catalogService *service.CatalogService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{
		orderService:   orderService,
		catalogService: catalogService,
		logger:         logger,
	}
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderReply, error) {
	lines, err := toLineRequests(req.Items)
	if err != nil {
		return nil, h.fail("PlaceOrder", err)
	}

	placed, err := h.orderService.PlaceOrder(ctx, req.IdempotencyKey, lines)
	if err != nil {
		return nil, h.fail("PlaceOrder", err)
	}

	return &PlaceOrderReply{
		Order:    toOrderResponse(placed.Order),
		Replayed: placed.Replayed,
	}, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	order, err := h.orderService.GetOrder(ctx, req.ID)
	if err != nil {
		return nil, h.fail("GetOrder", err)
	}

	resp := toOrderResponse(order)
	return &resp, nil
}

func (h *GRPCHandler) ListProducts(ctx context.Context, req *ListProductsRequest) (*ProductPageResponse, error) {
	page, err := h.catalogService.ListProducts(ctx, domain.ProductFilter{
		Search: req.Search,
		Page:   req.Page,
		Size:   req.Size,
	})
	if err != nil {
		return nil, h.fail("ListProducts", err)
	}

	resp := toProductPageResponse(page)
	return &resp, nil
}

func (h *GRPCHandler) fail(method string, err error) error {
	gerr := grpcError(err)
	if status.Code(gerr) == codes.Internal {
		h.logger.Error("grpc call failed", zap.String("method", method), zap.Error(err))
	}
	return gerr
}
