package handler

import (
	"fmt"
	"time"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
)

type OrderItemRequest struct {
	ProductID *int64 `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

type PlaceOrderRequest struct {
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
	Items          []OrderItemRequest `json:"items"`
}

type OrderItemResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

type OrderResponse struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Total     string              `json:"total"`
	Items     []OrderItemResponse `json:"items"`
}

type ProductResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Stock  int    `json:"stock"`
	Active bool   `json:"active"`
}

type ProductPageResponse struct {
	Content       []ProductResponse `json:"content"`
	Page          int               `json:"page"`
	Size          int               `json:"size"`
	TotalElements int               `json:"total_elements"`
	TotalPages    int               `json:"total_pages"`
}

type TopSellerResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	TotalSold int    `json:"total_sold"`
}

type StockErrorResponse struct {
	ProductID int64 `json:"product_id"`
	Available int   `json:"available"`
}

type ErrorResponse struct {
	Error       string               `json:"error"`
	Message     string               `json:"message,omitempty"`
	Details     []string             `json:"details,omitempty"`
	StockErrors []StockErrorResponse `json:"stock_errors,omitempty"`
}

// toLineRequests validates the request shape and converts it for the core.
func toLineRequests(items []OrderItemRequest) ([]domain.LineRequest, error) {
	if len(items) == 0 {
		return nil, domain.NewValidationError("items: must not be empty")
	}

	var details []string
	lines := make([]domain.LineRequest, 0, len(items))
	for i, it := range items {
		if it.ProductID == nil {
			details = append(details, fmt.Sprintf("items[%d].product_id: is required", i))
		}
		if it.Quantity == nil {
			details = append(details, fmt.Sprintf("items[%d].quantity: is required", i))
		} else if *it.Quantity < 1 {
			details = append(details, fmt.Sprintf("items[%d].quantity: must be greater than zero", i))
		}
		if len(details) == 0 {
			lines = append(lines, domain.LineRequest{ProductID: *it.ProductID, Quantity: *it.Quantity})
		}
	}
	if len(details) > 0 {
		return nil, domain.NewValidationError(details...)
	}
	return lines, nil
}

func toOrderResponse(o domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = OrderItemResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   domain.FormatMoney(l.UnitPrice),
			LineTotal:   domain.FormatMoney(l.LineTotal),
		}
	}
	return OrderResponse{
		ID:        o.ID,
		CreatedAt: o.CreatedAt,
		Total:     domain.FormatMoney(o.Total),
		Items:     items,
	}
}

func toProductPageResponse(p domain.Page[domain.Product]) ProductPageResponse {
	content := make([]ProductResponse, len(p.Content))
	for i, prod := range p.Content {
		content[i] = ProductResponse{
			ID:     prod.ID,
			Name:   prod.Name,
			Price:  domain.FormatMoney(prod.Price),
			Stock:  prod.Stock,
			Active: prod.Active,
		}
	}
	return ProductPageResponse{
		Content:       content,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
	}
}

func toTopSellerResponses(sellers []domain.TopSeller) []TopSellerResponse {
	out := make([]TopSellerResponse, len(sellers))
	for i, s := range sellers {
		out[i] = TopSellerResponse{ProductID: s.ProductID, Name: s.Name, TotalSold: s.TotalSold}
	}
	return out
}
