package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineRequest is one requested (product, quantity) pair.
type LineRequest struct {
	ProductID int64
	Quantity  int
}

type Order struct {
	ID        string
	CreatedAt time.Time
	Total     decimal.Decimal
	Lines     []OrderLine
}

// OrderLine is a priced value record. It references the product by id only.
type OrderLine struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// StockError reports the quantity available when a line was rejected.
type StockError struct {
	ProductID int64
	Available int
}
