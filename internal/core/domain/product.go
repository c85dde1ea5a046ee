package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64
	Name      string
	Price     decimal.Decimal
	Stock     int
	Active    bool
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductFilter selects a page of active products. Page is zero-based.
type ProductFilter struct {
	Search string
	Page   int
	Size   int
}

type Page[T any] struct {
	Content       []T
	Page          int
	Size          int
	TotalElements int
	TotalPages    int
}

// NewPage derives TotalPages from total and the filter's page size.
func NewPage[T any](content []T, f ProductFilter, total int) Page[T] {
	pages := 0
	if f.Size > 0 {
		pages = (total + f.Size - 1) / f.Size
	}
	if content == nil {
		content = []T{}
	}
	return Page[T]{
		Content:       content,
		Page:          f.Page,
		Size:          f.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}

type TopSeller struct {
	ProductID int64
	Name      string
	TotalSold int
}
