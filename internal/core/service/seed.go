package service

import (
	"github.com/shopspring/decimal"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
)

// DefaultCatalog is the demo catalog inserted into an empty store at startup.
func DefaultCatalog() []domain.Product {
	return []domain.Product{
		{Name: "Café Torrado 500g", Price: decimal.RequireFromString("18.90"), Stock: 5, Active: true},
		{Name: "Filtro de Papel nº103", Price: decimal.RequireFromString("7.50"), Stock: 10, Active: true},
		{Name: "Garrafa Térmica 1L", Price: decimal.RequireFromString("79.90"), Stock: 2, Active: true},
		{Name: "Açúcar Mascavo 1kg", Price: decimal.RequireFromString("16.00"), Stock: 0, Active: true},
		{Name: "Caneca Inox 300ml", Price: decimal.RequireFromString("29.00"), Stock: 8, Active: true},
	}
}
