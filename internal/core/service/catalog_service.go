package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
	"github.com/maiandreh/ecommerce-fullstack/internal/port"
)

const (
	DefaultPageSize       = 10
	MaxPageSize           = 100
	DefaultTopSellerLimit = 3
)

// CatalogService serves the read-only product listing.
type CatalogService struct {
	catalog port.CatalogRepository
	cache   port.CatalogCache
	logger  *zap.Logger
}

func NewCatalogService(catalog port.CatalogRepository, cache port.CatalogCache, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{catalog: catalog, cache: cache, logger: logger}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) (domain.Page[domain.Product], error) {
	filter = normalizeFilter(filter)

	// The page is written back only under the generation read before the
	// store query, so an order committed in between orphans it.
	cacheable := false
	var gen int64
	if s.cache != nil {
		cached, g, err := s.cache.GetPage(ctx, filter)
		switch {
		case err != nil:
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		case cached != nil:
			return *cached, nil
		default:
			cacheable, gen = true, g
		}
	}

	page, err := s.catalog.ListActiveProducts(ctx, filter)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}

	if cacheable {
		if err := s.cache.SetPage(ctx, gen, filter, page); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return page, nil
}

func (s *CatalogService) TopSellers(ctx context.Context, limit int) ([]domain.TopSeller, error) {
	if limit <= 0 {
		limit = DefaultTopSellerLimit
	}
	return s.catalog.TopSellers(ctx, min(limit, MaxPageSize))
}

// Seed inserts products only when the catalog is empty.
func (s *CatalogService) Seed(ctx context.Context, products []domain.Product) (bool, error) {
	n, err := s.catalog.CountProducts(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := s.catalog.InsertProducts(ctx, products); err != nil {
		return false, err
	}
	s.logger.Info("catalog seeded", zap.Int("products", len(products)))
	return true, nil
}

func normalizeFilter(f domain.ProductFilter) domain.ProductFilter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Size <= 0 {
		f.Size = DefaultPageSize
	}
	if f.Size > MaxPageSize {
		f.Size = MaxPageSize
	}
	return f
}
