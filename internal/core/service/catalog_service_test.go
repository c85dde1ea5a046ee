package service

import (
	"context"
	"errors"
	"testing"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
)

func TestListProducts_NormalizesFilter(t *testing.T) {
	catalog := &mockCatalog{}
	svc := NewCatalogService(catalog, nil, nil)

	page, err := svc.ListProducts(context.Background(), domain.ProductFilter{Search: "  cafe ", Page: -2, Size: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Page != 0 || page.Size != DefaultPageSize {
		t.Errorf("expected page 0 size %d, got %d/%d", DefaultPageSize, page.Page, page.Size)
	}

	page, _ = svc.ListProducts(context.Background(), domain.ProductFilter{Size: 1000})
	if page.Size != MaxPageSize {
		t.Errorf("expected size capped at %d, got %d", MaxPageSize, page.Size)
	}
}

func TestListProducts_UsesCache(t *testing.T) {
	catalog := &mockCatalog{products: DefaultCatalog()}
	cache := newMockCache()
	svc := NewCatalogService(catalog, cache, nil)
	filter := domain.ProductFilter{Page: 0, Size: 10}

	for i := 0; i < 3; i++ {
		page, err := svc.ListProducts(context.Background(), filter)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.TotalElements != 5 {
			t.Errorf("expected 5 products, got %d", page.TotalElements)
		}
	}
	if catalog.lists != 1 {
		t.Errorf("expected 1 store read, got %d", catalog.lists)
	}

	cache.InvalidateCatalog(context.Background())
	svc.ListProducts(context.Background(), filter)
	if catalog.lists != 2 {
		t.Errorf("expected store read after invalidation, got %d", catalog.lists)
	}
}

func TestListProducts_InvalidationDuringReadIsNotCached(t *testing.T) {
	catalog := &mockCatalog{products: []domain.Product{
		{ID: 1, Name: "A", Price: price("18.90"), Stock: 5, Active: true},
		{ID: 2, Name: "B", Price: price("79.90"), Stock: 2, Active: true},
	}}
	cache := newMockCache()
	svc := NewCatalogService(catalog, cache, nil)
	filter := domain.ProductFilter{Page: 0, Size: 10}

	// An order commits while the listing query is in flight.
	catalog.duringList = func() {
		catalog.duringList = nil
		catalog.setStock(1, 2)
		cache.InvalidateCatalog(context.Background())
	}

	stale, err := svc.ListProducts(context.Background(), filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stale.Content[0].Stock != 5 {
		t.Fatalf("expected the in-flight listing to see stock 5, got %d", stale.Content[0].Stock)
	}

	page, err := svc.ListProducts(context.Background(), filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.lists != 2 {
		t.Errorf("expected the store to be read again, got %d reads", catalog.lists)
	}
	if page.Content[0].Stock != 2 {
		t.Errorf("expected stock 2 after invalidation, got %d", page.Content[0].Stock)
	}
}

func TestListProducts_CacheFailureFallsBack(t *testing.T) {
	catalog := &mockCatalog{products: DefaultCatalog()}
	cache := newMockCache()
	cache.err = errors.New("redis down")
	svc := NewCatalogService(catalog, cache, nil)

	page, err := svc.ListProducts(context.Background(), domain.ProductFilter{Size: 10})
	if err != nil {
		t.Fatalf("expected fallback to store, got: %v", err)
	}
	if len(page.Content) != 5 {
		t.Errorf("expected 5 products, got %d", len(page.Content))
	}
}

func TestTopSellers_DefaultLimit(t *testing.T) {
	catalog := &mockCatalog{}
	svc := NewCatalogService(catalog, nil, nil)

	svc.TopSellers(context.Background(), 0)
	if catalog.topLimit != DefaultTopSellerLimit {
		t.Errorf("expected limit %d, got %d", DefaultTopSellerLimit, catalog.topLimit)
	}
}

func TestSeed_OnlyWhenEmpty(t *testing.T) {
	catalog := &mockCatalog{}
	svc := NewCatalogService(catalog, nil, nil)

	seeded, err := svc.Seed(context.Background(), DefaultCatalog())
	if err != nil || !seeded {
		t.Fatalf("expected seed, got %v/%v", seeded, err)
	}

	seeded, err = svc.Seed(context.Background(), DefaultCatalog())
	if err != nil || seeded {
		t.Fatalf("expected no second seed, got %v/%v", seeded, err)
	}
	if len(catalog.products) != 5 {
		t.Errorf("expected 5 products, got %d", len(catalog.products))
	}
}
