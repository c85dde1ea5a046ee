package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
	"github.com/maiandreh/ecommerce-fullstack/internal/port"
)

// Mock TxManager. One transaction at a time; writes go to a copy that is
// swapped in on commit.
type mockStore struct {
	mu        sync.Mutex
	products  map[int64]domain.Product
	orders    map[string]domain.Order
	txCount   int
	lockOrder []int64

	// conflicts makes the next n SaveProduct calls fail with a version conflict.
	conflicts int
	saveErr   error
}

func newMockStore(products ...domain.Product) *mockStore {
	s := &mockStore{
		products: make(map[int64]domain.Product),
		orders:   make(map[string]domain.Order),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *mockStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	s.lockOrder = nil
	tx := &mockTx{store: s, products: maps.Clone(s.products), orders: map[string]domain.Order{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.products = tx.products
	maps.Copy(s.orders, tx.orders)
	return nil
}

func (s *mockStore) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *mockStore) stock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *mockStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type mockTx struct {
	store    *mockStore
	products map[int64]domain.Product
	orders   map[string]domain.Order
}

func (t *mockTx) GetProductForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	t.store.lockOrder = append(t.store.lockOrder, id)
	p, ok := t.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *mockTx) SaveProduct(ctx context.Context, p domain.Product) error {
	if t.store.conflicts > 0 {
		t.store.conflicts--
		return fmt.Errorf("product %d: %w", p.ID, domain.ErrConcurrencyConflict)
	}
	if t.store.saveErr != nil {
		return t.store.saveErr
	}
	if t.products[p.ID].Version != p.Version {
		return domain.ErrConcurrencyConflict
	}
	p.Version++
	t.products[p.ID] = p
	return nil
}

func (t *mockTx) SaveOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	o.ID = uuid.NewString()
	t.orders[o.ID] = o
	return o, nil
}

// Mock IdempotencyRepository
type mockIdempotency struct {
	mu        sync.Mutex
	keys      map[string]string
	completed []string
	released  []string

	// completeFailures makes the next n CompleteIdempotency calls fail.
	completeFailures int
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: make(map[string]string)}
}

func (m *mockIdempotency) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ""
	return true, nil
}

func (m *mockIdempotency) CompleteIdempotency(ctx context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeFailures > 0 {
		m.completeFailures--
		return errors.New("redis timeout")
	}
	m.keys[key] = orderID
	m.completed = append(m.completed, key)
	return nil
}

func (m *mockIdempotency) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] == "" {
		delete(m.keys, key)
	}
	m.released = append(m.released, key)
	return nil
}

func (m *mockIdempotency) LookupIdempotency(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

// Mock CatalogCache. Pages are keyed by generation like the Redis adapter.
type mockCache struct {
	mu          sync.Mutex
	gen         int64
	pages       map[cacheKey]domain.Page[domain.Product]
	invalidated int
	err         error
}

type cacheKey struct {
	gen    int64
	filter domain.ProductFilter
}

func newMockCache() *mockCache {
	return &mockCache{pages: make(map[cacheKey]domain.Page[domain.Product])}
}

func (m *mockCache) GetPage(ctx context.Context, f domain.ProductFilter) (*domain.Page[domain.Product], int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	p, ok := m.pages[cacheKey{m.gen, f}]
	if !ok {
		return nil, m.gen, nil
	}
	return &p, m.gen, nil
}

func (m *mockCache) SetPage(ctx context.Context, gen int64, f domain.ProductFilter, page domain.Page[domain.Product]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.pages[cacheKey{gen, f}] = page
	return nil
}

func (m *mockCache) InvalidateCatalog(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
	m.gen++
	return m.err
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	orders []domain.Order
	err    error
}

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, o)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Mock CatalogRepository
type mockCatalog struct {
	mu       sync.Mutex
	products []domain.Product
	lists    int
	topLimit int

	// duringList runs after the listing is read, before it is returned.
	duringList func()
}

func (m *mockCatalog) ListActiveProducts(ctx context.Context, f domain.ProductFilter) (domain.Page[domain.Product], error) {
	m.mu.Lock()
	m.lists++
	page := domain.NewPage(slices.Clone(m.products), f, len(m.products))
	hook := m.duringList
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return page, nil
}

func (m *mockCatalog) setStock(id int64, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == id {
			m.products[i].Stock = stock
		}
	}
}

func (m *mockCatalog) TopSellers(ctx context.Context, limit int) ([]domain.TopSeller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topLimit = limit
	return nil, nil
}

func (m *mockCatalog) CountProducts(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products), nil
}

func (m *mockCatalog) InsertProducts(ctx context.Context, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, products...)
	return nil
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// exampleStore holds product A (id 1) and B (id 2).
func exampleStore() *mockStore {
	return newMockStore(
		domain.Product{ID: 1, Name: "A", Price: price("18.90"), Stock: 5, Active: true},
		domain.Product{ID: 2, Name: "B", Price: price("79.90"), Stock: 2, Active: true},
	)
}
