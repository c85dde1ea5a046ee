package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
	"github.com/maiandreh/ecommerce-fullstack/internal/port"
)

// MemoryAdapter is an in-process catalog and order store. Every product has
// its own row lock, held from GetProductForUpdate until the transaction ends.
// Writes are buffered per transaction and applied only on commit.
type MemoryAdapter struct {
	mu       sync.RWMutex
	products map[int64]*memoryRow
	orders   map[string]domain.Order
	sold     map[int64]int
	nextID   int64
	now      func() time.Time
}

type memoryRow struct {
	lock    chan struct{}
	product domain.Product
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products: make(map[int64]*memoryRow),
		orders:   make(map[string]domain.Order),
		sold:     make(map[int64]int),
		now:      time.Now,
	}
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	tx := &memoryTx{
		store:  m,
		locked: make(map[int64]*memoryRow),
		writes: make(map[int64]domain.Product),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

type memoryTx struct {
	store  *MemoryAdapter
	locked map[int64]*memoryRow
	writes map[int64]domain.Product
	order  *domain.Order
}

func (t *memoryTx) GetProductForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	if row, ok := t.locked[id]; ok {
		p := t.current(id, row)
		return &p, nil
	}

	t.store.mu.RLock()
	row, ok := t.store.products[id]
	t.store.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	select {
	case row.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t.locked[id] = row

	p := t.current(id, row)
	return &p, nil
}

func (t *memoryTx) current(id int64, row *memoryRow) domain.Product {
	if p, ok := t.writes[id]; ok {
		return p
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return row.product
}

func (t *memoryTx) SaveProduct(ctx context.Context, p domain.Product) error {
	row, ok := t.locked[p.ID]
	if !ok {
		return fmt.Errorf("product %d saved without lock", p.ID)
	}
	if p.Stock < 0 {
		return fmt.Errorf("product %d: negative stock %d", p.ID, p.Stock)
	}

	cur := t.current(p.ID, row)
	if cur.Version != p.Version {
		return ErrOptimisticLock
	}

	p.Version++
	p.UpdatedAt = t.store.now().UTC()
	t.writes[p.ID] = p
	return nil
}

func (t *memoryTx) SaveOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	order.ID = uuid.NewString()
	order.CreatedAt = t.store.now().UTC()
	order.Lines = slices.Clone(order.Lines)
	t.order = &order
	return order, nil
}

func (t *memoryTx) commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for id, p := range t.writes {
		t.store.products[id].product = p
	}
	if t.order != nil {
		t.store.orders[t.order.ID] = *t.order
		for _, l := range t.order.Lines {
			t.store.sold[l.ProductID] += l.Quantity
		}
	}
	return nil
}

func (t *memoryTx) release() {
	for _, row := range t.locked {
		<-row.lock
	}
	t.locked = nil
}

func (m *MemoryAdapter) ListActiveProducts(ctx context.Context, filter domain.ProductFilter) (domain.Page[domain.Product], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []domain.Product
	for _, row := range m.products {
		p := row.product
		if p.Active && strings.Contains(strings.ToLower(p.Name), search) {
			matched = append(matched, p)
		}
	}
	slices.SortFunc(matched, func(a, b domain.Product) int { return cmp.Compare(a.ID, b.ID) })

	start := min(filter.Page*filter.Size, len(matched))
	end := min(start+filter.Size, len(matched))
	return domain.NewPage(slices.Clone(matched[start:end]), filter, len(matched)), nil
}

func (m *MemoryAdapter) TopSellers(ctx context.Context, limit int) ([]domain.TopSeller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sellers := make([]domain.TopSeller, 0, len(m.sold))
	for id, n := range m.sold {
		sellers = append(sellers, domain.TopSeller{ProductID: id, Name: m.products[id].product.Name, TotalSold: n})
	}
	slices.SortFunc(sellers, func(a, b domain.TopSeller) int {
		if a.TotalSold != b.TotalSold {
			return cmp.Compare(b.TotalSold, a.TotalSold)
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return sellers[:min(limit, len(sellers))], nil
}

func (m *MemoryAdapter) CountProducts(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.products), nil
}

func (m *MemoryAdapter) InsertProducts(ctx context.Context, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	for _, p := range products {
		m.nextID++
		p.ID = m.nextID
		p.Version = 0
		p.CreatedAt = now
		p.UpdatedAt = now
		m.products[p.ID] = &memoryRow{lock: make(chan struct{}, 1), product: p}
	}
	return nil
}

func (m *MemoryAdapter) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Lines = slices.Clone(order.Lines)
	return order, nil
}

// Product returns a snapshot of a product, for inspection and tests.
func (m *MemoryAdapter) Product(id int64) (domain.Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.products[id]
	if !ok {
		return domain.Product{}, false
	}
	return row.product, true
}

// OrderCount reports how many orders have been committed.
func (m *MemoryAdapter) OrderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}
