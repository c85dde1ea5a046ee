package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
	"github.com/maiandreh/ecommerce-fullstack/internal/port"
)

var ErrOptimisticLock = fmt.Errorf("optimistic lock conflict: %w", domain.ErrConcurrencyConflict)

const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

// OpenMySQL opens a pool for dsn. Timestamps are always decoded into
// time.Time, whether or not the DSN asks for parseTime.
func OpenMySQL(dsn string) (*sql.DB, error) {
	cfg, err := mysqlConfig(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func mysqlConfig(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg, nil
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, now: time.Now}
}

// WithinTx runs fn in a serializable transaction. Deadlocks and lock wait
// timeouts are reported as domain.ErrConcurrencyConflict.
func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", translateMySQLError(err))
	}
	defer tx.Rollback()

	if err := fn(ctx, &mysqlTx{tx: tx, now: m.now}); err != nil {
		return translateMySQLError(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", translateMySQLError(err))
	}
	return nil
}

type mysqlTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *mysqlTx) GetProductForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, price, stock, active, version, created_at, updated_at
		FROM products WHERE id = ? FOR UPDATE`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Active, &p.Version, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (t *mysqlTx) SaveProduct(ctx context.Context, p domain.Product) error {
	if p.Stock < 0 {
		return fmt.Errorf("product %d: negative stock %d", p.ID, p.Stock)
	}

	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		p.Stock, t.now().UTC(), p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (t *mysqlTx) SaveOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	order.ID = uuid.NewString()
	order.CreatedAt = t.now().UTC().Truncate(time.Microsecond)

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, total, created_at) VALUES (?, ?, ?)`,
		order.ID, order.Total, order.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i, l := range order.Lines {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, product_name, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			order.ID, i, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice, l.LineTotal,
		)
		if err != nil {
			return domain.Order{}, fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	return order, nil
}

func (m *MySQLAdapter) ListActiveProducts(ctx context.Context, filter domain.ProductFilter) (domain.Page[domain.Product], error) {
	pattern := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"

	var total int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products
		WHERE active = TRUE AND LOWER(name) LIKE ?`, pattern,
	).Scan(&total)
	if err != nil {
		return domain.Page[domain.Product]{}, fmt.Errorf("count products: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, price, stock, active, version, created_at, updated_at
		FROM products
		WHERE active = TRUE AND LOWER(name) LIKE ?
		ORDER BY id
		LIMIT ? OFFSET ?`,
		pattern, filter.Size, filter.Page*filter.Size,
	)
	if err != nil {
		return domain.Page[domain.Product]{}, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Active, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return domain.Page[domain.Product]{}, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Product]{}, fmt.Errorf("iterate products: %w", err)
	}

	return domain.NewPage(products, filter, total), nil
}

func (m *MySQLAdapter) TopSellers(ctx context.Context, limit int) ([]domain.TopSeller, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT p.id, p.name, SUM(oi.quantity) AS total_sold
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		GROUP BY p.id, p.name
		ORDER BY total_sold DESC, p.id
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query top sellers: %w", err)
	}
	defer rows.Close()

	var sellers []domain.TopSeller
	for rows.Next() {
		var s domain.TopSeller
		if err := rows.Scan(&s.ProductID, &s.Name, &s.TotalSold); err != nil {
			return nil, fmt.Errorf("scan top seller: %w", err)
		}
		sellers = append(sellers, s)
	}
	return sellers, rows.Err()
}

func (m *MySQLAdapter) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (m *MySQLAdapter) InsertProducts(ctx context.Context, products []domain.Product) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := m.now().UTC()
	for _, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (name, price, stock, active, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, ?, ?)`,
			p.Name, p.Price, p.Stock, p.Active, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert product %q: %w", p.Name, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, total, created_at FROM orders WHERE id = ?`, id,
	).Scan(&order.ID, &order.Total, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price, line_total
		FROM order_items WHERE order_id = ? ORDER BY line_no`, id,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	order.Lines = []domain.OrderLine{}
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return domain.Order{}, fmt.Errorf("scan order item: %w", err)
		}
		order.Lines = append(order.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("iterate order items: %w", err)
	}

	return order, nil
}

// translateMySQLError maps lock contention reported by the server to
// domain.ErrConcurrencyConflict. Other errors pass through unchanged.
func translateMySQLError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, myErr)
		}
	}
	return err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
