package storage

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		stock INT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		version INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		CONSTRAINT chk_products_stock CHECK (stock >= 0),
		CONSTRAINT chk_products_price CHECK (price >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id CHAR(36) PRIMARY KEY,
		total DECIMAL(12,2) NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id CHAR(36) NOT NULL,
		line_no INT NOT NULL,
		product_id BIGINT NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(12,2) NOT NULL,
		line_total DECIMAL(12,2) NOT NULL,
		PRIMARY KEY (order_id, line_no),
		KEY idx_order_items_product (product_id),
		CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders (id),
		CONSTRAINT chk_order_items_quantity CHECK (quantity >= 1)
	)`,
}

// Migrate creates the tables if they do not exist yet.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
