package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lamiti/shopsync/internal/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite-backed local replica.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path. Used by the backup snapshotter.
func (s *SQLiteStore) Path() string {
	return s.path
}

// DB exposes the underlying handle for maintenance operations
// (VACUUM INTO snapshots).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// unavailable wraps a persistence failure so callers can detect
// ErrStorageUnavailable with errors.Is while keeping the cause.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorageUnavailable, err))
}

// Products returns the full product collection, most recently added first.
func (s *SQLiteStore) Products(ctx context.Context) ([]types.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM products ORDER BY added_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]types.Product, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		var p types.Product
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("parse product payload: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ReplaceProducts atomically replaces the whole product collection.
func (s *SQLiteStore) ReplaceProducts(ctx context.Context, products []types.Product) error {
	return s.replaceAll(ctx, "products",
		`INSERT INTO products (id, payload, added_at) VALUES (?, ?, ?)`,
		len(products),
		func(i int) ([]any, error) {
			p := products[i]
			payload, err := json.Marshal(p)
			if err != nil {
				return nil, err
			}
			return []any{p.ID, string(payload), p.AddedAt.UTC().Format(time.RFC3339Nano)}, nil
		})
}

// Orders returns the full order collection, most recently placed first.
func (s *SQLiteStore) Orders(ctx context.Context) ([]types.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM orders ORDER BY order_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]types.Order, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		var o types.Order
		if err := json.Unmarshal([]byte(payload), &o); err != nil {
			return nil, fmt.Errorf("parse order payload: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ReplaceOrders atomically replaces the whole order collection.
func (s *SQLiteStore) ReplaceOrders(ctx context.Context, orders []types.Order) error {
	return s.replaceAll(ctx, "orders",
		`INSERT INTO orders (id, payload, order_date) VALUES (?, ?, ?)`,
		len(orders),
		func(i int) ([]any, error) {
			o := orders[i]
			payload, err := json.Marshal(o)
			if err != nil {
				return nil, err
			}
			return []any{o.ID, string(payload), o.OrderDate.UTC().Format(time.RFC3339Nano)}, nil
		})
}

// Categories returns the category taxonomy.
func (s *SQLiteStore) Categories(ctx context.Context) ([]types.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM categories ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]types.Category, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		var c types.Category
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, fmt.Errorf("parse category payload: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ReplaceCategories atomically replaces the category taxonomy.
func (s *SQLiteStore) ReplaceCategories(ctx context.Context, categories []types.Category) error {
	return s.replaceAll(ctx, "categories",
		`INSERT INTO categories (name, payload) VALUES (?, ?)`,
		len(categories),
		func(i int) ([]any, error) {
			c := categories[i]
			payload, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			return []any{c.Name, string(payload)}, nil
		})
}

// replaceAll performs a delete-then-insert snapshot replacement of one
// entity table inside a single transaction.
func (s *SQLiteStore) replaceAll(ctx context.Context, table, insertSQL string, n int, args func(int) ([]any, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return unavailable("clear "+table, err)
	}

	if n > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return unavailable("prepare insert "+table, err)
		}
		defer stmt.Close()

		for i := 0; i < n; i++ {
			a, err := args(i)
			if err != nil {
				return unavailable("encode "+table+" record", err)
			}
			if _, err := stmt.ExecContext(ctx, a...); err != nil {
				return unavailable("insert "+table+" record", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit "+table, err)
	}
	return nil
}

// RecordOrderConfirmation stores the confirmation issued for an order.
// A second confirmation for the same order is ignored.
func (s *SQLiteStore) RecordOrderConfirmation(ctx context.Context, c types.OrderConfirmation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO order_confirmations (order_id, email, sent_at)
		VALUES (?, ?, ?)
	`, c.OrderID, c.Email, c.SentAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return unavailable("record order confirmation", err)
	}
	return nil
}

// OrderConfirmation returns the confirmation for an order, or ErrNotFound.
func (s *SQLiteStore) OrderConfirmation(ctx context.Context, orderID string) (*types.OrderConfirmation, error) {
	var c types.OrderConfirmation
	var sentAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT order_id, email, sent_at FROM order_confirmations WHERE order_id = ?
	`, orderID).Scan(&c.OrderID, &c.Email, &sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order confirmation: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, sentAt); err == nil {
		c.SentAt = t
	}
	return &c, nil
}

// RecordCustomerOrder indexes an order under the customer's email.
func (s *SQLiteStore) RecordCustomerOrder(ctx context.Context, email, orderID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO customer_orders (email, order_id, created_at)
		VALUES (?, ?, ?)
	`, email, orderID, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return unavailable("record customer order", err)
	}
	return nil
}

// CustomerOrderIDs returns the order IDs placed by a customer, oldest first.
func (s *SQLiteStore) CustomerOrderIDs(ctx context.Context, email string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id FROM customer_orders WHERE email = ? ORDER BY created_at ASC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("query customer orders: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan customer order: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetSyncMeta retrieves a sync metadata value by key.
func (s *SQLiteStore) GetSyncMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM sync_meta WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sync meta key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get sync meta: %w", err)
	}
	return value, nil
}

// SetSyncMeta sets a sync metadata value.
func (s *SQLiteStore) SetSyncMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_meta (key, value) VALUES (?, ?)
	`, key, value)
	if err != nil {
		return unavailable("set sync meta", err)
	}
	return nil
}
