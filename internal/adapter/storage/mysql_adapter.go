package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	mysqlDuplicateEntry    = 1062
	mysqlForeignKeyMissing = 1452
	mysqlCheckViolated     = 3819
)

type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// ConnectMySQL opens dsn, forcing parseTime and UTC so DATETIME columns scan into time.Time.
func ConnectMySQL(ctx context.Context, dsn string) (*sqlx.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) CreateCategory(ctx context.Context, c domain.Category) error {
	_, err := m.db.NamedExecContext(ctx, `
		INSERT INTO categories (id, name, description, sort_order, is_active, created_at, updated_at)
		VALUES (:id, :name, :description, :sort_order, :is_active, :created_at, :updated_at)`, c)
	if err != nil {
		return fmt.Errorf("insert category: %w", mapMySQLError(err))
	}
	return nil
}

func (m *MySQLAdapter) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := m.db.SelectContext(ctx, &categories, `SELECT `+categoryColumns+` FROM categories ORDER BY sort_order, name`); err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	return categories, nil
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :category_id, :name, :sku, :unit, :current_quantity, :minimum_stock,
			:cost_price, :is_active, :version, :created_at, :updated_at)`, p)
	if err != nil {
		return fmt.Errorf("insert product: %w", mapMySQLError(err))
	}
	return nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = ?`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := m.db.SelectContext(ctx, &products, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY name`); err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	return products, nil
}

func (m *MySQLAdapter) CommitEntry(ctx context.Context, e domain.LedgerEntry, expectedVersion int64) error {
	metadata, err := domain.MarshalMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET current_quantity = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		e.NewQuantity, e.TransactionDate, e.ProductID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", mapMySQLError(err))
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrOptimisticLock
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_history (
			id, product_id, transaction_type, quantity_change, previous_quantity, new_quantity,
			unit_cost, total_cost, reference_number, notes, performed_by, transaction_date, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProductID, string(e.TransactionType), e.QuantityChange, e.PreviousQuantity, e.NewQuantity,
		e.UnitCost, e.TotalCost, nullString(e.ReferenceNumber), nullString(e.Notes), nullString(e.PerformedBy),
		e.TransactionDate, jsonArg(metadata),
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", mapMySQLError(err))
	}

	return tx.Commit()
}

func (m *MySQLAdapter) ProductHistory(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	return m.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM stock_history h JOIN products p ON p.id = h.product_id
		WHERE h.product_id = ?
		ORDER BY h.transaction_date DESC, h.seq DESC
		LIMIT ?`, productID, limit)
}

func (m *MySQLAdapter) RecentEntries(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	return m.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM stock_history h JOIN products p ON p.id = h.product_id
		ORDER BY h.transaction_date DESC, h.seq DESC
		LIMIT ?`, limit)
}

func (m *MySQLAdapter) queryEntries(ctx context.Context, query string, args ...any) ([]domain.LedgerEntry, error) {
	var rows []entryRow
	if err := m.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	return entriesFromRows(rows)
}

func (m *MySQLAdapter) CountEntriesSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := m.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM stock_history WHERE transaction_date >= ?`, since.UTC()); err != nil {
		return 0, fmt.Errorf("count ledger: %w", err)
	}
	return n, nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// jsonArg binds raw JSON as text; the driver sends []byte with the binary
// charset, which JSON columns reject.
func jsonArg(raw []byte) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}

func mapMySQLError(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case mysqlDuplicateEntry:
		return fmt.Errorf("%w: %s", domain.ErrConflict, myErr.Message)
	case mysqlForeignKeyMissing:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, myErr.Message)
	case mysqlCheckViolated:
		return domain.ErrBelowZero
	}
	return err
}
