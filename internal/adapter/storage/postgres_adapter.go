package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

type PostgresAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

// ConnectPostgres opens a pool against dsn and pings it.
func ConnectPostgres(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func (p *PostgresAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (p *PostgresAdapter) CreateCategory(ctx context.Context, c domain.Category) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO categories (id, name, description, sort_order, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Description, c.SortOrder, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", mapPgError(err))
	}
	return nil
}

func (p *PostgresAdapter) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	categories, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Category])
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return categories, nil
}

func (p *PostgresAdapter) CreateProduct(ctx context.Context, pr domain.Product) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pr.ID, pr.CategoryID, pr.Name, pr.SKU, pr.Unit, pr.CurrentQuantity, pr.MinimumStock,
		pr.CostPrice, pr.IsActive, pr.Version, pr.CreatedAt, pr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", mapPgError(err))
	}
	return nil
}

func (p *PostgresAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	product, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domain.Product])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return product, nil
}

func (p *PostgresAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Product])
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	return products, nil
}

func (p *PostgresAdapter) CommitEntry(ctx context.Context, e domain.LedgerEntry, expectedVersion int64) error {
	metadata, err := domain.MarshalMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET current_quantity = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		e.NewQuantity, e.TransactionDate, e.ProductID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return port.ErrOptimisticLock
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_history (
			id, product_id, transaction_type, quantity_change, previous_quantity, new_quantity,
			unit_cost, total_cost, reference_number, notes, performed_by, transaction_date, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.ProductID, string(e.TransactionType), e.QuantityChange, e.PreviousQuantity, e.NewQuantity,
		e.UnitCost, e.TotalCost, nullString(e.ReferenceNumber), nullString(e.Notes), nullString(e.PerformedBy),
		e.TransactionDate, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", mapPgError(err))
	}

	return tx.Commit(ctx)
}

func (p *PostgresAdapter) ProductHistory(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	return p.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM stock_history h JOIN products p ON p.id = h.product_id
		WHERE h.product_id = $1
		ORDER BY h.transaction_date DESC, h.seq DESC
		LIMIT $2`, productID, limit)
}

func (p *PostgresAdapter) RecentEntries(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	return p.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM stock_history h JOIN products p ON p.id = h.product_id
		ORDER BY h.transaction_date DESC, h.seq DESC
		LIMIT $1`, limit)
}

func (p *PostgresAdapter) queryEntries(ctx context.Context, query string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	scanned, err := pgx.CollectRows(rows, pgx.RowToStructByName[entryRow])
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return entriesFromRows(scanned)
}

func (p *PostgresAdapter) CountEntriesSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_history WHERE transaction_date >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ledger: %w", err)
	}
	return n, nil
}

func (p *PostgresAdapter) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Detail)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, pgErr.Detail)
	case pgCheckViolation:
		return domain.ErrBelowZero
	}
	return err
}
