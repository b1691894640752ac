package port

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// ErrOptimisticLock is returned by CommitEntry when the product version moved.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

type DatabaseRepository interface {
	// CreateCategory persists a new category
	CreateCategory(ctx context.Context, category domain.Category) error

	// ListCategories returns all categories ordered by sort order
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// CreateProduct persists a new product with its initial quantity
	CreateProduct(ctx context.Context, product domain.Product) error

	// GetProduct retrieves a product by ID, nil when it does not exist
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// ListProducts returns all active products ordered by name
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// CommitEntry appends the ledger entry and moves the product to entry.NewQuantity
	// in one transaction, with version check for optimistic locking
	CommitEntry(ctx context.Context, entry domain.LedgerEntry, expectedVersion int64) error

	// ProductHistory returns a product's entries, most recent first
	ProductHistory(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error)

	// RecentEntries returns entries across all products, most recent first
	RecentEntries(ctx context.Context, limit int) ([]domain.LedgerEntry, error)

	// CountEntriesSince counts entries with a transaction date at or after since
	CountEntriesSince(ctx context.Context, since time.Time) (int, error)

	// Ping checks the connection to the backing store
	Ping(ctx context.Context) error
}
