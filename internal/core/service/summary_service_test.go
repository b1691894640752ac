package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func newTestSummary(t *testing.T) (*SummaryService, *LedgerService, *mockDB, *mockCache) {
	t.Helper()
	logger, _ := logrustest.NewNullLogger()
	db := newMockDB()
	cache := newMockCache()
	ledger := NewLedgerService(db, cache, nil, LedgerConfig{}, logger)
	return NewSummaryService(db, cache, time.Minute, logger), ledger, db, cache
}

func seedCatalog(t *testing.T, db *mockDB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.CreateCategory(ctx, domain.Category{ID: "cat-1", Name: "Dairy", IsActive: true}))
	require.NoError(t, db.CreateCategory(ctx, domain.Category{ID: "cat-2", Name: "Retired", IsActive: false}))

	db.seedProduct("milk", "0")
	db.seedProduct("cream", "2")
	p := db.seedProduct("cheese", "10")
	p.CostPrice = decimal.NewNullDecimal(decimal.RequireFromString("3.5"))
	require.NoError(t, db.CreateProduct(ctx, p))
}

func TestSummary(t *testing.T) {
	svc, ledger, db, cache := newTestSummary(t)
	seedCatalog(t, db)
	ctx := context.Background()

	_, err := ledger.StockIn(ctx, StockMovement{ProductID: "milk", Quantity: decimal.NewFromInt(1)})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalProducts)
	assert.Equal(t, 1, summary.TotalCategories)
	assert.Equal(t, 0, summary.OutOfStock)
	assert.Equal(t, 2, summary.LowStock) // milk at 1 and cream at 2
	assert.True(t, summary.TotalValue.Equal(decimal.RequireFromString("35")))
	assert.Equal(t, 1, summary.RecentTransactions)
	require.NotNil(t, cache.summary, "summary should be cached")
}

func TestSummary_ServedFromCacheUntilInvalidated(t *testing.T) {
	svc, ledger, db, _ := newTestSummary(t)
	seedCatalog(t, db)
	ctx := context.Background()

	first, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.OutOfStock)

	_, err = ledger.StockIn(ctx, StockMovement{ProductID: "milk", Quantity: decimal.NewFromInt(10)})
	require.NoError(t, err)

	cached, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.OutOfStock, "stale within TTL")

	require.NoError(t, svc.Invalidate(ctx))
	fresh, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.OutOfStock)
}

func TestSummary_CancelledCallerDoesNotFailSharedComputation(t *testing.T) {
	svc, _, db, cache := newTestSummary(t)
	seedCatalog(t, db)
	db.listStarted = make(chan struct{})
	db.listGate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		summary *domain.StockSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := svc.Summary(ctx)
		done <- result{summary, err}
	}()

	<-db.listStarted
	cancel()
	close(db.listGate)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 3, res.summary.TotalProducts)

	cache.mu.Lock()
	defer cache.mu.Unlock()
	require.NotNil(t, cache.summary, "the computed summary is cached for the other callers")
}

func TestCategorySummariesAndStockStatus(t *testing.T) {
	svc, _, db, _ := newTestSummary(t)
	seedCatalog(t, db)
	ctx := context.Background()

	categories, err := svc.CategorySummaries(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1, "inactive categories are skipped")
	assert.Equal(t, "Dairy", categories[0].CategoryName)
	assert.Equal(t, 3, categories[0].TotalProducts)
	assert.Equal(t, 1, categories[0].OutOfStock)
	assert.Equal(t, 1, categories[0].LowStock)

	status, err := svc.StockStatus(ctx)
	require.NoError(t, err)
	require.Len(t, status.OutOfStock, 1)
	assert.Equal(t, "milk", status.OutOfStock[0].ID)
	assert.Equal(t, "Dairy", status.OutOfStock[0].Category)
	require.Len(t, status.LowStock, 1)
	assert.Equal(t, "cream", status.LowStock[0].ID)
}

func TestRecentActivity(t *testing.T) {
	svc, ledger, db, _ := newTestSummary(t)
	seedCatalog(t, db)
	ctx := context.Background()

	_, err := ledger.RecordWaste(ctx, StockMovement{ProductID: "cheese", Quantity: decimal.NewFromInt(2), Notes: "mould"})
	require.NoError(t, err)

	activity, err := svc.RecentActivity(ctx, 0)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, domain.TransactionWaste, activity[0].Type)
	assert.Equal(t, "Product cheese", activity[0].ProductName)
	assert.Equal(t, "kg", activity[0].Unit)
	assert.Equal(t, "mould", activity[0].Notes)
}
