package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger(t *testing.T) (*LedgerService, *mockDB, *mockCache, *mockPublisher) {
	t.Helper()
	logger, _ := logrustest.NewNullLogger()
	db := newMockDB()
	cache := newMockCache()
	events := &mockPublisher{}
	svc := NewLedgerService(db, cache, events, LedgerConfig{StorageTimeout: 2 * time.Second}, logger)
	return svc, db, cache, events
}

func TestRecordTransaction_Walkthrough(t *testing.T) {
	svc, db, _, events := newTestLedger(t)
	db.seedProduct("flour", "10")
	ctx := context.Background()

	entry, err := svc.StockOut(ctx, StockMovement{ProductID: "flour", Quantity: dec("3")})
	require.NoError(t, err)
	assert.True(t, entry.PreviousQuantity.Equal(dec("10")))
	assert.True(t, entry.QuantityChange.Equal(dec("-3")))
	assert.True(t, entry.NewQuantity.Equal(dec("7")))
	assert.Equal(t, domain.TransactionOut, entry.TransactionType)
	assert.Equal(t, "Stock usage", entry.Notes)
	assert.Equal(t, "System", entry.PerformedBy)
	require.NotNil(t, entry.Product)
	assert.Equal(t, "Product flour", entry.Product.Name)

	_, err = svc.StockOut(ctx, StockMovement{ProductID: "flour", Quantity: dec("10")})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.ErrorIs(t, err, domain.ErrBelowZero)
	assert.True(t, db.quantity("flour").Equal(dec("7")), "rejected stock-out must not change quantity")

	entry, err = svc.RecordAdjustment(ctx, Adjustment{ProductID: "flour", QuantityChange: dec("-2")})
	require.NoError(t, err)
	assert.True(t, entry.NewQuantity.Equal(dec("5")))

	entry, err = svc.RecordAdjustment(ctx, Adjustment{ProductID: "flour", QuantityChange: dec("100")})
	require.NoError(t, err)
	assert.True(t, entry.NewQuantity.Equal(dec("105")))
	assert.False(t, entry.TotalCost.Valid)

	assert.Equal(t, 3, db.entryCount())
	assert.Equal(t, 3, events.count())
	assert.True(t, db.quantity("flour").Equal(dec("105")))
}

func TestRecordTransaction_TotalCost(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("oil", "0")

	entry, err := svc.StockIn(context.Background(), StockMovement{
		ProductID: "oil",
		Quantity:  dec("4"),
		UnitCost:  decimal.NewNullDecimal(dec("2.5")),
	})
	require.NoError(t, err)
	require.True(t, entry.TotalCost.Valid)
	assert.True(t, entry.TotalCost.Decimal.Equal(dec("10")))
	assert.Equal(t, "Stock intake", entry.Notes)
}

func TestRecordTransaction_Validation(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("salt", "1")
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.TransactionRequest
	}{
		{"missing product", domain.TransactionRequest{Type: domain.TransactionIn, QuantityChange: dec("1")}},
		{"missing type", domain.TransactionRequest{ProductID: "salt", QuantityChange: dec("1")}},
		{"unknown type", domain.TransactionRequest{ProductID: "salt", Type: "GIFT", QuantityChange: dec("1")}},
		{"too many decimals", domain.TransactionRequest{ProductID: "salt", Type: domain.TransactionIn, QuantityChange: dec("0.0001")}},
		{"negative unit cost", domain.TransactionRequest{
			ProductID: "salt", Type: domain.TransactionIn, QuantityChange: dec("1"),
			UnitCost: decimal.NewNullDecimal(dec("-1")),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordTransaction(ctx, tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Equal(t, 0, db.entryCount())
}

func TestStockMovement_RequiresPositiveQuantity(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("rice", "5")

	for _, q := range []string{"0", "-1"} {
		_, err := svc.StockOut(context.Background(), StockMovement{ProductID: "rice", Quantity: dec(q)})
		assert.ErrorIs(t, err, domain.ErrValidation, "quantity %s", q)
		_, err = svc.RecordWaste(context.Background(), StockMovement{ProductID: "rice", Quantity: dec(q)})
		assert.ErrorIs(t, err, domain.ErrValidation, "quantity %s", q)
	}
}

func TestRecordTransaction_ZeroDeltaAdjustment(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("eggs", "12")

	entry, err := svc.RecordAdjustment(context.Background(), Adjustment{ProductID: "eggs", QuantityChange: decimal.Zero})
	require.NoError(t, err)
	assert.True(t, entry.NewQuantity.Equal(dec("12")))
	assert.Equal(t, 1, db.entryCount())
}

func TestRecordTransaction_ProductNotFound(t *testing.T) {
	svc, db, _, events := newTestLedger(t)

	_, err := svc.StockIn(context.Background(), StockMovement{ProductID: "ghost", Quantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, db.entryCount())
	assert.Equal(t, 0, events.count())
}

func TestRecordTransaction_StorageFailure(t *testing.T) {
	svc, db, _, events := newTestLedger(t)
	db.seedProduct("milk", "3")
	db.commitErr = errors.New("disk full")

	_, err := svc.StockIn(context.Background(), StockMovement{ProductID: "milk", Quantity: dec("1")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidState)
	assert.True(t, db.quantity("milk").Equal(dec("3")))
	assert.Equal(t, 0, events.count())
}

func TestRecordTransaction_RetriesVersionConflict(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("sugar", "8")
	db.conflicts = 2

	entry, err := svc.StockOut(context.Background(), StockMovement{ProductID: "sugar", Quantity: dec("1")})
	require.NoError(t, err)
	assert.True(t, entry.NewQuantity.Equal(dec("7")))
	assert.Equal(t, 1, db.entryCount())
}

func TestRecordTransaction_ConflictRetriesExhausted(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("sugar", "8")
	db.conflicts = DefaultMaxConflictRetries + 1

	_, err := svc.StockOut(context.Background(), StockMovement{ProductID: "sugar", Quantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 0, db.entryCount())
	assert.True(t, db.quantity("sugar").Equal(dec("8")))
}

// A writer outside this process drains the product between read and commit.
// The retry must re-evaluate the guard against the new quantity.
func TestRecordTransaction_ReevaluatesGuardAfterConflict(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("butter", "10")
	db.beforeCommit = func() {
		db.mu.Lock()
		p := db.products["butter"]
		p.CurrentQuantity = dec("4")
		p.Version++
		db.products["butter"] = p
		db.mu.Unlock()
	}

	_, err := svc.StockOut(context.Background(), StockMovement{ProductID: "butter", Quantity: dec("6")})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.True(t, db.quantity("butter").Equal(dec("4")))
	assert.Equal(t, 0, db.entryCount())
}

func TestRecordTransaction_ConcurrentStockOut(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("cheese", "10")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.StockOut(context.Background(), StockMovement{ProductID: "cheese", Quantity: dec("6")})
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInvalidState):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.True(t, db.quantity("cheese").Equal(dec("4")))
}

func TestRecordTransaction_ConcurrentReconciles(t *testing.T) {
	initialStock := 20
	totalRequests := 50

	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("tomato", fmt.Sprint(initialStock))

	var successCount atomic.Int32
	var failCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.StockOut(context.Background(), StockMovement{ProductID: "tomato", Quantity: decimal.NewFromInt(1)})
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, domain.ErrInvalidState) {
				failCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	assert.Equal(t, int32(totalRequests-initialStock), failCount.Load())
	assert.True(t, db.quantity("tomato").IsZero())

	history, err := svc.ProductHistory(context.Background(), "tomato", MaxListLimit)
	require.NoError(t, err)
	require.Len(t, history, initialStock)

	sum := decimal.Zero
	for i, e := range history {
		assert.True(t, e.Reconciles(), "entry %s", e.ID)
		sum = sum.Add(e.QuantityChange)
		if i > 0 {
			// newest first: each older entry ends where the newer one started
			assert.True(t, e.NewQuantity.Equal(history[i-1].PreviousQuantity))
		}
	}
	assert.True(t, dec("20").Add(sum).Equal(db.quantity("tomato")))
}

func TestSetQuantity(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("beans", "10")
	ctx := context.Background()

	entry, err := svc.SetQuantity(ctx, "beans", dec("3"), "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionAdjustment, entry.TransactionType)
	assert.True(t, entry.QuantityChange.Equal(dec("-7")))
	assert.True(t, db.quantity("beans").Equal(dec("3")))

	_, err = svc.SetQuantity(ctx, "beans", dec("-1"), "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSetQuantity_RecomputesDeltaAfterConflict(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("beans", "10")
	db.beforeCommit = func() {
		db.mu.Lock()
		p := db.products["beans"]
		p.CurrentQuantity = dec("15")
		p.Version++
		db.products["beans"] = p
		db.mu.Unlock()
	}

	entry, err := svc.SetQuantity(context.Background(), "beans", dec("12"), "count", "alice")
	require.NoError(t, err)
	assert.True(t, entry.PreviousQuantity.Equal(dec("15")))
	assert.True(t, entry.QuantityChange.Equal(dec("-3")))
	assert.True(t, db.quantity("beans").Equal(dec("12")))
	assert.Equal(t, "alice", entry.PerformedBy)
}

func TestRecordTransaction_PublishFailureDoesNotFail(t *testing.T) {
	svc, db, _, events := newTestLedger(t)
	db.seedProduct("yeast", "1")
	events.err = errors.New("broker down")

	_, err := svc.StockIn(context.Background(), StockMovement{ProductID: "yeast", Quantity: dec("1")})
	require.NoError(t, err)
	assert.True(t, db.quantity("yeast").Equal(dec("2")))
}

func TestIdempotent(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("lemon", "5")
	ctx := context.Background()

	stockIn := func(ctx context.Context) (*domain.LedgerEntry, error) {
		return svc.StockIn(ctx, StockMovement{ProductID: "lemon", Quantity: dec("1")})
	}

	_, err := svc.Idempotent(ctx, "req-1", stockIn)
	require.NoError(t, err)

	_, err = svc.Idempotent(ctx, "req-1", stockIn)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.True(t, db.quantity("lemon").Equal(dec("6")), "stock should only change once")
}

func TestIdempotent_ReleasesKeyOnFailure(t *testing.T) {
	svc, db, cache, _ := newTestLedger(t)
	db.seedProduct("lime", "1")
	ctx := context.Background()

	stockOut := func(ctx context.Context) (*domain.LedgerEntry, error) {
		return svc.StockOut(ctx, StockMovement{ProductID: "lime", Quantity: dec("2")})
	}

	_, err := svc.Idempotent(ctx, "req-2", stockOut)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Empty(t, cache.idempotencySet)
}

func TestProductHistory(t *testing.T) {
	svc, db, _, _ := newTestLedger(t)
	db.seedProduct("a", "0")
	db.seedProduct("b", "0")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := svc.StockIn(ctx, StockMovement{ProductID: "a", Quantity: decimal.NewFromInt(int64(i))})
		require.NoError(t, err)
	}
	_, err := svc.StockIn(ctx, StockMovement{ProductID: "b", Quantity: dec("1")})
	require.NoError(t, err)

	history, err := svc.ProductHistory(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].QuantityChange.Equal(dec("3")))

	history, err = svc.ProductHistory(ctx, "a", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = svc.ProductHistory(ctx, "ghost", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	recent, err := svc.RecentTransactions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, "b", recent[0].ProductID)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, clampLimit(0, 50))
	assert.Equal(t, 50, clampLimit(-3, 50))
	assert.Equal(t, 7, clampLimit(7, 50))
	assert.Equal(t, MaxListLimit, clampLimit(10_000, 50))
}
