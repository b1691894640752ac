package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// Mock DatabaseRepository
type mockDB struct {
	mu         sync.Mutex
	categories []domain.Category
	products   map[string]domain.Product
	entries    []domain.LedgerEntry

	// conflicts makes the next n commits fail with ErrOptimisticLock
	conflicts int
	commitErr error
	// beforeCommit runs once, just before the next version check
	beforeCommit func()
	// listStarted is closed when ListProducts is entered; it then waits for listGate
	listStarted chan struct{}
	listGate    chan struct{}
}

func newMockDB() *mockDB {
	return &mockDB{products: make(map[string]domain.Product)}
}

func (m *mockDB) seedProduct(id string, quantity string) domain.Product {
	p := domain.Product{
		ID:              id,
		CategoryID:      "cat-1",
		Name:            "Product " + id,
		Unit:            "kg",
		CurrentQuantity: decimal.RequireFromString(quantity),
		MinimumStock:    decimal.NewFromInt(5),
		IsActive:        true,
		Version:         1,
	}
	m.mu.Lock()
	m.products[id] = p
	m.mu.Unlock()
	return p
}

func (m *mockDB) quantity(id string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].CurrentQuantity
}

func (m *mockDB) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *mockDB) CreateCategory(ctx context.Context, category domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append(m.categories, category)
	return nil
}

func (m *mockDB) ListCategories(ctx context.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Category(nil), m.categories...), nil
}

func (m *mockDB) CreateProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
	return nil
}

func (m *mockDB) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockDB) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if m.listGate != nil {
		close(m.listStarted)
		<-m.listGate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockDB) CommitEntry(ctx context.Context, entry domain.LedgerEntry, expectedVersion int64) error {
	m.mu.Lock()
	hook := m.beforeCommit
	m.beforeCommit = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.commitErr != nil {
		return m.commitErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		return port.ErrOptimisticLock
	}

	p, ok := m.products[entry.ProductID]
	if !ok {
		return errors.New("product vanished")
	}
	if p.Version != expectedVersion {
		return port.ErrOptimisticLock
	}
	if entry.NewQuantity.IsNegative() {
		return errors.New("check constraint violated")
	}

	p.CurrentQuantity = entry.NewQuantity
	p.Version++
	m.products[p.ID] = p
	summary := p.Summary()
	entry.Product = &summary
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockDB) ProductHistory(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].ProductID == productID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockDB) RecentEntries(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *mockDB) CountEntriesSince(ctx context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if !e.TransactionDate.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockDB) Ping(ctx context.Context) error { return nil }

// Mock CacheRepository
type mockCache struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	summary        *domain.StockSummary
	summaryReads   int
}

func newMockCache() *mockCache {
	return &mockCache{idempotencySet: make(map[string]bool)}
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCache) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCache) GetSummary(ctx context.Context) (*domain.StockSummary, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaryReads++
	if m.summary == nil {
		return nil, false, nil
	}
	s := *m.summary
	return &s, true, nil
}

func (m *mockCache) SetSummary(ctx context.Context, summary domain.StockSummary, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = &summary
	return nil
}

func (m *mockCache) InvalidateSummary(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = nil
	return nil
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	events []domain.TransactionRecorded
	err    error
}

func (m *mockPublisher) PublishTransactionRecorded(ctx context.Context, event domain.TransactionRecorded) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
