package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// MemoryAdapter is a DatabaseRepository held in process memory. It enforces the
// same constraints as the SQL schema and is meant for tests and local runs.
type MemoryAdapter struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
	products   map[string]domain.Product
	entries    []memoryEntry
	seq        int64
}

type memoryEntry struct {
	seq   int64
	entry domain.LedgerEntry
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		categories: make(map[string]domain.Category),
		products:   make(map[string]domain.Product),
	}
}

func (m *MemoryAdapter) CreateCategory(ctx context.Context, c domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[c.ID]; ok {
		return fmt.Errorf("insert category: %w: id %s exists", domain.ErrConflict, c.ID)
	}
	for _, existing := range m.categories {
		if existing.Name == c.Name {
			return fmt.Errorf("insert category: %w: name %q exists", domain.ErrConflict, c.Name)
		}
	}
	m.categories[c.ID] = c
	return nil
}

func (m *MemoryAdapter) ListCategories(ctx context.Context) ([]domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	categories := lo.Values(m.categories)
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].SortOrder != categories[j].SortOrder {
			return categories[i].SortOrder < categories[j].SortOrder
		}
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[p.CategoryID]; !ok {
		return fmt.Errorf("insert product: category %s %w", p.CategoryID, domain.ErrNotFound)
	}
	if _, ok := m.products[p.ID]; ok {
		return fmt.Errorf("insert product: %w: id %s exists", domain.ErrConflict, p.ID)
	}
	if p.SKU != nil {
		for _, existing := range m.products {
			if existing.SKU != nil && *existing.SKU == *p.SKU {
				return fmt.Errorf("insert product: %w: sku %q exists", domain.ErrConflict, *p.SKU)
			}
		}
	}
	if p.CurrentQuantity.IsNegative() {
		return domain.ErrBelowZero
	}
	m.products[p.ID] = p
	return nil
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := lo.Filter(lo.Values(m.products), func(p domain.Product, _ int) bool { return p.IsActive })
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (m *MemoryAdapter) CommitEntry(ctx context.Context, e domain.LedgerEntry, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[e.ProductID]
	if !ok || p.Version != expectedVersion {
		return port.ErrOptimisticLock
	}
	if e.NewQuantity.IsNegative() || !e.Reconciles() {
		return domain.ErrBelowZero
	}
	for _, existing := range m.entries {
		if existing.entry.ID == e.ID {
			return fmt.Errorf("insert ledger entry: %w: id %s exists", domain.ErrConflict, e.ID)
		}
	}

	p.CurrentQuantity = e.NewQuantity
	p.Version++
	p.UpdatedAt = e.TransactionDate
	m.products[p.ID] = p

	m.seq++
	e.Product = nil
	m.entries = append(m.entries, memoryEntry{seq: m.seq, entry: e})
	return nil
}

func (m *MemoryAdapter) ProductHistory(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	return m.newestFirst(limit, func(e domain.LedgerEntry) bool { return e.ProductID == productID }), nil
}

func (m *MemoryAdapter) RecentEntries(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	return m.newestFirst(limit, func(domain.LedgerEntry) bool { return true }), nil
}

func (m *MemoryAdapter) newestFirst(limit int, keep func(domain.LedgerEntry) bool) []domain.LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := lo.Filter(m.entries, func(me memoryEntry, _ int) bool { return keep(me.entry) })
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.entry.TransactionDate.Equal(b.entry.TransactionDate) {
			return a.entry.TransactionDate.After(b.entry.TransactionDate)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return lo.Map(matched, func(me memoryEntry, _ int) domain.LedgerEntry {
		e := me.entry
		if p, ok := m.products[e.ProductID]; ok {
			summary := p.Summary()
			e.Product = &summary
		}
		return e
	})
}

func (m *MemoryAdapter) CountEntriesSince(ctx context.Context, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.CountBy(m.entries, func(me memoryEntry) bool { return !me.entry.TransactionDate.Before(since) }), nil
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return nil
}
