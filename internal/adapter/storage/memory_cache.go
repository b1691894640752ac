package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// MemoryCache is the single-process CacheRepository used when no Redis is configured.
type MemoryCache struct {
	mu          sync.Mutex
	idempotency map[string]time.Time
	summary     *domain.StockSummary
	summaryExp  time.Time

	now func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		idempotency: make(map[string]time.Time),
		now:         time.Now,
	}
}

func (c *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.idempotency[key]; ok && now.Before(exp) {
		return false, nil
	}
	c.idempotency[key] = now.Add(idempotencyKeyTTL)
	return true, nil
}

func (c *MemoryCache) ReleaseIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.idempotency, key)
	return nil
}

func (c *MemoryCache) GetSummary(ctx context.Context) (*domain.StockSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.summary == nil || !c.now().Before(c.summaryExp) {
		return nil, false, nil
	}
	s := *c.summary
	return &s, true, nil
}

func (c *MemoryCache) SetSummary(ctx context.Context, summary domain.StockSummary, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = &summary
	c.summaryExp = c.now().Add(ttl)
	return nil
}

func (c *MemoryCache) InvalidateSummary(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = nil
	return nil
}
