package port

import (
	"context"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes the key so a failed request can be resubmitted
	ReleaseIdempotency(ctx context.Context, key string) error

	// GetSummary returns the cached stock summary, false on a miss
	GetSummary(ctx context.Context) (*domain.StockSummary, bool, error)

	// SetSummary caches the stock summary for ttl
	SetSummary(ctx context.Context, summary domain.StockSummary, ttl time.Duration) error

	// InvalidateSummary drops the cached stock summary
	InvalidateSummary(ctx context.Context) error
}
