package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type EventPublisher interface {
	// PublishTransactionRecorded announces a committed ledger entry
	PublishTransactionRecorded(ctx context.Context, event domain.TransactionRecorded) error
}
