package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const TopicTransactionRecorded = "stock.transaction_recorded"

// Publisher emits ledger events as JSON messages.
type Publisher struct {
	pub message.Publisher
}

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

func (p *Publisher) PublishTransactionRecorded(ctx context.Context, event domain.TransactionRecorded) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("product_id", event.Entry.ProductID)
	msg.Metadata.Set("transaction_type", string(event.Entry.TransactionType))
	msg.SetContext(ctx)

	if err := p.pub.Publish(TopicTransactionRecorded, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicTransactionRecorded, err)
	}
	return nil
}
