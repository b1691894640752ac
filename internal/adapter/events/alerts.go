package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type StockLevel string

const (
	LevelOK         StockLevel = "OK"
	LevelLowStock   StockLevel = "LOW_STOCK"
	LevelOutOfStock StockLevel = "OUT_OF_STOCK"
)

// ClassifyStock reports where the product stands after the entry was applied.
func ClassifyStock(e domain.TransactionRecorded) StockLevel {
	switch {
	case e.Entry.NewQuantity.IsZero():
		return LevelOutOfStock
	case e.Entry.NewQuantity.LessThanOrEqual(e.MinimumStock):
		return LevelLowStock
	}
	return LevelOK
}

type SummaryInvalidator interface {
	Invalidate(ctx context.Context) error
}

// AlertHandler warns about products running low and drops the cached
// dashboard summary after every recorded transaction.
type AlertHandler struct {
	summary SummaryInvalidator
	log     logrus.FieldLogger
}

func NewAlertHandler(summary SummaryInvalidator, log logrus.FieldLogger) *AlertHandler {
	return &AlertHandler{summary: summary, log: log}
}

func (h *AlertHandler) Handle(msg *message.Message) error {
	var event domain.TransactionRecorded
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// malformed payloads would be redelivered forever
		h.log.WithError(err).WithField("message_uuid", msg.UUID).Error("dropping undecodable event")
		return nil
	}

	fields := logrus.Fields{
		"product_id":    event.Entry.ProductID,
		"product_name":  event.ProductName,
		"quantity":      event.Entry.NewQuantity.String(),
		"minimum_stock": event.MinimumStock.String(),
		"unit":          event.Unit,
	}
	switch level := ClassifyStock(event); level {
	case LevelOutOfStock, LevelLowStock:
		h.log.WithFields(fields).WithField("level", level).Warn("stock alert")
	}

	if h.summary != nil {
		if err := h.summary.Invalidate(msg.Context()); err != nil {
			return fmt.Errorf("invalidate summary: %w", err)
		}
	}
	return nil
}
