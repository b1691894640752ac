package handler

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

// Request bodies shared by the HTTP and gRPC transports. Quantities accept
// JSON numbers as well as strings.

type TransactionBody struct {
	ProductID       string              `json:"product_id"`
	TransactionType string              `json:"transaction_type"`
	QuantityChange  *decimal.Decimal    `json:"quantity_change"`
	UnitCost        decimal.NullDecimal `json:"unit_cost"`
	ReferenceNumber string              `json:"reference_number"`
	Notes           string              `json:"notes"`
	PerformedBy     string              `json:"performed_by"`
	Metadata        domain.Metadata     `json:"metadata"`
}

func (b TransactionBody) toRequest() (domain.TransactionRequest, error) {
	if b.QuantityChange == nil {
		return domain.TransactionRequest{}, domain.NewValidationError("quantity_change", "product ID, transaction type and quantity change are required")
	}
	return domain.TransactionRequest{
		ProductID:       b.ProductID,
		Type:            domain.TransactionType(b.TransactionType),
		QuantityChange:  *b.QuantityChange,
		UnitCost:        b.UnitCost,
		ReferenceNumber: b.ReferenceNumber,
		Notes:           b.Notes,
		PerformedBy:     b.PerformedBy,
		Metadata:        b.Metadata,
	}, nil
}

type MovementBody struct {
	ProductID       string              `json:"product_id"`
	Quantity        decimal.Decimal     `json:"quantity"`
	UnitCost        decimal.NullDecimal `json:"unit_cost"`
	ReferenceNumber string              `json:"reference_number"`
	Notes           string              `json:"notes"`
	Reason          string              `json:"reason"`
	PerformedBy     string              `json:"performed_by"`
}

func (b MovementBody) toMovement() service.StockMovement {
	notes := b.Notes
	if notes == "" {
		notes = b.Reason
	}
	return service.StockMovement{
		ProductID:       b.ProductID,
		Quantity:        b.Quantity,
		UnitCost:        b.UnitCost,
		ReferenceNumber: b.ReferenceNumber,
		Notes:           notes,
		PerformedBy:     b.PerformedBy,
	}
}

type AdjustmentBody struct {
	ProductID      string           `json:"product_id"`
	QuantityChange *decimal.Decimal `json:"quantity_change"`
	Reason         string           `json:"reason"`
	PerformedBy    string           `json:"performed_by"`
}

func (b AdjustmentBody) toAdjustment() (service.Adjustment, error) {
	if b.ProductID == "" || b.QuantityChange == nil {
		return service.Adjustment{}, domain.NewValidationError("quantity_change", "product ID and quantity change are required")
	}
	return service.Adjustment{
		ProductID:      b.ProductID,
		QuantityChange: *b.QuantityChange,
		Reason:         b.Reason,
		PerformedBy:    b.PerformedBy,
	}, nil
}

type SetQuantityBody struct {
	Quantity    *decimal.Decimal `json:"quantity"`
	Reason      string           `json:"reason"`
	PerformedBy string           `json:"performed_by"`
}

type HistoryBody struct {
	ProductID string `json:"product_id"`
	Limit     int    `json:"limit"`
}
