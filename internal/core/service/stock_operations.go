package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const (
	defaultPerformedBy     = "System"
	defaultStockInNotes    = "Stock intake"
	defaultStockOutNotes   = "Stock usage"
	defaultWasteNotes      = "Waste/spoilage"
	defaultAdjustmentNotes = "Stock adjustment"
	defaultSetNotes        = "Manual quantity correction"
)

// StockMovement is a positive quantity moving in or out of stock.
type StockMovement struct {
	ProductID       string
	Quantity        decimal.Decimal
	UnitCost        decimal.NullDecimal
	ReferenceNumber string
	Notes           string
	PerformedBy     string
}

func (m StockMovement) validate() error {
	if m.ProductID == "" || !m.Quantity.IsPositive() {
		return domain.NewValidationError("quantity", "product ID and positive quantity are required")
	}
	return nil
}

type Adjustment struct {
	ProductID      string
	QuantityChange decimal.Decimal
	Reason         string
	PerformedBy    string
}

// StockIn records an intake of m.Quantity.
func (s *LedgerService) StockIn(ctx context.Context, m StockMovement) (*domain.LedgerEntry, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	return s.RecordTransaction(ctx, domain.TransactionRequest{
		ProductID:       m.ProductID,
		Type:            domain.TransactionIn,
		QuantityChange:  m.Quantity,
		UnitCost:        m.UnitCost,
		ReferenceNumber: m.ReferenceNumber,
		Notes:           orDefault(m.Notes, defaultStockInNotes),
		PerformedBy:     orDefault(m.PerformedBy, defaultPerformedBy),
	})
}

// StockOut records usage of m.Quantity. Unit cost is not tracked on outgoing stock.
func (s *LedgerService) StockOut(ctx context.Context, m StockMovement) (*domain.LedgerEntry, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	return s.RecordTransaction(ctx, domain.TransactionRequest{
		ProductID:       m.ProductID,
		Type:            domain.TransactionOut,
		QuantityChange:  m.Quantity.Neg(),
		ReferenceNumber: m.ReferenceNumber,
		Notes:           orDefault(m.Notes, defaultStockOutNotes),
		PerformedBy:     orDefault(m.PerformedBy, defaultPerformedBy),
	})
}

// RecordWaste records spoiled stock; m.Notes carries the reason.
func (s *LedgerService) RecordWaste(ctx context.Context, m StockMovement) (*domain.LedgerEntry, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	return s.RecordTransaction(ctx, domain.TransactionRequest{
		ProductID:      m.ProductID,
		Type:           domain.TransactionWaste,
		QuantityChange: m.Quantity.Neg(),
		Notes:          orDefault(m.Notes, defaultWasteNotes),
		PerformedBy:    orDefault(m.PerformedBy, defaultPerformedBy),
	})
}

// RecordAdjustment passes a signed correction through unchanged.
func (s *LedgerService) RecordAdjustment(ctx context.Context, a Adjustment) (*domain.LedgerEntry, error) {
	if a.ProductID == "" {
		return nil, domain.NewValidationError("product_id", "product ID and quantity change are required")
	}

	return s.RecordTransaction(ctx, domain.TransactionRequest{
		ProductID:      a.ProductID,
		Type:           domain.TransactionAdjustment,
		QuantityChange: a.QuantityChange,
		Notes:          orDefault(a.Reason, defaultAdjustmentNotes),
		PerformedBy:    orDefault(a.PerformedBy, defaultPerformedBy),
	})
}

// SetQuantity moves the product to target through an ADJUSTMENT entry whose
// delta is computed against the quantity read inside the same transaction.
func (s *LedgerService) SetQuantity(ctx context.Context, productID string, target decimal.Decimal, reason, performedBy string) (*domain.LedgerEntry, error) {
	if productID == "" {
		return nil, domain.NewValidationError("product_id", "product ID is required")
	}
	if target.IsNegative() {
		return nil, domain.NewValidationError("quantity", "quantity must be a non-negative number")
	}

	return s.apply(ctx, productID, func(product domain.Product) (domain.TransactionRequest, error) {
		req := domain.TransactionRequest{
			ProductID:      productID,
			Type:           domain.TransactionAdjustment,
			QuantityChange: target.Sub(product.CurrentQuantity),
			Notes:          orDefault(reason, defaultSetNotes),
			PerformedBy:    orDefault(performedBy, defaultPerformedBy),
		}
		return req, req.Validate()
	})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
