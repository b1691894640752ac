package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIn         TransactionType = "IN"
	TransactionOut        TransactionType = "OUT"
	TransactionAdjustment TransactionType = "ADJUSTMENT"
	TransactionWaste      TransactionType = "WASTE"
	TransactionTransfer   TransactionType = "TRANSFER"
)

const unitCostScale = 4

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIn, TransactionOut, TransactionAdjustment, TransactionWaste, TransactionTransfer:
		return true
	}
	return false
}

// Metadata is an opaque key-value bag attached to a ledger entry.
type Metadata map[string]any

// MarshalMetadata encodes m for a JSON column; an empty bag is stored as NULL.
func MarshalMetadata(m Metadata) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func UnmarshalMetadata(raw []byte) (Metadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// LedgerEntry is one immutable quantity-changing event. PreviousQuantity plus
// QuantityChange always equals NewQuantity.
type LedgerEntry struct {
	ID               string              `json:"id"`
	ProductID        string              `json:"product_id"`
	TransactionType  TransactionType     `json:"transaction_type"`
	QuantityChange   decimal.Decimal     `json:"quantity_change"`
	PreviousQuantity decimal.Decimal     `json:"previous_quantity"`
	NewQuantity      decimal.Decimal     `json:"new_quantity"`
	UnitCost         decimal.NullDecimal `json:"unit_cost"`
	TotalCost        decimal.NullDecimal `json:"total_cost"`
	ReferenceNumber  string              `json:"reference_number,omitempty"`
	Notes            string              `json:"notes,omitempty"`
	PerformedBy      string              `json:"performed_by,omitempty"`
	TransactionDate  time.Time           `json:"transaction_date"`
	Metadata         Metadata            `json:"metadata,omitempty"`

	Product *ProductSummary `json:"product,omitempty"`
}

// TransactionRequest is a caller-submitted quantity change before it is applied.
type TransactionRequest struct {
	ProductID       string
	Type            TransactionType
	QuantityChange  decimal.Decimal
	UnitCost        decimal.NullDecimal
	ReferenceNumber string
	Notes           string
	PerformedBy     string
	Metadata        Metadata
}

func (r TransactionRequest) Validate() error {
	if r.ProductID == "" {
		return NewValidationError("product_id", "product ID is required")
	}
	if r.Type == "" {
		return NewValidationError("transaction_type", "transaction type is required")
	}
	if !r.Type.Valid() {
		return NewValidationError("transaction_type", "invalid transaction type %q", r.Type)
	}
	if !fitsScale(r.QuantityChange, QuantityScale) {
		return NewValidationError("quantity_change", "quantity change supports at most %d decimal places", QuantityScale)
	}
	if r.UnitCost.Valid {
		if r.UnitCost.Decimal.IsNegative() {
			return NewValidationError("unit_cost", "unit cost must be a non-negative number")
		}
		if !fitsScale(r.UnitCost.Decimal, unitCostScale) {
			return NewValidationError("unit_cost", "unit cost supports at most %d decimal places", unitCostScale)
		}
	}
	return nil
}

// NewLedgerEntry builds the persistable record for r applied on top of previous.
// It returns ErrBelowZero when the result would be negative.
func NewLedgerEntry(id string, r TransactionRequest, previous decimal.Decimal, at time.Time) (LedgerEntry, error) {
	next := previous.Add(r.QuantityChange)
	if next.IsNegative() {
		return LedgerEntry{}, ErrBelowZero
	}

	entry := LedgerEntry{
		ID:               id,
		ProductID:        r.ProductID,
		TransactionType:  r.Type,
		QuantityChange:   r.QuantityChange,
		PreviousQuantity: previous,
		NewQuantity:      next,
		UnitCost:         r.UnitCost,
		ReferenceNumber:  r.ReferenceNumber,
		Notes:            r.Notes,
		PerformedBy:      r.PerformedBy,
		TransactionDate:  at.UTC(),
		Metadata:         r.Metadata,
	}
	if r.UnitCost.Valid {
		entry.TotalCost = decimal.NewNullDecimal(r.UnitCost.Decimal.Mul(r.QuantityChange.Abs()))
	}
	return entry, nil
}

// Reconciles reports whether the entry's quantities add up.
func (e LedgerEntry) Reconciles() bool {
	return e.PreviousQuantity.Add(e.QuantityChange).Equal(e.NewQuantity)
}

// TransactionRecorded is published after a ledger entry and its quantity update commit.
type TransactionRecorded struct {
	Entry        LedgerEntry     `json:"entry"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
}
