package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// Columns selected for a ledger entry joined with its product. Both SQL
// adapters scan them into entryRow by db tag.
const entryColumns = `
	h.id, h.product_id, h.transaction_type, h.quantity_change,
	h.previous_quantity, h.new_quantity, h.unit_cost, h.total_cost,
	COALESCE(h.reference_number, '') AS reference_number,
	COALESCE(h.notes, '') AS notes,
	COALESCE(h.performed_by, '') AS performed_by,
	h.transaction_date, h.metadata,
	p.name AS product_name, p.unit AS product_unit`

const productColumns = `
	id, category_id, name, sku, unit, current_quantity, minimum_stock,
	cost_price, is_active, version, created_at, updated_at`

const categoryColumns = `id, name, description, sort_order, is_active, created_at, updated_at`

type entryRow struct {
	ID               string              `db:"id"`
	ProductID        string              `db:"product_id"`
	TransactionType  string              `db:"transaction_type"`
	QuantityChange   decimal.Decimal     `db:"quantity_change"`
	PreviousQuantity decimal.Decimal     `db:"previous_quantity"`
	NewQuantity      decimal.Decimal     `db:"new_quantity"`
	UnitCost         decimal.NullDecimal `db:"unit_cost"`
	TotalCost        decimal.NullDecimal `db:"total_cost"`
	ReferenceNumber  string              `db:"reference_number"`
	Notes            string              `db:"notes"`
	PerformedBy      string              `db:"performed_by"`
	TransactionDate  time.Time           `db:"transaction_date"`
	Metadata         []byte              `db:"metadata"`
	ProductName      string              `db:"product_name"`
	ProductUnit      string              `db:"product_unit"`
}

func (r entryRow) toDomain() (domain.LedgerEntry, error) {
	metadata, err := domain.UnmarshalMetadata(r.Metadata)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("decode metadata of entry %s: %w", r.ID, err)
	}

	return domain.LedgerEntry{
		ID:               r.ID,
		ProductID:        r.ProductID,
		TransactionType:  domain.TransactionType(r.TransactionType),
		QuantityChange:   r.QuantityChange,
		PreviousQuantity: r.PreviousQuantity,
		NewQuantity:      r.NewQuantity,
		UnitCost:         r.UnitCost,
		TotalCost:        r.TotalCost,
		ReferenceNumber:  r.ReferenceNumber,
		Notes:            r.Notes,
		PerformedBy:      r.PerformedBy,
		TransactionDate:  r.TransactionDate.UTC(),
		Metadata:         metadata,
		Product: &domain.ProductSummary{
			ID:   r.ProductID,
			Name: r.ProductName,
			Unit: r.ProductUnit,
		},
	}, nil
}

func entriesFromRows(rows []entryRow) ([]domain.LedgerEntry, error) {
	entries := make([]domain.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
