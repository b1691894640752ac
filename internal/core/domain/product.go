package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuantityScale is the number of fractional digits a stock quantity may carry.
const QuantityScale = 3

type Product struct {
	ID              string              `json:"id" db:"id"`
	CategoryID      string              `json:"category_id" db:"category_id"`
	Name            string              `json:"name" db:"name"`
	SKU             *string             `json:"sku,omitempty" db:"sku"`
	Unit            string              `json:"unit" db:"unit"`
	CurrentQuantity decimal.Decimal     `json:"current_quantity" db:"current_quantity"`
	MinimumStock    decimal.Decimal     `json:"minimum_stock" db:"minimum_stock"`
	CostPrice       decimal.NullDecimal `json:"cost_price" db:"cost_price"`
	IsActive        bool                `json:"is_active" db:"is_active"`
	Version         int64               `json:"-" db:"version"` // optimistic locking
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// ProductSummary is the product slice joined onto ledger entries.
type ProductSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

func (p Product) Summary() ProductSummary {
	return ProductSummary{ID: p.ID, Name: p.Name, Unit: p.Unit}
}

func (p Product) IsOutOfStock() bool {
	return p.CurrentQuantity.IsZero()
}

// IsLowStock reports a positive quantity at or below the minimum stock level.
func (p Product) IsLowStock() bool {
	return p.CurrentQuantity.IsPositive() && p.CurrentQuantity.LessThanOrEqual(p.MinimumStock)
}

// StockValue is quantity times cost price; products without a cost price are worth zero.
func (p Product) StockValue() decimal.Decimal {
	if !p.CostPrice.Valid {
		return decimal.Zero
	}
	return p.CurrentQuantity.Mul(p.CostPrice.Decimal)
}

// NewProduct carries the fields a caller may set when registering a product.
type NewProduct struct {
	CategoryID      string              `json:"category_id"`
	Name            string              `json:"name"`
	SKU             string              `json:"sku"`
	Unit            string              `json:"unit"`
	InitialQuantity decimal.Decimal     `json:"current_quantity"`
	MinimumStock    decimal.Decimal     `json:"minimum_stock"`
	CostPrice       decimal.NullDecimal `json:"cost_price"`
}

func (n NewProduct) Validate() error {
	switch {
	case n.CategoryID == "":
		return NewValidationError("category_id", "category ID is required")
	case n.Name == "":
		return NewValidationError("name", "name is required")
	case n.Unit == "":
		return NewValidationError("unit", "unit is required")
	case n.InitialQuantity.IsNegative():
		return NewValidationError("current_quantity", "quantity must be a non-negative number")
	case n.MinimumStock.IsNegative():
		return NewValidationError("minimum_stock", "minimum stock must be a non-negative number")
	case n.CostPrice.Valid && n.CostPrice.Decimal.IsNegative():
		return NewValidationError("cost_price", "cost price must be a non-negative number")
	case !fitsScale(n.InitialQuantity, QuantityScale) || !fitsScale(n.MinimumStock, QuantityScale):
		return NewValidationError("current_quantity", "quantities support at most %d decimal places", QuantityScale)
	}
	return nil
}

type Category struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	SortOrder   int       `json:"sort_order" db:"sort_order"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}
