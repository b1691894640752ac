package domain

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type StockSummary struct {
	TotalProducts      int             `json:"total_products"`
	TotalCategories    int             `json:"total_categories"`
	OutOfStock         int             `json:"out_of_stock"`
	LowStock           int             `json:"low_stock"`
	TotalValue         decimal.Decimal `json:"total_value"`
	RecentTransactions int             `json:"recent_transactions"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

type CategorySummary struct {
	CategoryID    string          `json:"category_id"`
	CategoryName  string          `json:"category_name"`
	TotalProducts int             `json:"total_products"`
	OutOfStock    int             `json:"out_of_stock"`
	LowStock      int             `json:"low_stock"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

type StockStatusItem struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
}

type StockStatus struct {
	OutOfStock []StockStatusItem `json:"out_of_stock"`
	LowStock   []StockStatusItem `json:"low_stock"`
}

type Activity struct {
	ID              string          `json:"id"`
	Type            TransactionType `json:"type"`
	ProductName     string          `json:"product_name"`
	QuantityChange  decimal.Decimal `json:"quantity_change"`
	Unit            string          `json:"unit"`
	PerformedBy     string          `json:"performed_by"`
	TransactionDate time.Time       `json:"transaction_date"`
	Notes           string          `json:"notes"`
}

func TotalValue(products []Product) decimal.Decimal {
	return lo.Reduce(products, func(sum decimal.Decimal, p Product, _ int) decimal.Decimal {
		return sum.Add(p.StockValue())
	}, decimal.Zero)
}

// Summarize computes the dashboard totals over the given products.
func Summarize(products []Product, activeCategories, recentTransactions int, at time.Time) StockSummary {
	return StockSummary{
		TotalProducts:      len(products),
		TotalCategories:    activeCategories,
		OutOfStock:         lo.CountBy(products, Product.IsOutOfStock),
		LowStock:           lo.CountBy(products, Product.IsLowStock),
		TotalValue:         TotalValue(products),
		RecentTransactions: recentTransactions,
		GeneratedAt:        at.UTC(),
	}
}

// SummarizeCategories groups products under their active categories, in category order.
func SummarizeCategories(categories []Category, products []Product) []CategorySummary {
	byCategory := lo.GroupBy(products, func(p Product) string { return p.CategoryID })

	active := lo.Filter(categories, func(c Category, _ int) bool { return c.IsActive })
	return lo.Map(active, func(c Category, _ int) CategorySummary {
		members := byCategory[c.ID]
		return CategorySummary{
			CategoryID:    c.ID,
			CategoryName:  c.Name,
			TotalProducts: len(members),
			OutOfStock:    lo.CountBy(members, Product.IsOutOfStock),
			LowStock:      lo.CountBy(members, Product.IsLowStock),
			TotalValue:    TotalValue(members),
		}
	})
}

func BuildStockStatus(categories []Category, products []Product) StockStatus {
	names := lo.Associate(categories, func(c Category) (string, string) { return c.ID, c.Name })
	item := func(p Product, _ int) StockStatusItem {
		return StockStatusItem{
			ID:           p.ID,
			Name:         p.Name,
			Category:     names[p.CategoryID],
			Quantity:     p.CurrentQuantity,
			Unit:         p.Unit,
			MinimumStock: p.MinimumStock,
		}
	}

	return StockStatus{
		OutOfStock: lo.Map(lo.Filter(products, func(p Product, _ int) bool { return p.IsOutOfStock() }), item),
		LowStock:   lo.Map(lo.Filter(products, func(p Product, _ int) bool { return p.IsLowStock() }), item),
	}
}

func ActivityFrom(e LedgerEntry) Activity {
	a := Activity{
		ID:              e.ID,
		Type:            e.TransactionType,
		QuantityChange:  e.QuantityChange,
		Unit:            "pcs",
		PerformedBy:     e.PerformedBy,
		TransactionDate: e.TransactionDate,
		Notes:           e.Notes,
	}
	if e.Product != nil {
		a.ProductName = e.Product.Name
		if e.Product.Unit != "" {
			a.Unit = e.Product.Unit
		}
	}
	return a
}
