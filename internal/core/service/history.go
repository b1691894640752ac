package service

import (
	"context"
	"fmt"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const (
	DefaultHistoryLimit = 50
	DefaultRecentLimit  = 20
	MaxListLimit        = 500
)

// ProductHistory returns the product's ledger entries, most recent first.
func (s *LedgerService) ProductHistory(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	if productID == "" {
		return nil, domain.NewValidationError("product_id", "product ID is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()

	product, err := s.db.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	entries, err := s.db.ProductHistory(ctx, productID, clampLimit(limit, DefaultHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("product history: %w", err)
	}
	return entries, nil
}

// RecentTransactions returns the latest entries across all products.
func (s *LedgerService) RecentTransactions(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()

	entries, err := s.db.RecentEntries(ctx, clampLimit(limit, DefaultRecentLimit))
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	return entries, nil
}

func clampLimit(limit, fallback int) int {
	switch {
	case limit <= 0:
		return fallback
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
