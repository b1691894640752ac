package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// CatalogService manages categories and products. Quantities are never
// changed here after creation; that is the ledger's job.
type CatalogService struct {
	db  port.DatabaseRepository
	log logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

func NewCatalogService(db port.DatabaseRepository, log logrus.FieldLogger) *CatalogService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CatalogService{
		db:    db,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

type NewCategory struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
}

func (s *CatalogService) CreateCategory(ctx context.Context, in NewCategory) (*domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "name is required")
	}

	now := s.now().UTC()
	category := domain.Category{
		ID:          s.newID(),
		Name:        name,
		Description: in.Description,
		SortOrder:   in.SortOrder,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.log.WithField("category_id", category.ID).Info("category created")
	return &category, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.db.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CreateProduct registers a product. The initial quantity is an opening
// balance and does not produce a ledger entry.
func (s *CatalogService) CreateProduct(ctx context.Context, in domain.NewProduct) (*domain.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	categories, err := s.db.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if !lo.ContainsBy(categories, func(c domain.Category) bool { return c.ID == in.CategoryID }) {
		return nil, fmt.Errorf("category %s: %w", in.CategoryID, domain.ErrNotFound)
	}

	now := s.now().UTC()
	product := domain.Product{
		ID:              s.newID(),
		CategoryID:      in.CategoryID,
		Name:            in.Name,
		Unit:            in.Unit,
		CurrentQuantity: in.InitialQuantity,
		MinimumStock:    in.MinimumStock,
		CostPrice:       in.CostPrice,
		IsActive:        true,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.SKU != "" {
		sku := in.SKU
		product.SKU = &sku
	}

	if err := s.db.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"product_id": product.ID,
		"quantity":   product.CurrentQuantity.String(),
	}).Info("product created")
	return &product, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.db.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

// LowStock returns products with a positive quantity at or below their minimum.
func (s *CatalogService) LowStock(ctx context.Context) ([]domain.Product, error) {
	return s.filterProducts(ctx, domain.Product.IsLowStock)
}

func (s *CatalogService) OutOfStock(ctx context.Context) ([]domain.Product, error) {
	return s.filterProducts(ctx, domain.Product.IsOutOfStock)
}

func (s *CatalogService) filterProducts(ctx context.Context, keep func(domain.Product) bool) ([]domain.Product, error) {
	products, err := s.db.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return lo.Filter(products, func(p domain.Product, _ int) bool { return keep(p) }), nil
}
