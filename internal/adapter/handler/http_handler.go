package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

const (
	idempotencyHeader = "Idempotency-Key"
	healthTimeout     = 2 * time.Second

	msgBelowZero         = "Cannot reduce quantity below zero"
	msgInsufficientStock = "Insufficient stock available"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	ledger  *service.LedgerService
	catalog *service.CatalogService
	summary *service.SummaryService
	db      Pinger
	log     logrus.FieldLogger
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func NewHTTPHandler(
	ledger *service.LedgerService,
	catalog *service.CatalogService,
	summary *service.SummaryService,
	db Pinger,
	log logrus.FieldLogger,
) *HTTPHandler {
	return &HTTPHandler{
		ledger:  ledger,
		catalog: catalog,
		summary: summary,
		db:      db,
		log:     log,
	}
}

// Register mounts the API routes on r.
func (h *HTTPHandler) Register(r fiber.Router) {
	r.Get("/health", h.HealthCheck)

	tx := r.Group("/transactions")
	tx.Post("/", h.RecordTransaction)
	tx.Post("/stock-in", h.StockIn)
	tx.Post("/stock-out", h.StockOut)
	tx.Post("/waste", h.RecordWaste)
	tx.Post("/adjustment", h.RecordAdjustment)
	tx.Get("/recent", h.RecentTransactions)

	products := r.Group("/products")
	products.Post("/", h.CreateProduct)
	products.Get("/low-stock", h.LowStock)
	products.Get("/out-of-stock", h.OutOfStock)
	products.Get("/:id", h.GetProduct)
	products.Get("/:id/history", h.ProductHistory)
	products.Post("/:id/adjust", h.AdjustProduct)
	products.Post("/:id/quantity", h.SetQuantity)

	categories := r.Group("/categories")
	categories.Post("/", h.CreateCategory)
	categories.Get("/", h.ListCategories)

	dashboard := r.Group("/dashboard")
	dashboard.Get("/summary", h.DashboardSummary)
	dashboard.Get("/categories", h.DashboardCategories)
	dashboard.Get("/stock-status", h.DashboardStockStatus)
	dashboard.Get("/recent-activity", h.DashboardRecentActivity)
}

func (h *HTTPHandler) RecordTransaction(c *fiber.Ctx) error {
	var body TransactionBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}
	req, err := body.toRequest()
	if err != nil {
		return err
	}

	entry, err := h.ledger.Idempotent(c.UserContext(), c.Get(idempotencyHeader), func(ctx context.Context) (*domain.LedgerEntry, error) {
		return h.ledger.RecordTransaction(ctx, req)
	})
	if err != nil {
		return err
	}
	return created(c, entry, "Transaction recorded")
}

func (h *HTTPHandler) StockIn(c *fiber.Ctx) error {
	var body MovementBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}

	entry, err := h.ledger.Idempotent(c.UserContext(), c.Get(idempotencyHeader), func(ctx context.Context) (*domain.LedgerEntry, error) {
		return h.ledger.StockIn(ctx, body.toMovement())
	})
	if err != nil {
		return err
	}
	return created(c, entry, "Stock added")
}

func (h *HTTPHandler) StockOut(c *fiber.Ctx) error {
	var body MovementBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}

	entry, err := h.ledger.Idempotent(c.UserContext(), c.Get(idempotencyHeader), func(ctx context.Context) (*domain.LedgerEntry, error) {
		return h.ledger.StockOut(ctx, body.toMovement())
	})
	if err != nil {
		return insufficientStock(err)
	}
	return created(c, entry, "Stock removed")
}

func (h *HTTPHandler) RecordWaste(c *fiber.Ctx) error {
	var body MovementBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}

	entry, err := h.ledger.Idempotent(c.UserContext(), c.Get(idempotencyHeader), func(ctx context.Context) (*domain.LedgerEntry, error) {
		return h.ledger.RecordWaste(ctx, body.toMovement())
	})
	if err != nil {
		return insufficientStock(err)
	}
	return created(c, entry, "Waste recorded")
}

func (h *HTTPHandler) RecordAdjustment(c *fiber.Ctx) error {
	var body AdjustmentBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}
	return h.adjust(c, body)
}

func (h *HTTPHandler) AdjustProduct(c *fiber.Ctx) error {
	var body AdjustmentBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}
	body.ProductID = c.Params("id")
	return h.adjust(c, body)
}

func (h *HTTPHandler) adjust(c *fiber.Ctx, body AdjustmentBody) error {
	adj, err := body.toAdjustment()
	if err != nil {
		return err
	}

	entry, err := h.ledger.Idempotent(c.UserContext(), c.Get(idempotencyHeader), func(ctx context.Context) (*domain.LedgerEntry, error) {
		return h.ledger.RecordAdjustment(ctx, adj)
	})
	if err != nil {
		return err
	}
	return created(c, entry, "Stock adjusted")
}

// SetQuantity records an ADJUSTMENT that moves the product to the requested quantity.
func (h *HTTPHandler) SetQuantity(c *fiber.Ctx) error {
	var body SetQuantityBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}
	if body.Quantity == nil {
		return domain.NewValidationError("quantity", "quantity is required")
	}

	entry, err := h.ledger.Idempotent(c.UserContext(), c.Get(idempotencyHeader), func(ctx context.Context) (*domain.LedgerEntry, error) {
		return h.ledger.SetQuantity(ctx, c.Params("id"), *body.Quantity, body.Reason, body.PerformedBy)
	})
	if err != nil {
		return err
	}
	return ok(c, entry, "Quantity updated")
}

func (h *HTTPHandler) RecentTransactions(c *fiber.Ctx) error {
	entries, err := h.ledger.RecentTransactions(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return list(c, entries)
}

func (h *HTTPHandler) ProductHistory(c *fiber.Ctx) error {
	entries, err := h.ledger.ProductHistory(c.UserContext(), c.Params("id"), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return list(c, entries)
}

func (h *HTTPHandler) CreateProduct(c *fiber.Ctx) error {
	var body domain.NewProduct
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}

	product, err := h.catalog.CreateProduct(c.UserContext(), body)
	if err != nil {
		return err
	}
	return created(c, product, "Product created")
}

func (h *HTTPHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.catalog.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, product, "")
}

func (h *HTTPHandler) LowStock(c *fiber.Ctx) error {
	products, err := h.catalog.LowStock(c.UserContext())
	if err != nil {
		return err
	}
	return list(c, products)
}

func (h *HTTPHandler) OutOfStock(c *fiber.Ctx) error {
	products, err := h.catalog.OutOfStock(c.UserContext())
	if err != nil {
		return err
	}
	return list(c, products)
}

func (h *HTTPHandler) CreateCategory(c *fiber.Ctx) error {
	var body service.NewCategory
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}

	category, err := h.catalog.CreateCategory(c.UserContext(), body)
	if err != nil {
		return err
	}
	return created(c, category, "Category created")
}

func (h *HTTPHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return list(c, categories)
}

func (h *HTTPHandler) DashboardSummary(c *fiber.Ctx) error {
	summary, err := h.summary.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, summary, "")
}

func (h *HTTPHandler) DashboardCategories(c *fiber.Ctx) error {
	categories, err := h.summary.CategorySummaries(c.UserContext())
	if err != nil {
		return err
	}
	return list(c, categories)
}

func (h *HTTPHandler) DashboardStockStatus(c *fiber.Ctx) error {
	status, err := h.summary.StockStatus(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, status, "")
}

func (h *HTTPHandler) DashboardRecentActivity(c *fiber.Ctx) error {
	activity, err := h.summary.RecentActivity(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return list(c, activity)
}

func (h *HTTPHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(Response{
			Success: false,
			Error:   "database unavailable",
			Data:    fiber.Map{"status": "unhealthy"},
		})
	}
	return ok(c, fiber.Map{"status": "healthy"}, "")
}

// ErrorHandler maps domain errors onto HTTP status codes and the response envelope.
func ErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, message := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("request failed")
		}
		return c.Status(status).JSON(Response{Success: false, Error: message})
	}
}

func statusFor(err error) (int, string) {
	var fiberErr *fiber.Error
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, validationErr.Message
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrProductNotFound):
		return fiber.StatusNotFound, "Product not found"
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidState):
		return fiber.StatusBadRequest, msgBelowZero
	case errors.Is(err, domain.ErrDuplicateRequest):
		return fiber.StatusConflict, "duplicate request"
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, err.Error()
	}
	return fiber.StatusInternalServerError, "internal error"
}

func insufficientStock(err error) error {
	if errors.Is(err, domain.ErrInvalidState) {
		return fiber.NewError(fiber.StatusBadRequest, msgInsufficientStock)
	}
	return err
}

func invalidBody() error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
}

func created(c *fiber.Ctx, data any, message string) error {
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: data, Message: message})
}

func ok(c *fiber.Ctx, data any, message string) error {
	return c.JSON(Response{Success: true, Data: data, Message: message})
}

func list[T any](c *fiber.Ctx, items []T) error {
	if items == nil {
		items = []T{}
	}
	count := len(items)
	return c.JSON(Response{Success: true, Data: items, Count: &count})
}
