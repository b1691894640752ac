package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	DefaultStorageTimeout     = 5 * time.Second
	DefaultMaxConflictRetries = 5

	idempotencyKeyPrefix = "idempotency:"
	publishTimeout       = 2 * time.Second
)

type LedgerConfig struct {
	// StorageTimeout bounds one whole transaction, all conflict retries included.
	StorageTimeout time.Duration
	// MaxConflictRetries is how often a version conflict is re-evaluated before giving up.
	MaxConflictRetries int
}

// LedgerService applies quantity changes to products, writing one ledger entry per change.
type LedgerService struct {
	db     port.DatabaseRepository
	cache  port.CacheRepository
	events port.EventPublisher
	log    logrus.FieldLogger
	cfg    LedgerConfig
	locks  *productLocks

	now   func() time.Time
	newID func() string
}

func NewLedgerService(
	db port.DatabaseRepository,
	cache port.CacheRepository,
	events port.EventPublisher,
	cfg LedgerConfig,
	log logrus.FieldLogger,
) *LedgerService {
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = DefaultStorageTimeout
	}
	if cfg.MaxConflictRetries <= 0 {
		cfg.MaxConflictRetries = DefaultMaxConflictRetries
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &LedgerService{
		db:     db,
		cache:  cache,
		events: events,
		log:    log,
		cfg:    cfg,
		locks:  newProductLocks(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// RecordTransaction applies req.QuantityChange to the product and returns the committed entry.
func (s *LedgerService) RecordTransaction(ctx context.Context, req domain.TransactionRequest) (*domain.LedgerEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return s.apply(ctx, req.ProductID, func(domain.Product) (domain.TransactionRequest, error) {
		return req, nil
	})
}

// apply runs read, compute, guard and commit for one product. build derives the
// request from the freshly read product, so a version conflict re-evaluates it.
func (s *LedgerService) apply(
	ctx context.Context,
	productID string,
	build func(product domain.Product) (domain.TransactionRequest, error),
) (*domain.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()

	unlock, err := s.locks.acquire(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("wait for product %s: %w", productID, err)
	}
	defer unlock()

	for attempt := 0; attempt <= s.cfg.MaxConflictRetries; attempt++ {
		product, err := s.db.GetProduct(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return nil, domain.ErrProductNotFound
		}

		req, err := build(*product)
		if err != nil {
			return nil, err
		}

		entry, err := domain.NewLedgerEntry(s.newID(), req, product.CurrentQuantity, s.now())
		if err != nil {
			return nil, err
		}

		err = s.db.CommitEntry(ctx, entry, product.Version)
		if errors.Is(err, port.ErrOptimisticLock) {
			s.log.WithFields(logrus.Fields{
				"product_id": productID,
				"attempt":    attempt + 1,
			}).Debug("product changed concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("commit ledger entry: %w", err)
		}

		summary := product.Summary()
		entry.Product = &summary

		s.log.WithFields(logrus.Fields{
			"entry_id":         entry.ID,
			"product_id":       productID,
			"transaction_type": entry.TransactionType,
			"quantity_change":  entry.QuantityChange.String(),
			"new_quantity":     entry.NewQuantity.String(),
		}).Info("stock transaction recorded")

		s.publish(ctx, entry, *product)
		return &entry, nil
	}

	return nil, fmt.Errorf("%w: product %s kept changing concurrently", domain.ErrConflict, productID)
}

func (s *LedgerService) publish(ctx context.Context, entry domain.LedgerEntry, product domain.Product) {
	if s.events == nil {
		return
	}

	// the entry is committed; a slow or cancelled caller must not drop the event
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.events.PublishTransactionRecorded(ctx, domain.TransactionRecorded{
		Entry:        entry,
		ProductName:  product.Name,
		Unit:         product.Unit,
		MinimumStock: product.MinimumStock,
	})
	if err != nil {
		s.log.WithError(err).WithField("entry_id", entry.ID).Warn("failed to publish transaction event")
	}
}

// Idempotent runs fn once per key. A repeated key fails with ErrDuplicateRequest;
// the key is released again when fn fails so the caller may resubmit.
func (s *LedgerService) Idempotent(
	ctx context.Context,
	key string,
	fn func(ctx context.Context) (*domain.LedgerEntry, error),
) (*domain.LedgerEntry, error) {
	if key == "" || s.cache == nil {
		return fn(ctx)
	}

	key = idempotencyKeyPrefix + key
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}

	entry, err := fn(ctx)
	if err != nil {
		if releaseErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); releaseErr != nil {
			s.log.WithError(releaseErr).WithField("key", key).Warn("failed to release idempotency key")
		}
		return nil, err
	}
	return entry, nil
}
