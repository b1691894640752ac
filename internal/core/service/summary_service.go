package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	DefaultSummaryTTL      = 15 * time.Second
	DefaultActivityLimit   = 10
	recentTransactionsSpan = 24 * time.Hour
	summaryComputeTimeout  = 10 * time.Second
)

// SummaryService serves the dashboard projections. The stock summary is
// cached for a short TTL and may lag the ledger by at most that long.
type SummaryService struct {
	db    port.DatabaseRepository
	cache port.CacheRepository
	ttl   time.Duration
	log   logrus.FieldLogger
	group singleflight.Group

	now func() time.Time
}

func NewSummaryService(db port.DatabaseRepository, cache port.CacheRepository, ttl time.Duration, log logrus.FieldLogger) *SummaryService {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SummaryService{
		db:    db,
		cache: cache,
		ttl:   ttl,
		log:   log,
		now:   time.Now,
	}
}

// Summary returns the dashboard totals, from cache when fresh.
func (s *SummaryService) Summary(ctx context.Context) (*domain.StockSummary, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetSummary(ctx)
		if err != nil {
			s.log.WithError(err).Warn("summary cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	v, err, _ := s.group.Do("summary", func() (any, error) {
		// callers collapsed onto this flight share its result, so it is not bound to ctx
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryComputeTimeout)
		defer cancel()

		summary, err := s.computeSummary(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetSummary(ctx, *summary, s.ttl); err != nil {
				s.log.WithError(err).Warn("summary cache write failed")
			}
		}
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.StockSummary), nil
}

func (s *SummaryService) computeSummary(ctx context.Context) (*domain.StockSummary, error) {
	products, err := s.db.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	categories, err := s.db.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	now := s.now()
	recent, err := s.db.CountEntriesSince(ctx, now.Add(-recentTransactionsSpan))
	if err != nil {
		return nil, fmt.Errorf("count recent entries: %w", err)
	}

	active := lo.CountBy(categories, func(c domain.Category) bool { return c.IsActive })
	summary := domain.Summarize(products, active, recent, now)
	return &summary, nil
}

func (s *SummaryService) CategorySummaries(ctx context.Context) ([]domain.CategorySummary, error) {
	categories, products, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return domain.SummarizeCategories(categories, products), nil
}

func (s *SummaryService) StockStatus(ctx context.Context) (*domain.StockStatus, error) {
	categories, products, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	status := domain.BuildStockStatus(categories, products)
	return &status, nil
}

func (s *SummaryService) RecentActivity(ctx context.Context, limit int) ([]domain.Activity, error) {
	entries, err := s.db.RecentEntries(ctx, clampLimit(limit, DefaultActivityLimit))
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	return lo.Map(entries, func(e domain.LedgerEntry, _ int) domain.Activity { return domain.ActivityFrom(e) }), nil
}

// Invalidate drops the cached summary so the next read recomputes it.
func (s *SummaryService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateSummary(ctx)
}

func (s *SummaryService) catalog(ctx context.Context) ([]domain.Category, []domain.Product, error) {
	categories, err := s.db.ListCategories(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list categories: %w", err)
	}
	products, err := s.db.ListProducts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list products: %w", err)
	}
	return categories, products, nil
}
