package main

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/stock-ledger/internal/adapter/events"
	"github.com/rl1809/stock-ledger/internal/adapter/handler"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/port"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

type dependencies struct {
	ledger      *service.LedgerService
	httpHandler *handler.HTTPHandler
	router      *message.Router

	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func wire(ctx context.Context, cfg config.Config, log *logrus.Logger) (*dependencies, error) {
	deps := &dependencies{}

	db, closeDB, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, closeDB)
	log.WithField("driver", cfg.DBDriver).Info("connected to database")

	wmLogger := events.NewLogrusAdapter(log.WithField("component", "events"))

	var (
		cache port.CacheRepository
		pub   message.Publisher
		sub   message.Subscriber
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			deps.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		deps.closers = append(deps.closers, func() { rdb.Close() })
		log.WithField("addr", cfg.RedisAddr).Info("connected to redis")

		cache = storage.NewRedisAdapter(rdb)
		pub, sub, err = events.NewRedisPubSub(rdb, wmLogger)
		if err != nil {
			deps.Close()
			return nil, err
		}
	} else {
		log.Info("no redis configured, using in-process cache and events")
		cache = storage.NewMemoryCache()
		pubSub := events.NewGoChannelPubSub(wmLogger)
		pub, sub = pubSub, pubSub
	}
	deps.closers = append(deps.closers, func() {
		if err := pub.Close(); err != nil {
			log.WithError(err).Warn("close publisher")
		}
	})

	deps.ledger = service.NewLedgerService(db, cache, events.NewPublisher(pub), service.LedgerConfig{
		StorageTimeout:     cfg.StorageTimeout,
		MaxConflictRetries: cfg.MaxConflictRetries,
	}, log.WithField("component", "ledger"))
	catalog := service.NewCatalogService(db, log.WithField("component", "catalog"))
	summary := service.NewSummaryService(db, cache, cfg.SummaryCacheTTL, log.WithField("component", "summary"))

	deps.router, err = events.NewRouter(sub, events.NewAlertHandler(summary, log.WithField("component", "alerts")), wmLogger)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.httpHandler = handler.NewHTTPHandler(deps.ledger, catalog, summary, db, log.WithField("component", "http"))
	return deps, nil
}

func openDatabase(ctx context.Context, cfg config.Config) (port.DatabaseRepository, func(), error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := storage.ConnectPostgres(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
		if err != nil {
			return nil, nil, err
		}
		return storage.NewPostgresAdapter(pool), pool.Close, nil
	case config.DriverMySQL:
		db, err := storage.ConnectMySQL(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(cfg.DBMaxConns)
		db.SetMaxIdleConns(cfg.DBMaxConns / 2)
		return storage.NewMySQLAdapter(db), func() { db.Close() }, nil
	case config.DriverMemory:
		return storage.NewMemoryAdapter(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
}
