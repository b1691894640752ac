package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/stock-ledger/internal/adapter/handler"
	"github.com/rl1809/stock-ledger/internal/config"
)

const shutdownTimeout = 5 * time.Second

func main() {
	app := &cli.App{
		Name:   "stock-ledger",
		Usage:  "restaurant stock ledger API",
		Flags:  config.Flags(),
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and gRPC servers",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create the database schema",
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("stock-ledger exited")
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}
	log := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.router.Run(ctx)
	})

	accessLog := log.WriterLevel(logrus.DebugLevel)
	defer accessLog.Close()

	app := handler.NewApp(deps.httpHandler, handler.AppConfig{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		AccessLog:   accessLog,
	}, log)

	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		return app.Listen(cfg.HTTPAddr)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down HTTP server")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if cfg.GRPCAddr != "" {
		grpcServer := grpc.NewServer()
		handler.RegisterLedgerServer(grpcServer, handler.NewGRPCHandler(deps.ledger))
		healthServer := health.NewServer()
		healthServer.SetServingStatus(handler.LedgerServiceName, healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcServer, healthServer)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
		}

		g.Go(func() error {
			log.WithField("addr", cfg.GRPCAddr).Info("gRPC server listening")
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			healthServer.Shutdown()
			grpcServer.GracefulStop()
			log.Info("gRPC server stopped")
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stock-ledger stopped")
	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}
	log := cfg.NewLogger()

	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()

	db, closeDB, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	m, ok := db.(migrator)
	if !ok {
		log.WithField("driver", cfg.DBDriver).Info("driver keeps no schema, nothing to migrate")
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return err
	}
	log.WithField("driver", cfg.DBDriver).Info("schema applied")
	return nil
}
