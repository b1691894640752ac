package main

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/port"
)

func main() {
	app := &cli.App{
		Name:  "stress_test",
		Usage: "race concurrent stock-outs against one product and check the ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database-url", EnvVars: []string{"DATABASE_URL"}, Usage: "postgres DSN, empty runs in memory"},
			&cli.IntFlag{Name: "initial-stock", Value: 20},
			&cli.IntFlag{Name: "requests", Value: 50},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("stress test failed")
	}
}

func run(c *cli.Context) error {
	ctx := c.Context
	initialStock := c.Int("initial-stock")
	totalRequests := c.Int("requests")

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	var db port.DatabaseRepository = storage.NewMemoryAdapter()
	if dsn := c.String("database-url"); dsn != "" {
		pool, err := storage.ConnectPostgres(ctx, dsn, int32(totalRequests))
		if err != nil {
			return err
		}
		defer pool.Close()
		pg := storage.NewPostgresAdapter(pool)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		db = pg
	}

	catalog := service.NewCatalogService(db, log)
	category, err := catalog.CreateCategory(ctx, service.NewCategory{Name: fmt.Sprintf("stress-%d", time.Now().UnixNano())})
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	product, err := catalog.CreateProduct(ctx, domain.NewProduct{
		CategoryID:      category.ID,
		Name:            "Stress flour",
		Unit:            "kg",
		InitialQuantity: decimal.NewFromInt(int64(initialStock)),
	})
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	ledger := service.NewLedgerService(db, storage.NewMemoryCache(), nil, service.LedgerConfig{
		StorageTimeout:     30 * time.Second,
		MaxConflictRetries: totalRequests,
	}, log)

	var successCount, insufficientCount, otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(client int) {
			defer wg.Done()

			_, err := ledger.StockOut(ctx, service.StockMovement{
				ProductID:   product.ID,
				Quantity:    decimal.NewFromInt(1),
				PerformedBy: fmt.Sprintf("client-%d", client),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInvalidState):
				insufficientCount.Add(1)
			default:
				otherCount.Add(1)
				log.WithError(err).Error("unexpected stock-out failure")
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int(successCount.Load())
	insufficient := int(insufficientCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Insufficient:     %d\n", insufficient)
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	expected := min(initialStock, totalRequests)
	if success == expected && insufficient == totalRequests-expected {
		fmt.Printf("PASS: exactly %d stock-outs succeeded\n", expected)
	} else {
		fmt.Printf("FAIL: expected %d success/%d insufficient, got %d/%d\n",
			expected, totalRequests-expected, success, insufficient)
	}

	final, err := db.GetProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Final Quantity:   %s\n", final.CurrentQuantity)

	wantFinal := decimal.NewFromInt(int64(initialStock - success))
	if final.CurrentQuantity.Equal(wantFinal) {
		fmt.Printf("PASS: quantity is %s\n", wantFinal)
	} else {
		fmt.Printf("FAIL: expected quantity %s, got %s\n", wantFinal, final.CurrentQuantity)
	}

	history, err := ledger.ProductHistory(ctx, product.ID, service.MaxListLimit)
	if err != nil {
		return err
	}
	broken := 0
	for _, e := range history {
		if !e.Reconciles() {
			broken++
		}
	}
	if len(history) == success && broken == 0 {
		fmt.Printf("PASS: %d ledger entries, all reconcile\n", len(history))
	} else {
		fmt.Printf("FAIL: %d ledger entries, %d do not reconcile\n", len(history), broken)
	}
	return nil
}
