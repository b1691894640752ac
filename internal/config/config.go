package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	DBDriver    string
	DatabaseURL string
	DBMaxConns  int
	RedisAddr   string

	StorageTimeout     time.Duration
	MaxConflictRetries int
	SummaryCacheTTL    time.Duration

	CORSOrigins string
	RateLimit   int

	LogLevel  string
	LogFormat string
}

// Flags returns the command-line flags; each one falls back to its environment variable.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "http-addr", Value: ":8080", EnvVars: []string{"HTTP_ADDR"}, Usage: "HTTP listen address"},
		&cli.StringFlag{Name: "grpc-addr", Value: ":50051", EnvVars: []string{"GRPC_ADDR"}, Usage: "gRPC listen address, empty disables gRPC"},
		&cli.StringFlag{Name: "db-driver", Value: DriverPostgres, EnvVars: []string{"DB_DRIVER"}, Usage: "postgres, mysql or memory"},
		&cli.StringFlag{Name: "database-url", EnvVars: []string{"DATABASE_URL"}, Usage: "database DSN"},
		&cli.IntFlag{Name: "db-max-conns", Value: 50, EnvVars: []string{"DB_MAX_CONNS"}},
		&cli.StringFlag{Name: "redis-addr", EnvVars: []string{"REDIS_ADDR"}, Usage: "Redis address, empty keeps cache and events in process"},
		&cli.DurationFlag{Name: "storage-timeout", Value: 5 * time.Second, EnvVars: []string{"STORAGE_TIMEOUT"}},
		&cli.IntFlag{Name: "max-conflict-retries", Value: 5, EnvVars: []string{"MAX_CONFLICT_RETRIES"}},
		&cli.DurationFlag{Name: "summary-cache-ttl", Value: 15 * time.Second, EnvVars: []string{"SUMMARY_CACHE_TTL"}},
		&cli.StringFlag{Name: "cors-origins", Value: "*", EnvVars: []string{"CORS_ORIGINS"}},
		&cli.IntFlag{Name: "rate-limit", EnvVars: []string{"RATE_LIMIT"}, Usage: "requests per minute per IP, 0 disables"},
		&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		&cli.StringFlag{Name: "log-format", Value: "json", EnvVars: []string{"LOG_FORMAT"}, Usage: "json or text"},
	}
}

func FromContext(c *cli.Context) (Config, error) {
	cfg := Config{
		HTTPAddr:           c.String("http-addr"),
		GRPCAddr:           c.String("grpc-addr"),
		DBDriver:           c.String("db-driver"),
		DatabaseURL:        c.String("database-url"),
		DBMaxConns:         c.Int("db-max-conns"),
		RedisAddr:          c.String("redis-addr"),
		StorageTimeout:     c.Duration("storage-timeout"),
		MaxConflictRetries: c.Int("max-conflict-retries"),
		SummaryCacheTTL:    c.Duration("summary-cache-ttl"),
		CORSOrigins:        c.String("cors-origins"),
		RateLimit:          c.Int("rate-limit"),
		LogLevel:           c.String("log-level"),
		LogFormat:          c.String("log-format"),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverMySQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", c.DBDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.DBDriver)
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("storage timeout must be positive, got %s", c.StorageTimeout)
	}
	if c.MaxConflictRetries < 0 {
		return fmt.Errorf("max conflict retries must not be negative, got %d", c.MaxConflictRetries)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if c.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	return log
}
