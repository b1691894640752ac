package handler

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
)

const APIPrefix = "/api/v1"

type AppConfig struct {
	CORSOrigins string
	// RateLimit is the number of requests per minute allowed per client IP; zero disables it.
	RateLimit int
	// AccessLog receives one line per request; nil disables request logging.
	AccessLog io.Writer
}

// NewApp builds the fiber application serving h under APIPrefix.
func NewApp(h *HTTPHandler, cfg AppConfig, log logrus.FieldLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "stock-ledger",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(log),

		// route params and headers are handed to stores that outlive the request
		Immutable: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	if cfg.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
			Output: cfg.AccessLog,
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: orDefault(cfg.CORSOrigins, "*"),
		AllowHeaders: "Origin, Content-Type, Accept, " + idempotencyHeader,
	}))
	if cfg.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(Response{Error: "Rate limit exceeded"})
			},
		}))
	}

	h.Register(app.Group(APIPrefix))
	return app
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
