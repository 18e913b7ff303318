package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/config"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/database"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/logging"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources/companies"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources/grants"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/routes"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/session"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.MigrateCore(database.DB); err != nil {
		slog.Error("core migration failed", "error", err)
		os.Exit(1)
	}

	// Owned resource kinds follow their owner through merges
	kinds := resources.NewRegistry(companies.New(), grants.New())
	if err := database.MigrateModels(database.DB, kinds.Models()); err != nil {
		slog.Error("resource migration failed", "error", err)
		os.Exit(1)
	}
	for _, k := range kinds.Kinds() {
		slog.Info("resource kind registered", "kind", k.ID())
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	logger := logging.Install("unified-identity", pgLogHandler)

	// Background jobs
	done := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, done)

	engine := services.NewEngine(database.DB, cfg, kinds, logger)
	services.StartTokenSweeper(engine.Tokens, cfg.TokenSweepInterval, done)

	// Handlers
	authHandler := handlers.NewAuthHandler(engine.Auth)
	healthHandler := handlers.NewHealthHandler(database.Ping)
	userHandler := handlers.NewUserHandler(engine.Accounts)
	sessionHandler := handlers.NewSessionHandler(engine.Auth, engine.Accounts, session.NewGuard(cfg.LoginURL))
	adminHandler := handlers.NewAdminHandler(engine.Accounts)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, database.DB, authHandler, healthHandler, userHandler, sessionHandler, adminHandler, engine.Accounts, kinds)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(done)
	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error",
			"method", c.Method(),
			"path", c.Path(),
			"trace_id", c.GetRespHeader(fiber.HeaderXRequestID),
			"error", err.Error(),
		)
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"code":    errorCode(code),
		"message": message,
	})
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		if status >= 500 {
			return "INTERNAL"
		}
		return "ERROR"
	}
}
