package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/config"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/database"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/logging"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/routes"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/services"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store/gormstore"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store/sqlitestore"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	backend, db, err := openBackend(cfg)
	if err != nil {
		slog.Error("store backend failed", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	slog.Info("store backend ready", "driver", cfg.StoreDriver)

	var ping func() error
	var pgLogHandler *logging.PGHandler
	cleanupDone := make(chan struct{})
	if db != nil {
		ping = database.Pinger(db)
		// PostgreSQL log handler (ERROR+ async batch)
		pgLogHandler = logging.NewPGHandler(db)
		slog.SetDefault(slog.New(logging.NewMultiHandler(
			logging.NewStdoutHandler(cfg.LogLevel),
			pgLogHandler,
		)))
		logging.StartCleanup(db, cfg.LogRetention, cleanupDone)
	}

	docs := store.NewPushStore(backend, store.WithLogger(slog.Default()))

	// Services
	userService := services.NewUserService(docs, cfg)
	contentService := services.NewContentService(docs, services.NewContentFilter(cfg.Filter))
	moderationService := services.NewModerationService(docs)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService)
	healthHandler := handlers.NewHealthHandler(cfg.StoreDriver, ping)
	contentHandler := handlers.NewContentHandler(docs, contentService, cfg)
	moderationHandler := handlers.NewModerationHandler(moderationService, userService)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
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

	// Sentry middleware
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
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, userService, authHandler, healthHandler, contentHandler, moderationHandler)

	// Live gateway runs on its own net/http listener; fasthttp cannot hijack
	// connections for gorilla/websocket.
	wsServer := &http.Server{
		Addr:              ":" + cfg.WSPort,
		Handler:           gateway.NewServer(docs, userService, cfg, slog.Default()).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

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

	go func() {
		slog.Info("live gateway starting", "port", cfg.WSPort)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("live gateway failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	// Hijacked websocket connections are not tracked by Shutdown; closing
	// the push store ends their subscriptions.
	if err := wsServer.Shutdown(ctx); err != nil {
		slog.Error("live gateway shutdown error", "error", err)
	}
	if err := docs.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	close(cleanupDone)
	if pgLogHandler != nil {
		pgLogHandler.Stop()
	}
	sentry.Flush(2 * time.Second)

	// Close database connections
	if db != nil {
		if err := database.Close(db); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

// openBackend selects the document backend for STORE_DRIVER. The Postgres
// driver also returns its connection, shared with the system log handler.
func openBackend(cfg *config.Config) (store.Backend, *gorm.DB, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		slog.Warn("memory store selected; data is lost on restart")
		return store.NewMemoryBackend(), nil, nil

	case config.DriverSQLite:
		b, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil

	case config.DriverPostgres:
		if cfg.DBPassword == "" {
			return nil, nil, errors.New("DB_PASSWORD environment variable is required")
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		db, err := database.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(db); err != nil {
			return nil, nil, err
		}
		return gormstore.New(db, slog.Default()), db, nil
	}
	return nil, nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
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
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
