package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/config"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	users middleware.UserLoader,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	contentHandler *handlers.ContentHandler,
	moderationHandler *handlers.ModerationHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Protected routes load the caller's user record on every request.
	// Middleware is attached per route so public routes stay untouched.
	jwt := middleware.JWTProtected(cfg)
	current := middleware.CurrentUser(users)
	protect := func(h fiber.Handler) []fiber.Handler {
		return []fiber.Handler{jwt, current, h}
	}

	api.Get("/me", protect(authHandler.Me)...)

	api.Get("/c/:collection", protect(contentHandler.List)...)
	api.Post("/c/:collection", protect(contentHandler.Create)...)
	api.Put("/c/:collection/:id", protect(contentHandler.Update)...)
	api.Delete("/c/:collection/:id", protect(contentHandler.Delete)...)

	api.Get("/threads/:kind/:parent/replies", protect(contentHandler.List)...)
	api.Post("/threads/:kind/:parent/replies", protect(contentHandler.Create)...)
	api.Put("/threads/:kind/:parent/replies/:id", protect(contentHandler.Update)...)
	api.Delete("/threads/:kind/:parent/replies/:id", protect(contentHandler.Delete)...)

	api.Post("/reports", protect(moderationHandler.CreateReport)...)

	// Admin panel (protected + admin required)
	admin := api.Group("/admin", jwt, current, middleware.AdminRequired())
	admin.Get("/users", moderationHandler.ListUsers)
	admin.Get("/users/:id", moderationHandler.GetUser)
	admin.Post("/users/:id/:action", moderationHandler.Transition)

	// Report queue (protected + moderator or admin)
	staff := api.Group("/moderation", jwt, current, middleware.StaffRequired())
	staff.Get("/reports", moderationHandler.ListReports)
	staff.Put("/reports/:id", moderationHandler.ActionReport)
}
