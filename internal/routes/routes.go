package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/config"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	userHandler *handlers.UserHandler,
	sessionHandler *handlers.SessionHandler,
	adminHandler *handlers.AdminHandler,
	resolver middleware.RootResolver,
	kinds *resources.Registry,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Session reconciliation reads an optional bearer token itself
	api.Get("/session/reconcile", sessionHandler.Reconcile)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/login", middleware.GatewayRequired(cfg), authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", middleware.JWTProtected(cfg), authHandler.Logout)

	// Signed-in caller, resolved to the current root account
	user := api.Group("/user", middleware.JWTProtected(cfg), middleware.ResolveCaller(resolver))
	user.Get("/unified", userHandler.GetUnifiedUser)
	user.Patch("/unified", userHandler.UpdateProfile)
	user.Post("/identities", middleware.GatewayRequired(cfg), userHandler.LinkIdentity)
	user.Get("/identities/check", userHandler.CheckIdentity)
	user.Delete("/identities/:id", userHandler.UnlinkIdentity)
	user.Post("/merge", userHandler.Merge)

	admin := api.Group("/admin", middleware.AdminRequired(cfg))
	admin.Get("/users/:id/resolve", adminHandler.Resolve)
	admin.Post("/merge", adminHandler.Merge)
	admin.Post("/merge-tokens/sweep", adminHandler.SweepTokens)

	// Owned resources, scoped to the caller's root
	protected := api.Group("/p", middleware.JWTProtected(cfg), middleware.ResolveCaller(resolver))
	for _, k := range kinds.Kinds() {
		k.RegisterRoutes(protected, db)
	}
}
