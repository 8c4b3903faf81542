package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	controller "hubebony/controllers"
	"hubebony/middleware"
)

// Deps are the controllers and shared clients the routes are wired to.
type Deps struct {
	RepeatLeads *controller.RepeatLeadController
	// Leads is nil when leads come from an upstream service.
	Leads *controller.LeadController
	Redis *redis.Client

	RateLimitMax int
	// Auth is the guard for /api/v1. Defaults to middleware.Protected().
	Auth fiber.Handler
}

func SetupRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "running",
		})
	})

	auth := deps.Auth
	if auth == nil {
		auth = middleware.Protected()
	}

	// API group with versioning and protection
	api := app.Group("/api/v1", auth, logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	if deps.Leads != nil {
		lead := api.Group("/leads")
		lead.Post("/", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleIngest), deps.Leads.CreateLead)
		lead.Get("/", deps.Leads.GetLeads)
	}

	analytics := api.Group("/analytics", middleware.AnalyticsRateLimiter(deps.RateLimitMax, deps.Redis))

	// Registered before /:email so the stream path is not taken as an email.
	analytics.Use("/repeat-leads/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	analytics.Get("/repeat-leads/stream", websocket.New(deps.RepeatLeads.StreamRepeatLeads))
	analytics.Get("/repeat-leads", deps.RepeatLeads.GetRepeatLeads)
	analytics.Get("/repeat-leads/:email", deps.RepeatLeads.GetRepeatLeadsForEmail)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Route not found",
		})
	})
}
