package handler

import (
	"hospital-queue/internal/http/middleware"
	"hospital-queue/internal/queue"
	"hospital-queue/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type Deps struct {
	Log       zerolog.Logger
	Queue     queue.Operations
	Registry  *realtime.Registry
	Presence  *realtime.PresenceTracker
	WebSocket *WebSocketHandler
	JWTSecret string

	// Metrics is mounted at /metrics behind basic auth when set.
	Metrics     fiber.Handler
	MetricsUser string
	MetricsPass string
}

func Register(app *fiber.App, d Deps) {
	queueHandler := NewQueueHandler(d.Log, d.Queue)
	presenceHandler := NewPresenceHandler(d.Presence)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Hospital queue API running",
		})
	})
	app.Get("/health", Health(d.Registry))

	api := app.Group("/api")

	// Queue
	api.Post("/queue/join", middleware.OptionalJWT(d.JWTSecret), queueHandler.Join)
	api.Post("/queue/call-next", middleware.JWTAuth(d.JWTSecret), middleware.RoleAuth(middleware.RoleStaff, middleware.RoleAdmin), queueHandler.CallNext)
	api.Get("/queue/service/:serviceId", queueHandler.ServiceSnapshot)
	api.Get("/queue/:id", queueHandler.Get)
	api.Put("/queue/:id/status", middleware.JWTAuth(d.JWTSecret), middleware.RoleAuth(middleware.RoleStaff, middleware.RoleAdmin), queueHandler.UpdateStatus)

	// Presence
	api.Get("/presence/online", middleware.JWTAuth(d.JWTSecret), presenceHandler.Online)

	if d.WebSocket != nil {
		app.Get("/ws", d.WebSocket.Upgrade, middleware.OptionalJWT(d.JWTSecret), d.WebSocket.Handler())
	}
	if d.Metrics != nil {
		app.Get("/metrics", middleware.BasicAuth(d.MetricsUser, d.MetricsPass), d.Metrics)
	}
}
