package handler

import (
	"hospital-queue/internal/realtime"

	"github.com/gofiber/fiber/v2"
)

type PresenceHandler struct {
	presence *realtime.PresenceTracker
}

func NewPresenceHandler(presence *realtime.PresenceTracker) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

func (h *PresenceHandler) Online(c *fiber.Ctx) error {
	online := h.presence.OnlineUsers()
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"count": online.Count,
			"users": online.Users,
		},
	})
}

// Health reports liveness together with the live connection count.
func Health(registry *realtime.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"success":     true,
			"status":      "ok",
			"connections": registry.Count(),
		})
	}
}
