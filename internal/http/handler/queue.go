package handler

import (
	"errors"
	"strconv"

	"hospital-queue/internal/http/middleware"
	"hospital-queue/internal/models"
	"hospital-queue/internal/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type QueueHandler struct {
	queue queue.Operations
	log   zerolog.Logger
}

func NewQueueHandler(log zerolog.Logger, ops queue.Operations) *QueueHandler {
	return &QueueHandler{queue: ops, log: log.With().Str("component", "http").Logger()}
}

type entryResponse struct {
	models.QueueEntry
	Position *int `json:"position"`
}

// Join - patient takes a number for a service
func (h *QueueHandler) Join(c *fiber.Ctx) error {
	var req models.JoinQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	var owner string
	if id, ok := middleware.IdentityFrom(c); ok {
		owner = id.UserID
	}

	entry, err := h.queue.Join(c.UserContext(), queue.JoinRequest{
		ServiceID: req.ServiceID,
		Priority:  req.Priority,
		OwnerID:   owner,
	})
	if err != nil {
		return queueError(c, h.log, err)
	}

	resp, err := h.withPosition(c, entry)
	if err != nil {
		return queueError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Joined queue",
		"data":    resp,
	})
}

// UpdateStatus - staff moves an entry along waiting -> called -> serving -> completed
func (h *QueueHandler) UpdateStatus(c *fiber.Ctx) error {
	var req models.UpdateQueueStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	entry, err := h.queue.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return queueError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Status updated",
		"data":    entry,
	})
}

// CallNext - staff calls the earliest waiting patient of a service
func (h *QueueHandler) CallNext(c *fiber.Ctx) error {
	var req models.CallNextQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	entry, err := h.queue.CallNext(c.UserContext(), req.ServiceID)
	if err != nil {
		return queueError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Patient called",
		"data":    entry,
	})
}

func (h *QueueHandler) Get(c *fiber.Ctx) error {
	entry, err := h.queue.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return queueError(c, h.log, err)
	}

	resp, err := h.withPosition(c, entry)
	if err != nil {
		return queueError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    resp,
	})
}

func (h *QueueHandler) ServiceSnapshot(c *fiber.Ctx) error {
	serviceID, err := strconv.ParseInt(c.Params("serviceId"), 10, 64)
	if err != nil || serviceID <= 0 {
		return fail(c, fiber.StatusBadRequest, "Invalid service id")
	}

	snap, err := h.queue.Snapshot(c.UserContext(), serviceID)
	if err != nil {
		return queueError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    snap,
	})
}

// withPosition attaches the line position; entries no longer waiting have none.
func (h *QueueHandler) withPosition(c *fiber.Ctx, entry models.QueueEntry) (entryResponse, error) {
	resp := entryResponse{QueueEntry: entry}
	pos, err := h.queue.Position(c.UserContext(), entry.ID)
	switch {
	case err == nil:
		resp.Position = &pos
	case errors.Is(err, queue.ErrNotWaiting):
	default:
		return entryResponse{}, err
	}
	return resp, nil
}
