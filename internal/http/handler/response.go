package handler

import (
	"errors"

	"hospital-queue/internal/queue"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

var validate = validator.New()

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// queueError maps queue errors onto HTTP statuses.
func queueError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, queue.ErrServiceNotFound):
		return fail(c, fiber.StatusNotFound, "Service not found")
	case errors.Is(err, queue.ErrEntryNotFound):
		return fail(c, fiber.StatusNotFound, "Queue entry not found")
	case errors.Is(err, queue.ErrServiceClosed):
		return fail(c, fiber.StatusConflict, "Service is not accepting patients")
	case errors.Is(err, queue.ErrInvalidTransition):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, queue.ErrQueueEmpty):
		return fail(c, fiber.StatusConflict, "No patients waiting")
	case errors.Is(err, queue.ErrInvalidPriority), errors.Is(err, queue.ErrInvalidStatus):
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("queue operation failed")
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}

func validationError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fail(c, fiber.StatusBadRequest, verrs[0].Field()+" failed "+verrs[0].Tag())
	}
	return fail(c, fiber.StatusBadRequest, "Invalid request body")
}
