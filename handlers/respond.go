package handlers

import (
	"errors"

	"affiliate-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// statusFor maps service errors to HTTP statuses; anything unknown is a 500
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidAddress):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrImmutableCode):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrCodeNotFound), errors.Is(err, services.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadySponsored),
		errors.Is(err, services.ErrSessionConverted),
		errors.Is(err, services.ErrCodeTaken):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrExportDisabled):
		return fiber.StatusServiceUnavailable
	case services.IsRejection(err):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, log logrus.FieldLogger, msg string, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.WithError(err).WithField("path", c.Path()).Error(msg)
		return c.Status(status).JSON(fiber.Map{
			"error": msg,
			"cause": err.Error(),
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string, err error) error {
	body := fiber.Map{"error": msg}
	if err != nil {
		body["cause"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
