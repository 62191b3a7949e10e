package api

import (
	"github.com/gofiber/fiber/v3"
)

// Envelope statuses of the story control API.
const (
	statusSuccess = "success"
	statusWarning = "warning"
	statusError   = "error"
)

// jsonOK returns a 200 response with data wrapped in the quote API envelope.
func jsonOK(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"ok":   true,
		"data": data,
	})
}

// jsonFail returns a quote API error with the given HTTP status code.
func jsonFail(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"ok":    false,
		"error": message,
	})
}

// jsonSuccess returns a 200 response in the control API envelope.
func jsonSuccess(c fiber.Ctx, message string, data any) error {
	return c.JSON(envelope(statusSuccess, message, data))
}

// jsonWarning reports a no-op request, such as starting a running scheduler.
func jsonWarning(c fiber.Ctx, message string, data any) error {
	return c.JSON(envelope(statusWarning, message, data))
}

// jsonError returns a control API error with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(envelope(statusError, message, nil))
}

func envelope(status, message string, data any) fiber.Map {
	m := fiber.Map{
		"status":  status,
		"message": message,
	}
	if data != nil {
		m["data"] = data
	}
	return m
}
