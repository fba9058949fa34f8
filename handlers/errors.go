// handlers/errors.go
package handlers

import (
	"context"
	"errors"

	"badge-progress-system/engine"
	"badge-progress-system/logging"
	"badge-progress-system/middleware"
	"badge-progress-system/store"

	"github.com/gofiber/fiber/v2"
)

// requestContext carries the request id into services so their log lines
// can be correlated.
func requestContext(c *fiber.Ctx) context.Context {
	return logging.ContextWithRequestID(c.UserContext(), middleware.RequestID(c))
}

func statusFor(err error) int {
	var engErr *engine.Error
	switch {
	case errors.As(err, &engErr):
		switch engErr.Kind {
		case engine.KindRegression:
			return fiber.StatusConflict
		case engine.KindNotFound:
			return fiber.StatusNotFound
		case engine.KindValidation, engine.KindMalformedInput:
			return fiber.StatusBadRequest
		}
	case errors.Is(err, store.ErrConflict):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// errorResponse maps err onto a status code. Engine errors carry their kind
// and offending field; anything else is logged and reported as internal.
func errorResponse(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	body := fiber.Map{"error": err.Error()}

	var engErr *engine.Error
	if errors.As(err, &engErr) {
		body["kind"] = engErr.Kind.String()
		if engErr.Field != "" {
			body["field"] = engErr.Field
		}
	}
	if status == fiber.StatusInternalServerError {
		logging.Ctx(requestContext(c)).Error().Err(err).Str("path", c.Path()).Msg("❌ request failed")
		body["error"] = "internal error"
	}
	return c.Status(status).JSON(body)
}
