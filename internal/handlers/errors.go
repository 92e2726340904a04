package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/access"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/content"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/services"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
	"github.com/gofiber/fiber/v2"
)

// respondError maps service errors onto HTTP responses. Store failures are
// reported as a retryable 503, never as a server crash.
func respondError(c *fiber.Ctx, err error) error {
	if de, ok := access.IsDenied(err); ok {
		status := fiber.StatusForbidden
		if de.Reason == access.ReasonUnauthenticated {
			status = fiber.StatusUnauthorized
		}
		return c.Status(status).JSON(dto.ErrorResponse{
			Error: true, Message: de.Error(), Reason: de.Reason,
		})
	}

	var rejected *services.RejectedError
	if errors.As(err, &rejected) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error: true, Message: services.RejectionMessage(rejected.Reason), Reason: rejected.Reason,
		})
	}

	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrParentNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrReportNotFound),
		errors.Is(err, content.ErrUnknownCollection):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, content.ErrInvalid),
		errors.Is(err, services.ErrInvalidReport),
		errors.Is(err, services.ErrInvalidSignup),
		errors.Is(err, identity.ErrUnknownAction):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, identity.ErrInvalidTransition),
		errors.Is(err, services.ErrEmailTaken):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, identity.ErrMalformed), errors.Is(err, content.ErrMalformed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Record is still loading", Loading: true,
		})
	case errors.Is(err, store.ErrUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Store temporarily unavailable",
		})
	}

	slog.Error("unhandled request error", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Internal server error",
	})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid request body",
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized", Reason: access.ReasonUnauthenticated,
	})
}
