package middleware

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/access"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/session"
	"github.com/gofiber/fiber/v2"
)

// UserLoader resolves the current user record for a token subject.
type UserLoader interface {
	Get(ctx context.Context, uid string) (identity.User, error)
}

// CurrentUser re-reads the caller's user record on every request and stores
// it as the request's actor. A record still being written is answered with
// 503 and loading=true rather than treated as an anonymous caller.
func CurrentUser(users UserLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := session.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized", Reason: access.ReasonUnauthenticated,
			})
		}

		user, err := users.Get(c.UserContext(), uid)
		if err != nil {
			if errors.Is(err, identity.ErrMalformed) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
					Error: true, Message: "User profile is still loading", Loading: true,
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized", Reason: access.ReasonUnauthenticated,
			})
		}

		session.SetActor(c, user)
		return c.Next()
	}
}

// AdminRequired lets through actors allowed to run moderation transitions.
func AdminRequired() fiber.Handler {
	return requireDecision(access.CanModerate, "Admin access required")
}

// StaffRequired lets through moderators and admins.
func StaffRequired() fiber.Handler {
	return requireDecision(access.CanReview, "Moderator access required")
}

func requireDecision(check func(*identity.User) access.Decision, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := session.GetActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized", Reason: access.ReasonUnauthenticated,
			})
		}
		if d := check(actor); !d.Allowed {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: message, Reason: d.Reason,
			})
		}
		return c.Next()
	}
}
