// Package session carries the authenticated actor through a request.
package session

import (
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

var ErrNoActor = errors.New("no authenticated user in context")

// GetUserID extracts the user id from JWT claims in context.
func GetUserID(c *fiber.Ctx) (string, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return "", errors.New("invalid token in context")
	}
	return subject(token)
}

// SetActor stores the freshly loaded user for the rest of the request.
func SetActor(c *fiber.Ctx, u identity.User) {
	c.Locals(actorKey, &u)
}

// GetActor returns the user loaded by the CurrentUser middleware.
func GetActor(c *fiber.Ctx) (*identity.User, error) {
	u, ok := c.Locals(actorKey).(*identity.User)
	if !ok || u == nil {
		return nil, ErrNoActor
	}
	return u, nil
}

// ParseToken validates a raw HS256 token and returns its subject. Used
// outside Fiber, where the JWT middleware is not available.
func ParseToken(secret, raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	return subject(token)
}

func subject(token *jwt.Token) (string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub claim")
	}
	return sub, nil
}
