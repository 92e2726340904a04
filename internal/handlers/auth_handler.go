package handlers

import (
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/services"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/session"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	userService *services.UserService
}

func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	resp, err := h.userService.Register(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	resp, err := h.userService.Login(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

// Me returns the caller as the store currently has them.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, err := session.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	return c.JSON(services.UserResponse(*actor))
}
