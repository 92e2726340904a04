package handlers

import (
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/services"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/session"
	"github.com/gofiber/fiber/v2"
)

type ModerationHandler struct {
	moderationService *services.ModerationService
	userService       *services.UserService
}

func NewModerationHandler(moderationService *services.ModerationService, userService *services.UserService) *ModerationHandler {
	return &ModerationHandler{moderationService: moderationService, userService: userService}
}

func (h *ModerationHandler) CreateReport(c *fiber.Ctx) error {
	actor, err := session.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	id, err := h.moderationService.CreateReport(c.UserContext(), actor, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CreatedResponse{ID: id})
}

func (h *ModerationHandler) ListReports(c *fiber.Ctx) error {
	actor, err := session.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	status := c.Query("status", "")
	limit := c.QueryInt("limit", 20)
	if limit > 100 {
		limit = 100
	}

	reports, err := h.moderationService.ListReports(c.UserContext(), actor, status, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": reports, "count": len(reports)})
}

func (h *ModerationHandler) ActionReport(c *fiber.Ctx) error {
	actor, err := session.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.ActionReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.moderationService.ActionReport(c.UserContext(), actor, c.Params("id"), &req); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Report updated"})
}

// ListUsers is the admin user directory.
func (h *ModerationHandler) ListUsers(c *fiber.Ctx) error {
	actor, err := session.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}

	users, err := h.userService.List(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.UserResponse, len(users))
	for i, u := range users {
		out[i] = services.UserResponse(u)
	}
	return c.JSON(fiber.Map{"data": out, "count": len(out)})
}

func (h *ModerationHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.userService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(services.UserResponse(user))
}

// Transition runs approve, probate, reinstate or ban on the target user.
func (h *ModerationHandler) Transition(c *fiber.Ctx) error {
	actor, err := session.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	action, err := identity.ParseAction(c.Params("action"))
	if err != nil {
		return respondError(c, err)
	}

	res, err := h.moderationService.Transition(c.UserContext(), actor, c.Params("id"), action)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.TransitionResponse{
		User:    services.UserResponse(res.User),
		Changed: res.Changed,
	})
}
