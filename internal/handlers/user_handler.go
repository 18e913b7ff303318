package handlers

import (
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/caller"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/gofiber/fiber/v2"
)

// UserHandler serves the signed-in caller's account. Every route runs behind
// middleware.ResolveCaller, so the caller is always a root.
type UserHandler struct {
	accounts *services.AccountService
}

func NewUserHandler(accounts *services.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// GetUnifiedUser handles GET /api/user/unified
func (h *UserHandler) GetUnifiedUser(c *fiber.Ctx) error {
	root, err := caller.GetRootID(c)
	if err != nil {
		return respondError(c, services.ErrUnauthenticated, "get_unified_user")
	}

	resp, err := h.accounts.GetUnifiedUser(c.UserContext(), root)
	if err != nil {
		return respondError(c, err, "get_unified_user")
	}
	return c.JSON(resp)
}

// UpdateProfile handles PATCH /api/user/unified
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	root, err := caller.GetRootID(c)
	if err != nil {
		return respondError(c, services.ErrUnauthenticated, "update_profile")
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.accounts.UpdateProfile(c.UserContext(), root, &req)
	if err != nil {
		return respondError(c, err, "update_profile")
	}
	return c.JSON(resp)
}
