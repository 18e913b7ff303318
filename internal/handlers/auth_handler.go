package handlers

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles POST /api/auth/login. The gateway forwards a credential it has
// already verified with the provider.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Provider) == "" || strings.TrimSpace(req.ProviderUserID) == "" {
		return badRequest(c, "provider and provider_user_id are required")
	}

	resp, err := h.authService.Authenticate(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err, "login")
	}

	status := fiber.StatusOK
	if resp.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.authService.Refresh(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err, "refresh")
	}
	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.authService.Logout(c.UserContext(), &req); err != nil {
		return respondError(c, err, "logout")
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}
