package grants

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/caller"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /api/p/grants
func (h *Handler) List(c *fiber.Ctx) error {
	owner, err := caller.GetRootID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": true, "message": "Authentication required",
		})
	}

	items, err := h.service.List(owner)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": "Failed to list grants",
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create handles POST /api/p/grants
func (h *Handler) Create(c *fiber.Ctx) error {
	owner, err := caller.GetRootID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": true, "message": "Authentication required",
		})
	}

	var req struct {
		Symbol string `json:"symbol"`
		Amount int64  `json:"amount"`
		Source string `json:"source"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "Invalid request body",
		})
	}

	grant, err := h.service.Create(owner, req.Symbol, req.Amount, req.Source)
	if err != nil {
		if errors.Is(err, ErrSymbolRequired) || errors.Is(err, ErrInvalidAmount) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": true, "message": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": "Failed to create grant",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": grant})
}

// Balances handles GET /api/p/grants/balances
func (h *Handler) Balances(c *fiber.Ctx) error {
	owner, err := caller.GetRootID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": true, "message": "Authentication required",
		})
	}

	balances, err := h.service.Balances(owner)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": "Failed to load balances",
		})
	}
	return c.JSON(fiber.Map{"data": balances})
}
