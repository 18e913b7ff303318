package companies

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/caller"
	"github.com/gofiber/fiber/v2"
)

// Handler handles HTTP requests for companies.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /api/p/companies
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
			"error": true, "message": "Failed to list companies",
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create handles POST /api/p/companies
func (h *Handler) Create(c *fiber.Ctx) error {
	owner, err := caller.GetRootID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": true, "message": "Authentication required",
		})
	}

	var req struct {
		Name               string `json:"name"`
		RegistrationNumber string `json:"registration_number"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "Invalid request body",
		})
	}

	company, err := h.service.Create(owner, req.Name, req.RegistrationNumber)
	if err != nil {
		if errors.Is(err, ErrNameRequired) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": true, "message": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": "Failed to create company",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": company})
}
