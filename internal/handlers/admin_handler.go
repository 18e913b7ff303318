package handlers

import (
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AdminHandler struct {
	accounts *services.AccountService
}

func NewAdminHandler(accounts *services.AccountService) *AdminHandler {
	return &AdminHandler{accounts: accounts}
}

// Resolve handles GET /api/admin/users/:id/resolve
func (h *AdminHandler) Resolve(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	chain, err := h.accounts.Lineage(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "admin_resolve")
	}
	user, err := h.accounts.GetUnifiedUser(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "admin_resolve")
	}

	return c.JSON(fiber.Map{
		"chain": chain,
		"root":  chain[len(chain)-1],
		"user":  user,
	})
}

// Merge handles POST /api/admin/merge
func (h *AdminHandler) Merge(c *fiber.Ctx) error {
	var req dto.AdminMergeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.SourceUnifiedUserID == uuid.Nil || req.TargetUnifiedUserID == uuid.Nil {
		return badRequest(c, "source_unified_user_id and target_unified_user_id are required")
	}

	out, err := h.accounts.AdminMerge(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err, "admin_merge")
	}
	return c.JSON(out)
}

// SweepTokens handles POST /api/admin/merge-tokens/sweep
func (h *AdminHandler) SweepTokens(c *fiber.Ctx) error {
	n, err := h.accounts.SweepMergeTokens(c.UserContext())
	if err != nil {
		return respondError(c, err, "merge_token_sweep")
	}
	return c.JSON(fiber.Map{"deleted": n})
}
