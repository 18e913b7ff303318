package handlers

import (
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/caller"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// LinkIdentity handles POST /api/user/identities. A credential held by
// another account answers 409 IDENTITY_EXISTS with a merge preview and token.
func (h *UserHandler) LinkIdentity(c *fiber.Ctx) error {
	root, err := caller.GetRootID(c)
	if err != nil {
		return respondError(c, services.ErrUnauthenticated, "link_identity")
	}

	var req dto.LinkIdentityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	out, err := h.accounts.LinkIdentity(c.UserContext(), root, &req)
	if err != nil {
		return respondError(c, err, "link_identity")
	}

	switch out.Status {
	case services.StatusConflict:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":                    true,
			"code":                     "IDENTITY_EXISTS",
			"message":                  "This credential is linked to another account",
			"existing_unified_user_id": out.ExistingUnifiedUserID,
			"preview":                  out.Preview,
			"merge_token":              out.MergeToken,
			"expires_at":               out.ExpiresAt,
		})
	case services.StatusLinked:
		return c.Status(fiber.StatusCreated).JSON(out)
	default:
		return c.JSON(out)
	}
}

// CheckIdentity handles GET /api/user/identities/check
func (h *UserHandler) CheckIdentity(c *fiber.Ctx) error {
	root, err := caller.GetRootID(c)
	if err != nil {
		return respondError(c, services.ErrUnauthenticated, "check_identity")
	}

	provider := c.Query("provider")
	providerUserID := c.Query("provider_user_id")
	if provider == "" || providerUserID == "" {
		return badRequest(c, "provider and provider_user_id are required")
	}

	check, err := h.accounts.CheckIdentity(c.UserContext(), root, provider, providerUserID)
	if err != nil {
		return respondError(c, err, "check_identity")
	}
	return c.JSON(check)
}

// UnlinkIdentity handles DELETE /api/user/identities/:id
func (h *UserHandler) UnlinkIdentity(c *fiber.Ctx) error {
	root, err := caller.GetRootID(c)
	if err != nil {
		return respondError(c, services.ErrUnauthenticated, "unlink_identity")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid identity ID")
	}

	if err := h.accounts.UnlinkIdentity(c.UserContext(), root, id); err != nil {
		return respondError(c, err, "unlink_identity")
	}
	return c.JSON(fiber.Map{"message": "Identity unlinked"})
}

// Merge handles POST /api/user/merge. Without confirmed=true it only previews.
// Only merge_token requests are accepted here; merging an explicit
// source/target pair is limited to POST /api/admin/merge and identityctl.
func (h *UserHandler) Merge(c *fiber.Ctx) error {
	root, err := caller.GetRootID(c)
	if err != nil {
		return respondError(c, services.ErrUnauthenticated, "merge")
	}

	var req dto.MergeAccountsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	out, err := h.accounts.MergeAccounts(c.UserContext(), root, &req)
	if err != nil {
		return respondError(c, err, "merge")
	}
	return c.JSON(out)
}
