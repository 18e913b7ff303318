package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/caller"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RootResolver resolves a possibly merged-away account id to its root.
type RootResolver interface {
	ResolveCaller(ctx context.Context, subject uuid.UUID) (uuid.UUID, error)
}

// ResolveCaller follows the session subject to its current root account and
// stores it for handlers. Must run after JWTProtected.
func ResolveCaller(resolver RootResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sub, err := caller.GetSubject(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Code: "UNAUTHENTICATED", Message: "Unauthorized",
			})
		}

		root, err := resolver.ResolveCaller(c.UserContext(), sub)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
					Error: true, Code: "UNAUTHENTICATED", Message: "Unknown account",
				})
			}
			slog.Error("caller resolution failed",
				"unified_user_id", sub.String(),
				"action", "resolve_caller",
				"trace_id", requestID(c),
				"error", err.Error(),
			)
			code := "INTERNAL"
			if errors.Is(err, services.ErrCorruptState) {
				code = "CORRUPT_STATE"
			}
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Code: code, Message: "Internal server error",
			})
		}

		caller.SetRootID(c, root)
		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
