package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/gofiber/fiber/v2"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{services.ErrUnauthenticated, fiber.StatusUnauthorized, "UNAUTHENTICATED"},
	{services.ErrInvalidRefresh, fiber.StatusUnauthorized, "UNAUTHENTICATED"},
	{services.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{services.ErrUserNotFound, fiber.StatusNotFound, "USER_NOT_FOUND"},
	{services.ErrIdentityNotFound, fiber.StatusNotFound, "IDENTITY_NOT_FOUND"},
	{services.ErrInvalidProvider, fiber.StatusBadRequest, "INVALID_PROVIDER"},
	{services.ErrInvalidCredential, fiber.StatusBadRequest, "INVALID_CREDENTIAL"},
	{services.ErrLastIdentity, fiber.StatusConflict, "LAST_IDENTITY"},
	{services.ErrStaleMerge, fiber.StatusConflict, "STALE_MERGE"},
	{services.ErrMergeNotConfirmed, fiber.StatusBadRequest, "MERGE_NOT_CONFIRMED"},
	{services.ErrMergeSelf, fiber.StatusBadRequest, "MERGE_SELF"},
	{services.ErrMergeTargetMissing, fiber.StatusBadRequest, "MERGE_TARGET_MISSING"},
	{services.ErrTokenExpired, fiber.StatusGone, "TOKEN_EXPIRED"},
	{services.ErrTokenConsumed, fiber.StatusGone, "TOKEN_CONSUMED"},
	{services.ErrTokenInvalid, fiber.StatusBadRequest, "TOKEN_INVALID"},
	{services.ErrCorruptState, fiber.StatusInternalServerError, "CORRUPT_STATE"},
}

// respondError writes the error response for a service error. Server errors
// are logged and their detail is withheld from the client.
func respondError(c *fiber.Ctx, err error, action string) error {
	status, code := fiber.StatusInternalServerError, "INTERNAL"
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			status, code = m.status, m.code
			break
		}
	}

	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"action", action,
			"trace_id", traceID(c),
			"method", c.Method(),
			"path", c.Path(),
			"error", err.Error(),
		)
		return c.Status(status).JSON(dto.ErrorResponse{
			Error: true, Code: code, Message: "Internal server error",
		})
	}

	var stale *services.StaleMergeError
	if errors.As(err, &stale) {
		return c.Status(status).JSON(fiber.Map{
			"error":                  true,
			"code":                   code,
			"message":                services.ErrStaleMerge.Error(),
			"source_unified_user_id": stale.SourceRoot,
			"target_unified_user_id": stale.TargetRoot,
		})
	}

	return c.Status(status).JSON(dto.ErrorResponse{
		Error: true, Code: code, Message: err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Code: "BAD_REQUEST", Message: message,
	})
}

func traceID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
