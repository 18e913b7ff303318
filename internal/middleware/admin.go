package middleware

import (
	"crypto/subtle"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/config"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// AdminRequired admits requests carrying the configured X-Admin-Token. With
// no token configured every admin request is refused.
func AdminRequired(cfg *config.Config) fiber.Handler {
	return sharedSecret("X-Admin-Token", cfg.AdminToken, "Admin access required")
}

// GatewayRequired admits requests from the trusted authentication gateway,
// which has already verified the credential it forwards.
func GatewayRequired(cfg *config.Config) fiber.Handler {
	return sharedSecret("X-Gateway-Token", cfg.GatewayToken, "Gateway token required")
}

func sharedSecret(header, secret, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(header)
		if secret != "" && got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1 {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Code: "FORBIDDEN", Message: message,
		})
	}
}
