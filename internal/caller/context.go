package caller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const rootKey = "root_unified_user_id"

// GetSubject extracts the unified user id the session token was minted for.
// It may name a merged-away account; use GetRootID for the resolved account.
func GetSubject(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}

// SetRootID stores the caller's resolved root account.
func SetRootID(c *fiber.Ctx, id uuid.UUID) {
	c.Locals(rootKey, id)
}

// GetRootID returns the caller's root account set by middleware.ResolveCaller.
func GetRootID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := c.Locals(rootKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, errors.New("caller not resolved")
	}
	return id, nil
}
