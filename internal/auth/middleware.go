package auth

import (
	"strings"

	"miyan-backend/internal/access"
	"miyan-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const CtxCallerKey = "caller"

func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header missing")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
		}

		caller, err := ParseToken(secret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		c.Locals(CtxCallerKey, caller)
		return c.Next()
	}
}

// CallerFrom returns the caller stored by JWTMiddleware.
func CallerFrom(c *fiber.Ctx) (access.Caller, error) {
	caller, ok := c.Locals(CtxCallerKey).(access.Caller)
	if !ok {
		return access.Caller{}, fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
	}
	return caller, nil
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := CallerFrom(c)
		if err != nil {
			return err
		}

		for _, r := range allowedRoles {
			if r == caller.Role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "You do not have permission to perform this action")
	}
}
