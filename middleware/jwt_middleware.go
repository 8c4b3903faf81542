package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"hubebony/config"
	"hubebony/utils"
)

// Locals keys set by Protected.
const (
	LocalUserID = "userID"
	LocalRole   = "role"
)

// Roles carried in the access token's role claim.
const (
	RoleAdmin  = "admin"
	RoleIngest = "ingest"
)

func Protected() fiber.Handler {
	return ProtectedWith(config.AppConfig.JWTSecret, config.AppConfig.AuthDisabled)
}

// ProtectedWith verifies a Bearer or cookie access token signed with secret.
// With disabled set every request passes through unauthenticated.
func ProtectedWith(secret string, disabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if disabled {
			c.Locals(LocalRole, RoleAdmin)
			return c.Next()
		}

		// Try to get token from Authorization header first
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid authorization format", nil)
			}
			token = tokenParts[1]
		} else {
			// Fall back to cookie if header not present
			token = c.Cookies("access_token")
			if token == "" {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization required", nil)
			}
		}

		claims, err := utils.ParseJWTToken(token, secret)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// RequireRole lets the request through only when Protected stored one of
// roles for it.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(string)
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Insufficient permissions", nil)
	}
}
