package middleware

import (
	"strings"

	"hospital-queue/internal/config"

	"github.com/gofiber/fiber/v2"
)

const (
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
	RolePatient = "patient"
)

// IdentityKey is the Locals key holding the resolved Identity; it survives the websocket upgrade.
const IdentityKey = "identity"

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// IdentityFrom returns the caller set by JWTAuth or OptionalJWT, if any.
func IdentityFrom(c *fiber.Ctx) (Identity, bool) {
	id, ok := c.Locals(IdentityKey).(Identity)
	return id, ok
}

func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing authorization header",
			})
		}

		token, ok := bearer(authHeader)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid authorization format",
			})
		}

		claims, err := config.ValidateToken(secret, token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid or expired token",
			})
		}

		setIdentity(c, claims)
		return c.Next()
	}
}

// OptionalJWT resolves an identity when a valid token is present and lets the
// request through anonymously otherwise. Browsers cannot set headers on a
// websocket upgrade, so the token may also come from the "token" query parameter.
func OptionalJWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearer(c.Get("Authorization"))
		if !ok {
			token = c.Query("token")
		}
		if token == "" {
			return c.Next()
		}

		claims, err := config.ValidateToken(secret, token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid or expired token",
			})
		}

		setIdentity(c, claims)
		return c.Next()
	}
}

func RoleAuth(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := IdentityFrom(c)
		if ok {
			for _, allowedRole := range allowedRoles {
				if id.Role == allowedRole {
					return c.Next()
				}
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "You do not have access to this resource",
		})
	}
}

func bearer(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setIdentity(c *fiber.Ctx, claims *config.JWTClaims) {
	c.Locals(IdentityKey, Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	})
}
