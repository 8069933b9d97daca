package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/anipipe/api/internal/auth"
	"github.com/anipipe/api/pkg/response"
)

// AuthMiddleware validates bearer tokens issued by the login endpoint.
type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret}
}

// Authenticate validates the JWT from the Authorization header, or from
// the token query parameter so that EventSource/WebSocket clients, which
// cannot set headers, can still authenticate.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""

		authHeader := c.Get("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return response.Unauthorized(c, "Invalid authorization header format")
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			return response.Unauthorized(c, "Access denied. No token provided.")
		}

		claims, err := auth.ValidateToken(tokenString, m.jwtSecret)
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals("username", claims.Username)
		return c.Next()
	}
}

// GetUsername extracts the authenticated username from context.
func GetUsername(c *fiber.Ctx) string {
	if username, ok := c.Locals("username").(string); ok {
		return username
	}
	return ""
}
