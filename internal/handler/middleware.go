package handler

import (
	"crypto/subtle"
	"strings"

	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/service"
	"github.com/SecuShare/filevault/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	localsUserID    = "user_id"
	localsRole      = "role"
	localsRequestID = "request_id"
)

// SecurityHeadersMiddleware adds security-related headers to all responses
func SecurityHeadersMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Prevent caching of sensitive API responses
		c.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		c.Set("Pragma", "no-cache")
		c.Set("Expires", "0")

		return c.Next()
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("X-Request-ID", requestID)
		c.Locals(localsRequestID, requestID)

		return c.Next()
	}
}

// AuthMiddleware validates the bearer token and loads the caller's current
// role from the database, so a demotion takes effect on the next request.
func AuthMiddleware(authSvc *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return response.Unauthorized(c, "missing or invalid authorization header")
		}

		claims, err := authSvc.ValidateToken(token)
		if err != nil {
			RecordAuthFailure("invalid_token")
			return response.Unauthorized(c, "invalid or expired token")
		}

		user, err := authSvc.GetUserByID(c.UserContext(), claims.UserID)
		if err != nil {
			RecordAuthFailure("user_not_found")
			return response.Unauthorized(c, "user not found")
		}

		c.Locals(localsUserID, user.ID)
		c.Locals(localsRole, user.Role)

		return c.Next()
	}
}

// AdminMiddleware checks that the authenticated user has admin privileges.
// Must be chained after AuthMiddleware.
func AdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if localUserID(c) == "" {
			return response.Unauthorized(c, "authentication required")
		}
		if !localRole(c).IsAdmin() {
			return response.Forbidden(c, "admin access required")
		}
		return c.Next()
	}
}

// BearerTokenMiddleware protects an operational endpoint with a static
// token. An empty token disables the endpoint.
func BearerTokenMiddleware(expectedToken string) fiber.Handler {
	expected := []byte(strings.TrimSpace(expectedToken))

	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return response.Forbidden(c, "endpoint is disabled")
		}
		token, ok := bearerToken(c)
		if !ok {
			return response.Unauthorized(c, "missing or invalid authorization header")
		}
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			return response.Unauthorized(c, "invalid authorization token")
		}
		return c.Next()
	}
}

// BodyLimitMiddleware enforces a per-route body size limit.
func BodyLimitMiddleware(maxBytes int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(c.Body()) > maxBytes {
			return response.Error(c, fiber.StatusRequestEntityTooLarge, "request body too large")
		}
		return c.Next()
	}
}

func localUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals(localsUserID).(string)
	if !ok {
		return ""
	}
	return userID
}

func localRole(c *fiber.Ctx) models.Role {
	role, ok := c.Locals(localsRole).(models.Role)
	if !ok {
		return models.RoleUser
	}
	return role
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.Fields(c.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
