package auth

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskradar/taskradar/internal/domain"
)

// Context keys set by Middleware.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// Middleware validates the Authorization header and stashes the caller's
// identity on the echo context.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, role, err := ParseToken(secret, c.Request().Header.Get("Authorization"))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			c.Set(ContextUserID, userID)
			c.Set(ContextRole, role)
			return next(c)
		}
	}
}

// RequireRole ensures the requester's role is one of the allowed roles.
// Usage: route(..., RequireRole(domain.RoleProvider))
func RequireRole(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ContextRole).(domain.Role)
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
		}
	}
}

// UserID extracts the authenticated caller's id from the context.
func UserID(c echo.Context) uuid.UUID {
	id, _ := c.Get(ContextUserID).(uuid.UUID)
	return id
}
