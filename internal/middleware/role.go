package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireStaff rejects non-staff callers with 403.  It must run after
// JWTAuth.
func RequireStaff() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, staff, ok := Identity(c); !ok || !staff {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "staff only"})
			}
			return next(c)
		}
	}
}
