package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-borrowing/internal/utils"
)

// Context keys set by JWTAuth.
const (
	KeyToken   = "token"
	KeyUserID  = "user_id"  // uint64
	KeyIsStaff = "is_staff" // bool
)

// JWTAuth verifies the HS256 Bearer access token and stores the caller's
// id under KeyUserID and the staff flag under KeyIsStaff.  Requests
// without a valid token are answered with 401 before any other check.
func JWTAuth(secret string) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		NewClaimsFunc: func(echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization:Bearer ",
		ContextKey:    KeyToken,
		ErrorHandler: func(c echo.Context, err error) error {
			return unauthorized(c)
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(identity(next))
	}
}

func identity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok, ok := c.Get(KeyToken).(*jwt.Token)
		if !ok {
			return unauthorized(c)
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c)
		}
		uid, staff, err := utils.IdentityFromClaims(claims)
		if err != nil {
			return unauthorized(c)
		}
		c.Set(KeyUserID, uid)
		c.Set(KeyIsStaff, staff)
		return next(c)
	}
}

// Identity returns what JWTAuth stored; ok is false on routes it did not
// guard.
func Identity(c echo.Context) (userID uint64, isStaff bool, ok bool) {
	userID, ok = c.Get(KeyUserID).(uint64)
	if !ok || userID == 0 {
		return 0, false, false
	}
	isStaff, _ = c.Get(KeyIsStaff).(bool)
	return userID, isStaff, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
}
