package handler // handler defines http handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-borrowing/internal/middleware"
	"github.com/iliyamo/library-borrowing/internal/service"
	"github.com/iliyamo/library-borrowing/internal/validation"
)

// callerFrom builds the service caller from what JWTAuth stored.  On routes
// without JWTAuth the caller is anonymous and services reject it.
func callerFrom(c echo.Context) service.Caller {
	uid, staff, ok := middleware.Identity(c)
	if !ok {
		return service.Caller{}
	}
	return service.Caller{UserID: uid, IsStaff: staff}
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, &service.ValidationError{Message: "invalid " + name}
	}
	return id, nil
}

// bind decodes the body into req and runs the struct validator.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return &service.ValidationError{Message: "invalid body"}
	}
	if err := c.Validate(req); err != nil {
		if fe := validation.FieldErrors(err); fe != nil {
			return &service.ValidationError{Message: "invalid input", Fields: fe}
		}
		return err
	}
	return nil
}

// respondError maps service errors onto status codes and the
// {"error": "..."} body.
func respondError(c echo.Context, err error) error {
	var (
		ve *service.ValidationError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Message}
		if len(ve.Fields) > 0 {
			body["fields"] = ve.Fields
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, service.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.As(err, &he):
		return c.JSON(he.Code, echo.Map{"error": http.StatusText(he.Code)})
	}
	slog.Error("request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"req_id", c.Response().Header().Get(echo.HeaderXRequestID),
		"err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
