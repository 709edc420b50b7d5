package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/library-borrowing/internal/model"
	"github.com/iliyamo/library-borrowing/internal/service"
	"github.com/iliyamo/library-borrowing/internal/utils"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		body string
	}{
		{&service.ValidationError{Message: "invalid input", Fields: model.FieldErrors{"title": "is required"}},
			http.StatusBadRequest, `{"error":"invalid input","fields":{"title":"is required"}}`},
		{&service.ValidationError{Message: "book does not exist"}, http.StatusBadRequest, `{"error":"book does not exist"}`},
		{fmt.Errorf("get: %w", service.ErrNotFound), http.StatusNotFound, `{"error":"not found"}`},
		{service.ErrForbidden, http.StatusForbidden, `{"error":"forbidden"}`},
		{service.ErrUnauthenticated, http.StatusUnauthorized, `{"error":"authentication required"}`},
		{echo.NewHTTPError(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge, `{"error":"Request Entity Too Large"}`},
		{errors.New("boom"), http.StatusInternalServerError, `{"error":"internal error"}`},
	}
	e := echo.New()
	e.JSONSerializer = utils.JSONSerializer{}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		assert.NoError(t, respondError(c, tc.err))
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
		assert.JSONEq(t, tc.body, rec.Body.String())
	}
}

func TestParseID(t *testing.T) {
	e := echo.New()
	for _, raw := range []string{"0", "-1", "abc", ""} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(raw)
		_, err := parseID(c, "id")
		assert.Error(t, err, raw)
	}
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("42")
	id, err := parseID(c, "id")
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestCallerWithoutIdentityIsAnonymous(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, service.Caller{}, callerFrom(c))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	e := echo.New()
	run := func(db Pinger) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
		assert.NoError(t, Health(db)(c))
		return rec
	}
	assert.Equal(t, http.StatusOK, run(nil).Code)
	assert.Equal(t, http.StatusOK, run(pingerFunc(func(context.Context) error { return nil })).Code)
	assert.Equal(t, http.StatusServiceUnavailable, run(pingerFunc(func(context.Context) error { return errors.New("down") })).Code)
}
