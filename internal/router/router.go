package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/library-borrowing/internal/config"
	"github.com/iliyamo/library-borrowing/internal/handler"
	"github.com/iliyamo/library-borrowing/internal/middleware"
	"github.com/iliyamo/library-borrowing/internal/utils"
	"github.com/iliyamo/library-borrowing/internal/validation"
)

// Handlers groups the HTTP handlers the router wires.
type Handlers struct {
	Auth       *handler.AuthHandler
	Books      *handler.BookHandler
	Borrowings *handler.BorrowingHandler
	DB         handler.Pinger // optional, used by /healthz
}

// Options carries the cross-cutting settings.  A nil Redis client turns
// caching and rate limiting off.
type Options struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
	Logger    *slog.Logger
}

// New builds the Echo instance with every route registered.
func New(h Handlers, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = utils.JSONSerializer{}
	e.Validator = validation.New()
	middleware.Register(e, opts.Logger)

	RegisterRoutes(e, h.DB)
	RegisterAuth(e, h.Auth)

	// Every /v1 route below requires a valid access token; JWTAuth runs
	// first so unauthenticated calls get 401 before anything else.
	v1 := e.Group("/v1",
		middleware.JWTAuth(opts.JWTSecret),
		middleware.NewTokenBucket(opts.RateLimit, opts.Redis),
	)
	v1.GET("/me", h.Auth.Me)
	RegisterBooks(v1, h.Books, opts)
	RegisterBorrowings(v1, h.Borrowings, opts)
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the account endpoints under /v1/auth.  None of
// them needs an access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	e.POST("/v1/auth/register", a.Register)
	e.POST("/v1/auth/login", a.Login)
	e.POST("/v1/auth/refresh", a.Refresh)
	e.POST("/v1/auth/logout", a.Logout)
}
