package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-borrowing/internal/handler"
	"github.com/iliyamo/library-borrowing/internal/middleware"
)

// RegisterBorrowings registers the borrowing endpoints on an authenticated
// group.  Borrowing and returning change book inventory, so both purge the
// cached catalog.
func RegisterBorrowings(g *echo.Group, h *handler.BorrowingHandler, opts Options) {
	purge := middleware.PurgeOnSuccess(opts.Cache, opts.Redis, middleware.CacheNamespaceBooks)

	g.GET("/borrowings", h.List)
	g.GET("/borrowings/:id", h.Get)
	g.POST("/borrowings", h.Create, purge)
	g.POST("/borrowings/:id/return", h.ReturnBorrowing, purge)
}
