package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-borrowing/internal/handler"
	"github.com/iliyamo/library-borrowing/internal/middleware"
)

// RegisterBooks registers the catalog on an authenticated group.  Reads are
// cached; writes are staff only and purge the cache.
func RegisterBooks(g *echo.Group, b *handler.BookHandler, opts Options) {
	cache := middleware.NewRedisCache(opts.Cache, opts.Redis, middleware.CacheNamespaceBooks)
	purge := middleware.PurgeOnSuccess(opts.Cache, opts.Redis, middleware.CacheNamespaceBooks)
	staff := middleware.RequireStaff()

	g.GET("/books", b.List, cache)
	g.GET("/books/:id", b.Get, cache)

	g.POST("/books", b.Create, staff, purge)
	g.PUT("/books/:id", b.Update, staff, purge)
	g.PATCH("/books/:id", b.Patch, staff, purge)
	g.DELETE("/books/:id", b.Delete, staff, purge)
}
