package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-borrowing/internal/model"
	"github.com/iliyamo/library-borrowing/internal/service"
)

// BookService is the catalog as seen by the HTTP layer.
type BookService interface {
	List(ctx context.Context, caller service.Caller, f service.BookFilter) (service.BookPage, error)
	Get(ctx context.Context, caller service.Caller, id uint64) (model.Book, error)
	Create(ctx context.Context, caller service.Caller, b model.Book) (model.Book, error)
	Update(ctx context.Context, caller service.Caller, id uint64, b model.Book) (model.Book, error)
	Patch(ctx context.Context, caller service.Caller, id uint64, p service.BookPatch) (model.Book, error)
	Delete(ctx context.Context, caller service.Caller, id uint64) error
}

type BookHandler struct {
	Books BookService
}

func NewBookHandler(books BookService) *BookHandler {
	return &BookHandler{Books: books}
}

// bookReq is the full representation accepted by POST and PUT.
type bookReq struct {
	Title     string       `json:"title" validate:"required,max=255"`
	Author    string       `json:"author" validate:"required,max=255"`
	Cover     string       `json:"cover" validate:"required,oneof=SOFT HARD"`
	Inventory *int         `json:"inventory" validate:"required,gte=0"`
	DailyFee  *model.Money `json:"daily_fee" validate:"required"`
}

func (r bookReq) book() model.Book {
	return model.Book{
		Title:     strings.TrimSpace(r.Title),
		Author:    strings.TrimSpace(r.Author),
		Cover:     model.Cover(r.Cover),
		Inventory: *r.Inventory,
		DailyFee:  *r.DailyFee,
	}
}

// bookPatchReq carries a PATCH body; absent fields keep their value.
type bookPatchReq struct {
	Title     *string      `json:"title" validate:"omitempty,min=1,max=255"`
	Author    *string      `json:"author" validate:"omitempty,min=1,max=255"`
	Cover     *string      `json:"cover" validate:"omitempty,oneof=SOFT HARD"`
	Inventory *int         `json:"inventory" validate:"omitempty,gte=0"`
	DailyFee  *model.Money `json:"daily_fee"`
}

func (r bookPatchReq) patch() service.BookPatch {
	p := service.BookPatch{Inventory: r.Inventory, DailyFee: r.DailyFee}
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		p.Title = &t
	}
	if r.Author != nil {
		a := strings.TrimSpace(*r.Author)
		p.Author = &a
	}
	if r.Cover != nil {
		cv := model.Cover(*r.Cover)
		p.Cover = &cv
	}
	return p
}

// List handles GET /v1/books?title=&author=&page=&page_size=.
func (h *BookHandler) List(c echo.Context) error {
	f := service.BookFilter{
		Title:  c.QueryParam("title"),
		Author: c.QueryParam("author"),
	}
	var err error
	if f.Page, err = queryInt(c, "page"); err != nil {
		return respondError(c, err)
	}
	if f.PageSize, err = queryInt(c, "page_size"); err != nil {
		return respondError(c, err)
	}
	page, err := h.Books.List(c.Request().Context(), callerFrom(c), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *BookHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.Books.Get(c.Request().Context(), callerFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookHandler) Create(c echo.Context) error {
	var req bookReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.Books.Create(c.Request().Context(), callerFrom(c), req.book())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *BookHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req bookReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.Books.Update(c.Request().Context(), callerFrom(c), id, req.book())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookHandler) Patch(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req bookPatchReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.Books.Patch(c.Request().Context(), callerFrom(c), id, req.patch())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Books.Delete(c.Request().Context(), callerFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// queryInt reads an optional non-negative integer query parameter; absent
// means 0.
func queryInt(c echo.Context, name string) (int, error) {
	s := strings.TrimSpace(c.QueryParam(name))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, queryError(name, "must be a positive integer")
	}
	return n, nil
}
