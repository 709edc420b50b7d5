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

// BorrowingService is the borrowing lifecycle as seen by the HTTP layer.
type BorrowingService interface {
	List(ctx context.Context, caller service.Caller, in service.ListBorrowingsInput) ([]model.Borrowing, error)
	Get(ctx context.Context, caller service.Caller, id uint64) (model.BorrowingDetail, error)
	Create(ctx context.Context, caller service.Caller, in service.CreateBorrowingInput) (model.Borrowing, error)
	Return(ctx context.Context, caller service.Caller, id uint64) (model.BorrowingDetail, error)
}

type BorrowingHandler struct {
	Borrowings BorrowingService
}

func NewBorrowingHandler(b BorrowingService) *BorrowingHandler {
	return &BorrowingHandler{Borrowings: b}
}

type createBorrowingReq struct {
	Book               uint64 `json:"book" validate:"required"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"required,datetime=2006-01-02"`
}

// List handles GET /v1/borrowings?user_id=&is_active=.  user_id is only
// read for staff callers.
func (h *BorrowingHandler) List(c echo.Context) error {
	caller := callerFrom(c)
	var in service.ListBorrowingsInput

	if s := strings.TrimSpace(c.QueryParam("is_active")); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			return respondError(c, queryError("is_active", "must be true or false"))
		}
		in.IsActive = &active
	}
	if s := strings.TrimSpace(c.QueryParam("user_id")); s != "" && caller.IsStaff {
		uid, err := strconv.ParseUint(s, 10, 64)
		if err != nil || uid == 0 {
			return respondError(c, queryError("user_id", "must be a positive integer"))
		}
		in.UserID = &uid
	}

	out, err := h.Borrowings.List(c.Request().Context(), caller, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BorrowingHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	d, err := h.Borrowings.Get(c.Request().Context(), callerFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *BorrowingHandler) Create(c echo.Context) error {
	var req createBorrowingReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	expected, err := model.ParseDate(req.ExpectedReturnDate)
	if err != nil {
		return respondError(c, &service.ValidationError{
			Message: "invalid input",
			Fields:  model.FieldErrors{"expected_return_date": "must be a date formatted as YYYY-MM-DD"},
		})
	}
	b, err := h.Borrowings.Create(c.Request().Context(), callerFrom(c), service.CreateBorrowingInput{
		BookID:             req.Book,
		ExpectedReturnDate: expected,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// ReturnBorrowing handles POST /v1/borrowings/:id/return.  The return date
// is always today; the body is ignored.
func (h *BorrowingHandler) ReturnBorrowing(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	d, err := h.Borrowings.Return(c.Request().Context(), callerFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func queryError(name, msg string) error {
	return &service.ValidationError{
		Message: "invalid query parameter",
		Fields:  model.FieldErrors{name: msg},
	}
}
