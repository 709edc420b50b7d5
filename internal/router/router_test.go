package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-borrowing/internal/config"
	"github.com/iliyamo/library-borrowing/internal/handler"
	"github.com/iliyamo/library-borrowing/internal/model"
	"github.com/iliyamo/library-borrowing/internal/service"
	"github.com/iliyamo/library-borrowing/internal/utils"
)

const secret = "router-secret"

type recorder struct {
	mu     sync.Mutex
	calls  []string
	caller service.Caller
}

func (r *recorder) record(name string, c service.Caller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	r.caller = c
}

type fakeBooks struct {
	recorder
	err     error
	created model.Book
}

func (f *fakeBooks) List(ctx context.Context, c service.Caller, bf service.BookFilter) (service.BookPage, error) {
	f.record("list", c)
	return service.BookPage{Data: []model.Book{sampleBook()}, Total: 1, Page: 1, PageSize: 20}, f.err
}

func (f *fakeBooks) Get(ctx context.Context, c service.Caller, id uint64) (model.Book, error) {
	f.record("get", c)
	return sampleBook(), f.err
}

func (f *fakeBooks) Create(ctx context.Context, c service.Caller, b model.Book) (model.Book, error) {
	f.record("create", c)
	b.ID = 9
	f.created = b
	return b, f.err
}

func (f *fakeBooks) Update(ctx context.Context, c service.Caller, id uint64, b model.Book) (model.Book, error) {
	f.record("update", c)
	b.ID = id
	return b, f.err
}

func (f *fakeBooks) Patch(ctx context.Context, c service.Caller, id uint64, p service.BookPatch) (model.Book, error) {
	f.record("patch", c)
	return sampleBook(), f.err
}

func (f *fakeBooks) Delete(ctx context.Context, c service.Caller, id uint64) error {
	f.record("delete", c)
	return f.err
}

type fakeBorrowings struct {
	recorder
	err      error
	lastList service.ListBorrowingsInput
	lastIn   service.CreateBorrowingInput
}

func (f *fakeBorrowings) List(ctx context.Context, c service.Caller, in service.ListBorrowingsInput) ([]model.Borrowing, error) {
	f.record("list", c)
	f.lastList = in
	return []model.Borrowing{}, f.err
}

func (f *fakeBorrowings) Get(ctx context.Context, c service.Caller, id uint64) (model.BorrowingDetail, error) {
	f.record("get", c)
	return sampleDetail(), f.err
}

func (f *fakeBorrowings) Create(ctx context.Context, c service.Caller, in service.CreateBorrowingInput) (model.Borrowing, error) {
	f.record("create", c)
	f.lastIn = in
	return sampleDetail().Summary(), f.err
}

func (f *fakeBorrowings) Return(ctx context.Context, c service.Caller, id uint64) (model.BorrowingDetail, error) {
	f.record("return", c)
	return sampleDetail(), f.err
}

func sampleBook() model.Book {
	return model.Book{ID: 5, Title: "Dune", Author: "Frank Herbert", Cover: model.CoverSoft, Inventory: 2, DailyFee: model.MustMoney("1.5")}
}

func sampleDetail() model.BorrowingDetail {
	returned := model.DateOf(2026, time.October, 14)
	return model.BorrowingDetail{
		ID:                 3,
		BorrowDate:         model.DateOf(2026, time.October, 10),
		ExpectedReturnDate: model.DateOf(2026, time.October, 20),
		ActualReturnDate:   &returned,
		Book:               sampleBook(),
		UserID:             1,
	}
}

type rig struct {
	e          *echo.Echo
	books      *fakeBooks
	borrowings *fakeBorrowings
}

func newRig() *rig {
	r := &rig{books: &fakeBooks{}, borrowings: &fakeBorrowings{}}
	r.e = New(Handlers{
		Auth:       handler.NewAuthHandler(config.Config{JWTSecret: secret}, nil, nil),
		Books:      handler.NewBookHandler(r.books),
		Borrowings: handler.NewBorrowingHandler(r.borrowings),
	}, Options{JWTSecret: secret})
	return r
}

func bearer(t *testing.T, uid uint64, staff bool) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, staff, 5)
	require.NoError(t, err)
	return tok.Token
}

func (r *rig) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := newRig().do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestUnauthenticatedRequestsGet401First(t *testing.T) {
	r := newRig()
	routes := []struct{ method, path, body string }{
		{http.MethodGet, "/v1/me", ""},
		{http.MethodGet, "/v1/books", ""},
		{http.MethodGet, "/v1/books/5", ""},
		{http.MethodPost, "/v1/books", `{"title":""}`},
		{http.MethodPut, "/v1/books/abc", `{`},
		{http.MethodPatch, "/v1/books/5", `{}`},
		{http.MethodDelete, "/v1/books/5", ""},
		{http.MethodGet, "/v1/borrowings?is_active=maybe", ""},
		{http.MethodGet, "/v1/borrowings/3", ""},
		{http.MethodPost, "/v1/borrowings", `{"book":"x"}`},
		{http.MethodPost, "/v1/borrowings/3/return", ""},
	}
	for _, rt := range routes {
		rec := r.do(rt.method, rt.path, "", rt.body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", rt.method, rt.path)
	}
	assert.Empty(t, r.books.calls)
	assert.Empty(t, r.borrowings.calls)
}

func TestNonStaffCannotMutateBooks(t *testing.T) {
	r := newRig()
	tok := bearer(t, 1, false)
	body := `{"title":"Dune","author":"Frank Herbert","cover":"SOFT","inventory":1,"daily_fee":"1.00"}`

	for _, rt := range []struct{ method, path string }{
		{http.MethodPost, "/v1/books"},
		{http.MethodPut, "/v1/books/5"},
		{http.MethodPatch, "/v1/books/5"},
		{http.MethodDelete, "/v1/books/5"},
	} {
		rec := r.do(rt.method, rt.path, tok, body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", rt.method, rt.path)
	}
	assert.Empty(t, r.books.calls)

	rec := r.do(http.MethodGet, "/v1/books", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[{"id":5,"title":"Dune","author":"Frank Herbert","cover":"SOFT","inventory":2,"daily_fee":"1.50"}],"total":1,"page":1,"page_size":20}`, rec.Body.String())
}

func TestStaffCreatesBook(t *testing.T) {
	r := newRig()
	tok := bearer(t, 9, true)

	rec := r.do(http.MethodPost, "/v1/books", tok, `{"title":" Emma ","author":"Jane Austen","cover":"HARD","inventory":0,"daily_fee":2.5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Emma", r.books.created.Title)
	assert.Equal(t, "2.50", r.books.created.DailyFee.StringFixed(2))
	assert.Equal(t, service.Caller{UserID: 9, IsStaff: true}, r.books.caller)

	rec = r.do(http.MethodPost, "/v1/books", tok, `{"title":"Emma","cover":"PAPER","inventory":-1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cover":"must be one of SOFT, HARD"`)
	assert.Contains(t, rec.Body.String(), `"author":"is required"`)
	assert.Contains(t, rec.Body.String(), `"inventory":"must be greater than or equal to 0"`)
	assert.Len(t, r.books.calls, 1)

	rec = r.do(http.MethodPost, "/v1/books", tok, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookErrorsMapToStatus(t *testing.T) {
	r := newRig()
	tok := bearer(t, 9, true)

	r.books.err = service.ErrNotFound
	assert.Equal(t, http.StatusNotFound, r.do(http.MethodGet, "/v1/books/77", tok, "").Code)
	assert.Equal(t, http.StatusNotFound, r.do(http.MethodDelete, "/v1/books/77", tok, "").Code)

	r.books.err = nil
	assert.Equal(t, http.StatusNoContent, r.do(http.MethodDelete, "/v1/books/5", tok, "").Code)
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodGet, "/v1/books/abc", tok, "").Code)
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodGet, "/v1/books?page=0", tok, "").Code)
}

func TestBorrowingListFilters(t *testing.T) {
	r := newRig()
	user := bearer(t, 1, false)
	staff := bearer(t, 9, true)

	rec := r.do(http.MethodGet, "/v1/borrowings?user_id=abc&is_active=true", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Nil(t, r.borrowings.lastList.UserID)
	require.NotNil(t, r.borrowings.lastList.IsActive)
	assert.True(t, *r.borrowings.lastList.IsActive)

	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodGet, "/v1/borrowings?user_id=abc", staff, "").Code)
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodGet, "/v1/borrowings?is_active=maybe", user, "").Code)

	rec = r.do(http.MethodGet, "/v1/borrowings?user_id=4", staff, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, r.borrowings.lastList.UserID)
	assert.Equal(t, uint64(4), *r.borrowings.lastList.UserID)
	assert.Nil(t, r.borrowings.lastList.IsActive)
}

func TestCreateBorrowing(t *testing.T) {
	r := newRig()
	tok := bearer(t, 1, false)

	rec := r.do(http.MethodPost, "/v1/borrowings", tok, `{"book":5,"expected_return_date":"2026-10-24"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, uint64(5), r.borrowings.lastIn.BookID)
	assert.Equal(t, "2026-10-24", r.borrowings.lastIn.ExpectedReturnDate.String())
	assert.Equal(t, service.Caller{UserID: 1}, r.borrowings.caller)
	assert.Contains(t, rec.Body.String(), `"book_id":5`)

	calls := len(r.borrowings.calls)
	for _, body := range []string{
		`{"book":5}`,
		`{"expected_return_date":"2026-10-24"}`,
		`{"book":5,"expected_return_date":"24/10/2026"}`,
	} {
		assert.Equal(t, http.StatusBadRequest, r.do(http.MethodPost, "/v1/borrowings", tok, body).Code, body)
	}
	assert.Len(t, r.borrowings.calls, calls)

	r.borrowings.err = &service.ValidationError{Message: "All books with name 'Dune' borrowing."}
	rec = r.do(http.MethodPost, "/v1/borrowings", tok, `{"book":5,"expected_return_date":"2026-10-24"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"All books with name 'Dune' borrowing."}`, rec.Body.String())
}

func TestBorrowingDetailAndReturn(t *testing.T) {
	r := newRig()
	tok := bearer(t, 1, false)

	rec := r.do(http.MethodPost, "/v1/borrowings/3/return", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"id":3,"borrow_date":"2026-10-10","expected_return_date":"2026-10-20","actual_return_date":"2026-10-14",
		"book":{"id":5,"title":"Dune","author":"Frank Herbert","cover":"SOFT","inventory":2,"daily_fee":"1.50"},
		"user":1}`, rec.Body.String())

	r.borrowings.err = service.ErrForbidden
	assert.Equal(t, http.StatusForbidden, r.do(http.MethodGet, "/v1/borrowings/3", tok, "").Code)
	assert.Equal(t, http.StatusForbidden, r.do(http.MethodPost, "/v1/borrowings/3/return", tok, "").Code)

	r.borrowings.err = service.ErrNotFound
	assert.Equal(t, http.StatusNotFound, r.do(http.MethodGet, "/v1/borrowings/3", tok, "").Code)

	r.borrowings.err = &service.ValidationError{Message: "The book has already been returned"}
	rec = r.do(http.MethodPost, "/v1/borrowings/3/return", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"The book has already been returned"}`, rec.Body.String())
}
