package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/library-borrowing/internal/model"
	"github.com/iliyamo/library-borrowing/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*page_size well inside int and MySQL's OFFSET.
	MaxPage = 1 << 20
)

// BookStore is the persistence the catalog needs; *repository.BookRepo
// satisfies it.
type BookStore interface {
	List(ctx context.Context, q repository.BookQuery) ([]model.Book, int64, error)
	GetByID(ctx context.Context, id uint64) (model.Book, error)
	Create(ctx context.Context, b *model.Book) error
	Update(ctx context.Context, b model.Book) error
	Delete(ctx context.Context, id uint64) error
}

// BookFilter narrows a catalog listing.  Zero Page/PageSize select the
// defaults.
type BookFilter struct {
	Title    string
	Author   string
	Page     int
	PageSize int
}

// BookPage is one page of the catalog.
type BookPage struct {
	Data     []model.Book `json:"data"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// BookPatch carries the fields of a partial update; nil fields are kept.
type BookPatch struct {
	Title     *string
	Author    *string
	Cover     *model.Cover
	Inventory *int
	DailyFee  *model.Money
}

func (p BookPatch) apply(b model.Book) model.Book {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Cover != nil {
		b.Cover = *p.Cover
	}
	if p.Inventory != nil {
		b.Inventory = *p.Inventory
	}
	if p.DailyFee != nil {
		b.DailyFee = *p.DailyFee
	}
	return b
}

// BookService exposes the catalog.  Any authenticated caller may read it;
// only staff may change it.
type BookService struct {
	store BookStore
}

func NewBookService(store BookStore) *BookService {
	return &BookService{store: store}
}

func (s *BookService) List(ctx context.Context, caller Caller, f BookFilter) (BookPage, error) {
	if err := caller.check(); err != nil {
		return BookPage{}, err
	}
	var fe model.FieldErrors
	if f.Page < 0 {
		fe = model.FieldErrors{"page": "must be a positive integer"}
	}
	if f.Page > MaxPage {
		fe = model.FieldErrors{"page": fmt.Sprintf("must be at most %d", MaxPage)}
	}
	if f.PageSize < 0 {
		if fe == nil {
			fe = model.FieldErrors{}
		}
		fe["page_size"] = "must be a positive integer"
	}
	if len(fe) > 0 {
		return BookPage{}, invalidFields(fe)
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}

	books, total, err := s.store.List(ctx, repository.BookQuery{
		Title:    f.Title,
		Author:   f.Author,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
	if err != nil {
		return BookPage{}, storeError(err)
	}
	return BookPage{Data: books, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

func (s *BookService) Get(ctx context.Context, caller Caller, id uint64) (model.Book, error) {
	if err := caller.check(); err != nil {
		return model.Book{}, err
	}
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Book{}, storeError(err)
	}
	return b, nil
}

func (s *BookService) Create(ctx context.Context, caller Caller, b model.Book) (model.Book, error) {
	if err := caller.requireStaff(); err != nil {
		return model.Book{}, err
	}
	b.ID = 0
	if fe := b.Validate(); len(fe) > 0 {
		return model.Book{}, invalidFields(fe)
	}
	if err := s.store.Create(ctx, &b); err != nil {
		return model.Book{}, storeError(err)
	}
	return b, nil
}

// Update replaces every field of the book.
func (s *BookService) Update(ctx context.Context, caller Caller, id uint64, b model.Book) (model.Book, error) {
	if err := caller.requireStaff(); err != nil {
		return model.Book{}, err
	}
	b.ID = id
	if fe := b.Validate(); len(fe) > 0 {
		return model.Book{}, invalidFields(fe)
	}
	if err := s.store.Update(ctx, b); err != nil {
		return model.Book{}, storeError(err)
	}
	return b, nil
}

// Patch merges p into the stored book and validates the result as a whole.
func (s *BookService) Patch(ctx context.Context, caller Caller, id uint64, p BookPatch) (model.Book, error) {
	if err := caller.requireStaff(); err != nil {
		return model.Book{}, err
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Book{}, storeError(err)
	}
	merged := p.apply(current)
	if fe := merged.Validate(); len(fe) > 0 {
		return model.Book{}, invalidFields(fe)
	}
	if err := s.store.Update(ctx, merged); err != nil {
		return model.Book{}, storeError(err)
	}
	return merged, nil
}

func (s *BookService) Delete(ctx context.Context, caller Caller, id uint64) error {
	if err := caller.requireStaff(); err != nil {
		return err
	}
	return storeError(s.store.Delete(ctx, id))
}

// storeError converts repository errors into service errors.  Errors that
// are already service errors pass through.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrMissingReference):
		return invalid(msgBookMissing)
	case errors.Is(err, repository.ErrCheckViolation):
		return invalid("value violates a data constraint")
	case errors.Is(err, repository.ErrOutOfStock):
		return invalid("book is out of stock")
	case errors.Is(err, repository.ErrAlreadyReturned):
		return invalid(msgAlreadyReturned)
	}
	return err
}
