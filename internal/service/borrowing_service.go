package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/library-borrowing/internal/model"
	"github.com/iliyamo/library-borrowing/internal/queue"
	"github.com/iliyamo/library-borrowing/internal/repository"
)

const publishTimeout = 3 * time.Second

// BorrowingStore is the persistence the borrowing lifecycle needs;
// *repository.BorrowingRepo satisfies it.
type BorrowingStore interface {
	List(ctx context.Context, f repository.BorrowingFilter) ([]model.Borrowing, error)
	GetDetail(ctx context.Context, id uint64) (model.BorrowingDetail, error)
	WithinTx(ctx context.Context, fn func(tx repository.BorrowingTx) error) error
}

// EventPublisher delivers borrowing events to the broker.
type EventPublisher interface {
	PublishBorrowing(ctx context.Context, ev queue.BorrowingEvent) error
}

// ListBorrowingsInput holds the optional listing filters.  UserID is only
// honoured for staff callers.
type ListBorrowingsInput struct {
	UserID   *uint64
	IsActive *bool
}

// CreateBorrowingInput is what a borrower submits.
type CreateBorrowingInput struct {
	BookID             uint64
	ExpectedReturnDate model.Date
}

// BorrowingService runs the borrow and return transitions.  Each one
// changes the borrowing row and the book inventory in a single store
// transaction with the book row locked.
type BorrowingService struct {
	store  BorrowingStore
	events EventPublisher
	now    func() time.Time
	log    *slog.Logger
}

// Option customises a BorrowingService.
type Option func(*BorrowingService)

// WithClock replaces time.Now; the date part of its result in UTC is "today".
func WithClock(now func() time.Time) Option {
	return func(s *BorrowingService) { s.now = now }
}

// WithLogger sets the logger used for publish failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *BorrowingService) { s.log = l }
}

// NewBorrowingService builds the service.  events may be nil, in which case
// nothing is published.
func NewBorrowingService(store BorrowingStore, events EventPublisher, opts ...Option) *BorrowingService {
	s := &BorrowingService{store: store, events: events, now: time.Now, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *BorrowingService) today() model.Date { return model.NewDate(s.now().UTC()) }

// List returns the borrowings visible to the caller ordered by id.
// Non-staff callers only ever see their own rows.
func (s *BorrowingService) List(ctx context.Context, caller Caller, in ListBorrowingsInput) ([]model.Borrowing, error) {
	if err := caller.check(); err != nil {
		return nil, err
	}
	f := repository.BorrowingFilter{Active: in.IsActive}
	if caller.IsStaff {
		f.UserID = in.UserID
	} else {
		uid := caller.UserID
		f.UserID = &uid
	}
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, storeError(err)
	}
	return out, nil
}

// Get returns a borrowing with its book.  Only the borrower and staff may
// read it.
func (s *BorrowingService) Get(ctx context.Context, caller Caller, id uint64) (model.BorrowingDetail, error) {
	if err := caller.check(); err != nil {
		return model.BorrowingDetail{}, err
	}
	d, err := s.store.GetDetail(ctx, id)
	if err != nil {
		return model.BorrowingDetail{}, storeError(err)
	}
	if !caller.canSee(d.UserID) {
		return model.BorrowingDetail{}, ErrForbidden
	}
	return d, nil
}

// Create borrows one copy of a book for the caller.
func (s *BorrowingService) Create(ctx context.Context, caller Caller, in CreateBorrowingInput) (model.Borrowing, error) {
	if err := caller.check(); err != nil {
		return model.Borrowing{}, err
	}
	b := model.Borrowing{
		BorrowDate:         s.today(),
		ExpectedReturnDate: in.ExpectedReturnDate,
		BookID:             in.BookID,
		UserID:             caller.UserID,
	}
	fe := b.ValidateDates()
	if in.BookID == 0 {
		if fe == nil {
			fe = model.FieldErrors{}
		}
		fe["book"] = "is required"
	}
	if len(fe) > 0 {
		return model.Borrowing{}, invalidFields(fe)
	}

	var title string
	err := s.store.WithinTx(ctx, func(tx repository.BorrowingTx) error {
		book, err := tx.LockBook(ctx, in.BookID)
		if errors.Is(err, repository.ErrNotFound) {
			return &ValidationError{Message: msgBookMissing, Fields: model.FieldErrors{"book": "does not exist"}}
		}
		if err != nil {
			return err
		}
		title = book.Title
		if !book.Available() {
			return outOfStock(book.Title)
		}
		if err := tx.InsertBorrowing(ctx, &b); err != nil {
			return err
		}
		if err := tx.DecrementInventory(ctx, book.ID); err != nil {
			if errors.Is(err, repository.ErrOutOfStock) {
				return outOfStock(book.Title)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return model.Borrowing{}, storeError(err)
	}

	s.publish(ctx, queue.EventBorrowingCreated, b, title)
	return b, nil
}

// Return marks the caller's borrowing as returned today and puts the copy
// back on the shelf.
func (s *BorrowingService) Return(ctx context.Context, caller Caller, id uint64) (model.BorrowingDetail, error) {
	if err := caller.check(); err != nil {
		return model.BorrowingDetail{}, err
	}
	today := s.today()
	err := s.store.WithinTx(ctx, func(tx repository.BorrowingTx) error {
		b, err := tx.LockBorrowing(ctx, id)
		if err != nil {
			return err
		}
		if b.UserID != caller.UserID {
			return ErrForbidden
		}
		if !b.IsActive() {
			return invalid(msgAlreadyReturned)
		}
		if err := tx.MarkReturned(ctx, id, today); err != nil {
			return err
		}
		return tx.IncrementInventory(ctx, b.BookID)
	})
	if err != nil {
		return model.BorrowingDetail{}, storeError(err)
	}

	d, err := s.store.GetDetail(ctx, id)
	if err != nil {
		return model.BorrowingDetail{}, storeError(err)
	}
	s.publish(ctx, queue.EventBorrowingReturned, d.Summary(), d.Book.Title)
	return d, nil
}

// publish is best effort: the transition has already committed.
func (s *BorrowingService) publish(ctx context.Context, typ string, b model.Borrowing, title string) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := queue.NewBorrowingEvent(typ, b, title, s.now())
	if err := s.events.PublishBorrowing(ctx, ev); err != nil {
		s.log.Warn("publish borrowing event failed", "type", typ, "borrowing_id", b.ID, "err", err)
	}
}
