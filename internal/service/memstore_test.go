package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/iliyamo/library-borrowing/internal/model"
	"github.com/iliyamo/library-borrowing/internal/queue"
	"github.com/iliyamo/library-borrowing/internal/repository"
)

// memStore is an in-memory BookStore and BorrowingStore.  WithinTx holds
// the store lock for the whole callback and restores a snapshot when the
// callback fails, which gives the same all-or-nothing result as a
// database transaction.
type memStore struct {
	mu         sync.Mutex
	books      map[uint64]model.Book
	borrowings map[uint64]model.Borrowing
	nextID     uint64

	failDecrement error
	lastFilter    repository.BorrowingFilter
}

func newMemStore(books ...model.Book) *memStore {
	m := &memStore{
		books:      map[uint64]model.Book{},
		borrowings: map[uint64]model.Borrowing{},
		nextID:     100,
	}
	for _, b := range books {
		m.books[b.ID] = b
	}
	return m
}

func (m *memStore) book(id uint64) model.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books[id]
}

func (m *memStore) borrowing(id uint64) (model.Borrowing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.borrowings[id]
	return b, ok
}

func (m *memStore) put(b model.Borrowing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.borrowings[b.ID] = b
}

// BorrowingStore

func (m *memStore) List(ctx context.Context, f repository.BorrowingFilter) ([]model.Borrowing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	out := make([]model.Borrowing, 0)
	for _, b := range m.borrowings {
		if f.UserID != nil && b.UserID != *f.UserID {
			continue
		}
		if f.Active != nil && b.IsActive() != *f.Active {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetDetail(ctx context.Context, id uint64) (model.BorrowingDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.borrowings[id]
	if !ok {
		return model.BorrowingDetail{}, repository.ErrNotFound
	}
	return model.BorrowingDetail{
		ID:                 b.ID,
		BorrowDate:         b.BorrowDate,
		ExpectedReturnDate: b.ExpectedReturnDate,
		ActualReturnDate:   b.ActualReturnDate,
		Book:               m.books[b.BookID],
		UserID:             b.UserID,
	}, nil
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx repository.BorrowingTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	books := make(map[uint64]model.Book, len(m.books))
	for k, v := range m.books {
		books[k] = v
	}
	borrowings := make(map[uint64]model.Borrowing, len(m.borrowings))
	for k, v := range m.borrowings {
		borrowings[k] = v
	}
	next := m.nextID

	if err := fn(memTx{m}); err != nil {
		m.books, m.borrowings, m.nextID = books, borrowings, next
		return err
	}
	return nil
}

type memTx struct{ m *memStore }

func (t memTx) LockBook(ctx context.Context, id uint64) (model.Book, error) {
	b, ok := t.m.books[id]
	if !ok {
		return model.Book{}, repository.ErrNotFound
	}
	return b, nil
}

func (t memTx) LockBorrowing(ctx context.Context, id uint64) (model.Borrowing, error) {
	b, ok := t.m.borrowings[id]
	if !ok {
		return model.Borrowing{}, repository.ErrNotFound
	}
	return b, nil
}

func (t memTx) InsertBorrowing(ctx context.Context, b *model.Borrowing) error {
	t.m.nextID++
	b.ID = t.m.nextID
	t.m.borrowings[b.ID] = *b
	return nil
}

func (t memTx) MarkReturned(ctx context.Context, id uint64, on model.Date) error {
	b, ok := t.m.borrowings[id]
	if !ok || !b.IsActive() {
		return repository.ErrAlreadyReturned
	}
	b.ActualReturnDate = &on
	t.m.borrowings[id] = b
	return nil
}

func (t memTx) DecrementInventory(ctx context.Context, id uint64) error {
	if t.m.failDecrement != nil {
		return t.m.failDecrement
	}
	b := t.m.books[id]
	if b.Inventory <= 0 {
		return repository.ErrOutOfStock
	}
	b.Inventory--
	t.m.books[id] = b
	return nil
}

func (t memTx) IncrementInventory(ctx context.Context, id uint64) error {
	b, ok := t.m.books[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Inventory++
	t.m.books[id] = b
	return nil
}

// memBooks is an in-memory BookStore.
type memBooks struct {
	books  map[uint64]model.Book
	nextID uint64
	writes int
}

func newMemBooks(books ...model.Book) *memBooks {
	m := &memBooks{books: map[uint64]model.Book{}, nextID: 10}
	for _, b := range books {
		m.books[b.ID] = b
	}
	return m
}

func (m *memBooks) List(ctx context.Context, q repository.BookQuery) ([]model.Book, int64, error) {
	out := make([]model.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	start := (q.Page - 1) * q.PageSize
	if start > len(out) {
		start = len(out)
	}
	end := start + q.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (m *memBooks) GetByID(ctx context.Context, id uint64) (model.Book, error) {
	b, ok := m.books[id]
	if !ok {
		return model.Book{}, repository.ErrNotFound
	}
	return b, nil
}

func (m *memBooks) Create(ctx context.Context, b *model.Book) error {
	m.writes++
	m.nextID++
	b.ID = m.nextID
	m.books[b.ID] = *b
	return nil
}

func (m *memBooks) Update(ctx context.Context, b model.Book) error {
	if _, ok := m.books[b.ID]; !ok {
		return repository.ErrNotFound
	}
	m.writes++
	m.books[b.ID] = b
	return nil
}

func (m *memBooks) Delete(ctx context.Context, id uint64) error {
	if _, ok := m.books[id]; !ok {
		return repository.ErrNotFound
	}
	m.writes++
	delete(m.books, id)
	return nil
}

// recordingPublisher remembers every event it receives.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BorrowingEvent
	err    error
}

func (p *recordingPublisher) PublishBorrowing(ctx context.Context, ev queue.BorrowingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

var errBoom = errors.New("boom")
