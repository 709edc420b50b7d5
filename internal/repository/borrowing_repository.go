package repository

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-borrowing/internal/model"
)

const tableBorrowings = "borrowings"

var borrowingColumns = []any{"id", "borrow_date", "expected_return_date", "actual_return_date", "book_id", "user_id"}

// BorrowingFilter narrows a borrowing listing.  A nil field applies no
// condition.  Active=true keeps rows without a return date, Active=false
// keeps returned rows.
type BorrowingFilter struct {
	UserID *uint64
	Active *bool
}

// BorrowingTx is the set of reads and writes that run inside a single
// borrow or return transaction.  Locking reads hold the row until the
// transaction ends, so concurrent borrowers of the same book serialize.
type BorrowingTx interface {
	LockBook(ctx context.Context, bookID uint64) (model.Book, error)
	LockBorrowing(ctx context.Context, id uint64) (model.Borrowing, error)
	InsertBorrowing(ctx context.Context, b *model.Borrowing) error
	MarkReturned(ctx context.Context, id uint64, on model.Date) error
	DecrementInventory(ctx context.Context, bookID uint64) error
	IncrementInventory(ctx context.Context, bookID uint64) error
}

// BorrowingRepo reads and writes the borrowings table.
type BorrowingRepo struct{ db *sqlx.DB }

func NewBorrowingRepo(db *sqlx.DB) *BorrowingRepo { return &BorrowingRepo{db: db} }

func buildBorrowingListQuery(f BorrowingFilter) (string, []any, error) {
	ds := goqu.Dialect(dialectMySQL).From(tableBorrowings).Prepared(true).
		Select(borrowingColumns...).
		Order(goqu.I("id").Asc())
	if f.UserID != nil {
		ds = ds.Where(goqu.C("user_id").Eq(*f.UserID))
	}
	if f.Active != nil {
		if *f.Active {
			ds = ds.Where(goqu.C("actual_return_date").IsNull())
		} else {
			ds = ds.Where(goqu.C("actual_return_date").IsNotNull())
		}
	}
	return ds.ToSQL()
}

// List returns the borrowings matching f ordered by id.
func (r *BorrowingRepo) List(ctx context.Context, f BorrowingFilter) ([]model.Borrowing, error) {
	q, args, err := buildBorrowingListQuery(f)
	if err != nil {
		return nil, err
	}
	out := make([]model.Borrowing, 0)
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

type borrowingDetailRow struct {
	model.Borrowing
	Title     string      `db:"title"`
	Author    string      `db:"author"`
	Cover     model.Cover `db:"cover"`
	Inventory int         `db:"inventory"`
	DailyFee  model.Money `db:"daily_fee"`
}

func (row borrowingDetailRow) detail() model.BorrowingDetail {
	return model.BorrowingDetail{
		ID:                 row.ID,
		BorrowDate:         row.BorrowDate,
		ExpectedReturnDate: row.ExpectedReturnDate,
		ActualReturnDate:   row.ActualReturnDate,
		Book: model.Book{
			ID:        row.BookID,
			Title:     row.Title,
			Author:    row.Author,
			Cover:     row.Cover,
			Inventory: row.Inventory,
			DailyFee:  row.DailyFee,
		},
		UserID: row.UserID,
	}
}

// GetDetail loads a borrowing together with the current state of its book.
func (r *BorrowingRepo) GetDetail(ctx context.Context, id uint64) (model.BorrowingDetail, error) {
	const q = `SELECT br.id, br.borrow_date, br.expected_return_date, br.actual_return_date,
                      br.book_id, br.user_id,
                      b.title, b.author, b.cover, b.inventory, b.daily_fee
               FROM borrowings br
               JOIN books b ON b.id = br.book_id
               WHERE br.id = ?`
	var row borrowingDetailRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return model.BorrowingDetail{}, translate(err)
	}
	return row.detail(), nil
}

// WithinTx runs fn inside a transaction.  The transaction commits when fn
// returns nil and rolls back otherwise, so the borrowing row and the
// inventory change are persisted together or not at all.
func (r *BorrowingRepo) WithinTx(ctx context.Context, fn func(tx BorrowingTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&borrowingTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type borrowingTx struct{ tx *sqlx.Tx }

func (t *borrowingTx) LockBook(ctx context.Context, bookID uint64) (model.Book, error) {
	var b model.Book
	err := t.tx.GetContext(ctx, &b,
		"SELECT id, title, author, cover, inventory, daily_fee FROM books WHERE id=? FOR UPDATE", bookID)
	return b, translate(err)
}

func (t *borrowingTx) LockBorrowing(ctx context.Context, id uint64) (model.Borrowing, error) {
	var b model.Borrowing
	err := t.tx.GetContext(ctx, &b,
		"SELECT id, borrow_date, expected_return_date, actual_return_date, book_id, user_id FROM borrowings WHERE id=? FOR UPDATE", id)
	return b, translate(err)
}

func (t *borrowingTx) InsertBorrowing(ctx context.Context, b *model.Borrowing) error {
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO borrowings (borrow_date, expected_return_date, book_id, user_id) VALUES (?,?,?,?)",
		b.BorrowDate, b.ExpectedReturnDate, b.BookID, b.UserID)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// MarkReturned only touches active rows; a second return is reported as
// ErrAlreadyReturned.
func (t *borrowingTx) MarkReturned(ctx context.Context, id uint64, on model.Date) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE borrowings SET actual_return_date=? WHERE id=? AND actual_return_date IS NULL", on, id)
	if err != nil {
		return translate(err)
	}
	return guard(res, ErrAlreadyReturned)
}

// DecrementInventory never drives inventory below zero; an empty shelf is
// reported as ErrOutOfStock.
func (t *borrowingTx) DecrementInventory(ctx context.Context, bookID uint64) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE books SET inventory = inventory - 1 WHERE id=? AND inventory > 0", bookID)
	if err != nil {
		return translate(err)
	}
	return guard(res, ErrOutOfStock)
}

func (t *borrowingTx) IncrementInventory(ctx context.Context, bookID uint64) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE books SET inventory = inventory + 1 WHERE id=?", bookID)
	if err != nil {
		return translate(err)
	}
	return guard(res, ErrNotFound)
}

func guard(res sql.Result, whenNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return whenNone
	}
	return nil
}
