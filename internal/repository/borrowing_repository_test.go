package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-borrowing/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func bookRows(inventory int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "author", "cover", "inventory", "daily_fee"}).
		AddRow(5, "Dune", "Frank Herbert", "SOFT", inventory, "10.50")
}

func TestWithinTx_BorrowCommits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowingRepo(db)
	today := model.DateOf(2026, time.October, 14)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM books WHERE id=\? FOR UPDATE`).WithArgs(5).WillReturnRows(bookRows(2))
	mock.ExpectExec(`INSERT INTO borrowings`).
		WithArgs("2026-10-14", "2026-10-24", 5, 9).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(`UPDATE books SET inventory = inventory - 1 WHERE id=\? AND inventory > 0`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b := model.Borrowing{BorrowDate: today, ExpectedReturnDate: today.AddDays(10), BookID: 5, UserID: 9}
	err := repo.WithinTx(context.Background(), func(tx BorrowingTx) error {
		book, err := tx.LockBook(context.Background(), 5)
		if err != nil {
			return err
		}
		assert.Equal(t, 2, book.Inventory)
		assert.Equal(t, "10.50", book.DailyFee.StringFixed(2))
		if err := tx.InsertBorrowing(context.Background(), &b); err != nil {
			return err
		}
		return tx.DecrementInventory(context.Background(), 5)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_EmptyShelfRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowingRepo(db)
	today := model.DateOf(2026, time.October, 14)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO borrowings`).WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(`UPDATE books SET inventory = inventory - 1`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx BorrowingTx) error {
		b := model.Borrowing{BorrowDate: today, ExpectedReturnDate: today, BookID: 5, UserID: 9}
		if err := tx.InsertBorrowing(context.Background(), &b); err != nil {
			return err
		}
		return tx.DecrementInventory(context.Background(), 5)
	})
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_SecondReturnRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowingRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE borrowings SET actual_return_date=\? WHERE id=\? AND actual_return_date IS NULL`).
		WithArgs("2026-10-20", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx BorrowingTx) error {
		return tx.MarkReturned(context.Background(), 3, model.DateOf(2026, time.October, 20))
	})
	assert.ErrorIs(t, err, ErrAlreadyReturned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_MissingBook(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowingRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM books WHERE id=\? FOR UPDATE`).WithArgs(404).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx BorrowingTx) error {
		_, err := tx.LockBook(context.Background(), 404)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslate_MySQLErrors(t *testing.T) {
	assert.ErrorIs(t, translate(&mysql.MySQLError{Number: 1062, Message: "dup"}), ErrDuplicate)
	assert.ErrorIs(t, translate(&mysql.MySQLError{Number: 3819, Message: "books_inventory_chk"}), ErrCheckViolation)
	assert.ErrorIs(t, translate(&mysql.MySQLError{Number: 1452, Message: "fk"}), ErrMissingReference)

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
	assert.NoError(t, translate(nil))
}

func TestBuildBorrowingListQuery(t *testing.T) {
	uid := uint64(7)
	active := true

	q, args, err := buildBorrowingListQuery(BorrowingFilter{})
	require.NoError(t, err)
	assert.NotContains(t, q, "WHERE")
	assert.Empty(t, args)

	q, args, err = buildBorrowingListQuery(BorrowingFilter{UserID: &uid, Active: &active})
	require.NoError(t, err)
	assert.Contains(t, q, "`user_id` = ?")
	assert.Contains(t, q, "`actual_return_date` IS NULL")
	assert.Contains(t, q, "ORDER BY `id` ASC")
	require.Len(t, args, 1)
	assert.EqualValues(t, 7, args[0])

	returned := false
	q, _, err = buildBorrowingListQuery(BorrowingFilter{Active: &returned})
	require.NoError(t, err)
	assert.Contains(t, q, "`actual_return_date` IS NOT NULL")
}

func TestBorrowingRepo_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowingRepo(db)
	uid := uint64(9)

	rows := sqlmock.NewRows(borrowingColumnNames()).
		AddRow(1, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC), nil, 5, 9).
		AddRow(2, time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC), 5, 9)
	mock.ExpectQuery("SELECT .* FROM `borrowings`").WithArgs(uid).WillReturnRows(rows)

	out, err := repo.List(context.Background(), BorrowingFilter{UserID: &uid})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].IsActive())
	require.NotNil(t, out[1].ActualReturnDate)
	assert.Equal(t, "2026-10-05", out[1].ActualReturnDate.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func borrowingColumnNames() []string {
	names := make([]string, 0, len(borrowingColumns))
	for _, c := range borrowingColumns {
		names = append(names, c.(string))
	}
	return names
}
