package model

// Borrowing represents a row of the `borrowings` table.  A borrowing is
// active while ActualReturnDate is nil and returned once it is set; the
// transition happens exactly once.
//
// Fields:
//
//	ID                 – primary key identifier.
//	BorrowDate         – day the borrowing was created.
//	ExpectedReturnDate – day the borrower promised to return the copy.
//	ActualReturnDate   – day the copy came back (nil while active).
//	BookID             – borrowed book.
//	UserID             – borrower.
type Borrowing struct {
	ID                 uint64 `json:"id" db:"id"`
	BorrowDate         Date   `json:"borrow_date" db:"borrow_date"`
	ExpectedReturnDate Date   `json:"expected_return_date" db:"expected_return_date"`
	ActualReturnDate   *Date  `json:"actual_return_date" db:"actual_return_date"`
	BookID             uint64 `json:"book_id" db:"book_id"`
	UserID             uint64 `json:"user_id" db:"user_id"`
}

// IsActive reports whether the borrowed copy has not been returned yet.
func (b Borrowing) IsActive() bool { return b.ActualReturnDate == nil }

// ValidateDates checks the date ordering rules of a borrowing.  Late
// returns are allowed: the actual return date only has to be on or
// after the borrow date.
func (b Borrowing) ValidateDates() FieldErrors {
	var fe FieldErrors
	if b.BorrowDate.IsZero() {
		fe = fe.add("borrow_date", "is required")
	}
	if b.ExpectedReturnDate.IsZero() {
		fe = fe.add("expected_return_date", "is required")
	} else if b.ExpectedReturnDate.Before(b.BorrowDate) {
		fe = fe.add("expected_return_date", "must not be before the borrow date")
	}
	if b.ActualReturnDate != nil && b.ActualReturnDate.Before(b.BorrowDate) {
		fe = fe.add("actual_return_date", "must not be before the borrow date")
	}
	return fe
}

// BorrowingDetail is a borrowing with the borrowed book embedded.
type BorrowingDetail struct {
	ID                 uint64 `json:"id"`
	BorrowDate         Date   `json:"borrow_date"`
	ExpectedReturnDate Date   `json:"expected_return_date"`
	ActualReturnDate   *Date  `json:"actual_return_date"`
	Book               Book   `json:"book"`
	UserID             uint64 `json:"user"`
}

// Summary drops the embedded book.
func (d BorrowingDetail) Summary() Borrowing {
	return Borrowing{
		ID:                 d.ID,
		BorrowDate:         d.BorrowDate,
		ExpectedReturnDate: d.ExpectedReturnDate,
		ActualReturnDate:   d.ActualReturnDate,
		BookID:             d.Book.ID,
		UserID:             d.UserID,
	}
}
