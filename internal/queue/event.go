// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/library-borrowing/internal/model"
)

// Event types carried in BorrowingEvent.Type.
const (
	EventBorrowingCreated  = "borrowing.created"
	EventBorrowingReturned = "borrowing.returned"
)

// BorrowingEvent is published after a borrowing is created or returned.
// It carries enough of the borrowing and its book for consumers to log or
// notify without querying the primary database.
type BorrowingEvent struct {
	Type               string `json:"type"`
	BorrowingID        uint64 `json:"borrowing_id"`
	BookID             uint64 `json:"book_id"`
	BookTitle          string `json:"book_title"`
	UserID             uint64 `json:"user_id"`
	BorrowDate         string `json:"borrow_date"`
	ExpectedReturnDate string `json:"expected_return_date"`
	ActualReturnDate   string `json:"actual_return_date,omitempty"`
	OccurredAt         string `json:"occurred_at"`
}

// NewBorrowingEvent snapshots b into an event of the given type.
func NewBorrowingEvent(typ string, b model.Borrowing, bookTitle string, at time.Time) BorrowingEvent {
	ev := BorrowingEvent{
		Type:               typ,
		BorrowingID:        b.ID,
		BookID:             b.BookID,
		BookTitle:          bookTitle,
		UserID:             b.UserID,
		BorrowDate:         b.BorrowDate.String(),
		ExpectedReturnDate: b.ExpectedReturnDate.String(),
		OccurredAt:         at.UTC().Format(time.RFC3339),
	}
	if b.ActualReturnDate != nil {
		ev.ActualReturnDate = b.ActualReturnDate.String()
	}
	return ev
}
