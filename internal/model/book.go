package model

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Cover is the binding of a book.
type Cover string

const (
	CoverSoft Cover = "SOFT"
	CoverHard Cover = "HARD"
)

// Valid reports whether c is one of the known bindings.
func (c Cover) Valid() bool {
	return c == CoverSoft || c == CoverHard
}

// maxTextLen is the VARCHAR(255) limit of title and author, in characters.
const maxTextLen = 255

// maxDailyFee is the largest value a DECIMAL(8,2) column can hold.
var maxDailyFee = decimal.RequireFromString("999999.99")

// Money is a fixed-point amount with two decimal places.  It scans from
// and writes to DECIMAL columns through the embedded decimal.Decimal and
// is rendered in JSON as a string such as "10.50".  Both string and
// numeric JSON input are accepted.
type Money struct {
	decimal.Decimal
}

// NewMoney parses a decimal string such as "10.50".
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

// MustMoney is NewMoney for constants; it panics on malformed input.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(2) + `"`), nil
}

// Book represents a row of the `books` table.
//
// Fields:
//
//	ID        – primary key identifier.
//	Title     – book title.
//	Author    – author name.
//	Cover     – SOFT or HARD binding.
//	Inventory – number of copies currently available to borrow.
//	DailyFee  – borrowing fee per day.
type Book struct {
	ID        uint64 `json:"id" db:"id"`
	Title     string `json:"title" db:"title"`
	Author    string `json:"author" db:"author"`
	Cover     Cover  `json:"cover" db:"cover"`
	Inventory int    `json:"inventory" db:"inventory"`
	DailyFee  Money  `json:"daily_fee" db:"daily_fee"`
}

// Validate checks the field constraints that are also declared as CHECK
// constraints on the books table.
func (b Book) Validate() FieldErrors {
	var fe FieldErrors
	if strings.TrimSpace(b.Title) == "" {
		fe = fe.add("title", "is required")
	} else if utf8.RuneCountInString(b.Title) > maxTextLen {
		fe = fe.add("title", "must be at most 255 characters")
	}
	if strings.TrimSpace(b.Author) == "" {
		fe = fe.add("author", "is required")
	} else if utf8.RuneCountInString(b.Author) > maxTextLen {
		fe = fe.add("author", "must be at most 255 characters")
	}
	if !b.Cover.Valid() {
		fe = fe.add("cover", "must be one of SOFT, HARD")
	}
	if b.Inventory < 0 {
		fe = fe.add("inventory", "must be greater than or equal to 0")
	}
	switch {
	case b.DailyFee.IsNegative():
		fe = fe.add("daily_fee", "must be greater than or equal to 0")
	case b.DailyFee.GreaterThan(maxDailyFee):
		fe = fe.add("daily_fee", "must be at most 999999.99")
	case !b.DailyFee.Equal(b.DailyFee.Truncate(2)):
		fe = fe.add("daily_fee", "must have at most 2 decimal places")
	}
	return fe
}

// Available reports whether at least one copy can be borrowed.
func (b Book) Available() bool { return b.Inventory > 0 }
