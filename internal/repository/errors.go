// Package repository defines the SQL persistence layer and the error
// values shared by its repositories.  These sentinel values allow higher
// layers such as services and handlers to distinguish between different
// failure scenarios without inspecting driver errors.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key.
var ErrDuplicate = errors.New("duplicate entry")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrCheckViolation is returned when a write violates a CHECK constraint
// declared on the table.
var ErrCheckViolation = errors.New("check constraint violated")

// ErrMissingReference is returned when a foreign key points at a row
// that does not exist.
var ErrMissingReference = errors.New("referenced row does not exist")

// ErrOutOfStock is returned when a guarded inventory decrement finds no
// copy left.
var ErrOutOfStock = errors.New("no copies left")

// ErrAlreadyReturned is returned when marking a borrowing returned that
// already has a return date.
var ErrAlreadyReturned = errors.New("borrowing already returned")

// MySQL server error numbers mapped by translate.
const (
	mysqlDuplicateEntry     = 1062
	mysqlNoReferencedRowOld = 1216
	mysqlNoReferencedRow    = 1452
	mysqlCheckViolated      = 3819
)

// translate maps driver errors onto the sentinels above.  Errors it does
// not recognise are returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %s", ErrDuplicate, me.Message)
		case mysqlCheckViolated:
			return fmt.Errorf("%w: %s", ErrCheckViolation, me.Message)
		case mysqlNoReferencedRow, mysqlNoReferencedRowOld:
			return fmt.Errorf("%w: %s", ErrMissingReference, me.Message)
		}
	}
	return err
}

// expectOne turns an update or delete that touched no row into
// ErrNotFound.  The DSN sets clientFoundRows so matched rows count even
// when the written values are unchanged.
func expectOne(res sql.Result) error {
	return guard(res, ErrNotFound)
}
