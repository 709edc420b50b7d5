// Package service holds the book catalog and borrowing lifecycle rules.
// Every operation takes the caller explicitly and returns one of the
// errors below (or a *ValidationError) so the HTTP layer can map it to a
// status code without knowing the rules.
package service

import (
	"errors"

	"github.com/iliyamo/library-borrowing/internal/model"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
)

// Messages returned to clients for the borrowing business rules.
const (
	msgAlreadyReturned = "The book has already been returned"
	msgBookMissing     = "book does not exist"
	msgInvalidInput    = "invalid input"
)

// ValidationError reports a rejected payload or a violated business rule.
type ValidationError struct {
	Message string
	Fields  model.FieldErrors
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + e.Fields.String()
}

func invalid(msg string) *ValidationError { return &ValidationError{Message: msg} }

func invalidFields(fe model.FieldErrors) *ValidationError {
	return &ValidationError{Message: msgInvalidInput, Fields: fe}
}

func outOfStock(title string) *ValidationError {
	return invalid("All books with name '" + title + "' borrowing.")
}
