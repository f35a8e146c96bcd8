package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

var (
	// ErrDuplicateUsername is returned when a username is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrInvalidReference is returned when a row points at a missing user.
	ErrInvalidReference = errors.New("referenced record does not exist")
	// ErrInvalidValue is returned when a column check constraint rejects a value.
	ErrInvalidValue = errors.New("value rejected by constraint")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"

	constraintUsername = "users_username_key"
	constraintEmail    = "users_email_key"
)

// translateError maps postgres constraint violations to repository errors.
// Anything else is returned unchanged.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		switch pqErr.Constraint {
		case constraintUsername:
			return ErrDuplicateUsername
		case constraintEmail:
			return ErrDuplicateEmail
		}
	case pqForeignKeyViolation:
		return ErrInvalidReference
	case pqCheckViolation:
		return ErrInvalidValue
	}
	return err
}
