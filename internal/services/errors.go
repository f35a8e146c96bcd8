package services

import (
	"errors"
	"fmt"

	"github.com/soikot-shahriaar/server-maintenance-cms/internal/authz"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/session"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/store"
)

var (
	// ErrValidation wraps every input problem; see ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned for an unknown user, an inactive user
	// and a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrStore wraps unexpected persistence failures.
	ErrStore = errors.New("storage failure")
	// ErrExportDisabled is returned when no object storage is configured.
	ErrExportDisabled = errors.New("export storage is not configured")

	ErrNotFound          = store.ErrNotFound
	ErrDuplicateUsername = store.ErrDuplicateUsername
	ErrDuplicateEmail    = store.ErrDuplicateEmail
	ErrNotAuthenticated  = session.ErrNotAuthenticated
	ErrAccessDenied      = authz.ErrAccessDenied
)

// ValidationError names the offending field. It matches ErrValidation with
// errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// storeError classifies a repository error for callers of the services.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrDuplicateUsername),
		errors.Is(err, store.ErrDuplicateEmail):
		return err
	case errors.Is(err, store.ErrInvalidReference):
		return invalid("performed_by", "Performing user does not exist")
	case errors.Is(err, store.ErrInvalidValue):
		return invalid("", "A value was rejected by the database")
	default:
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
}

// Result is the outcome envelope returned to the presentation layer.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ResultFor builds the envelope for err, using okMessage on success.
func ResultFor(err error, okMessage string) Result {
	if err == nil {
		return Result{Success: true, Message: okMessage}
	}
	return Result{Success: false, Message: Message(err)}
}

// Message returns the user facing text for err. Internal causes are never
// included.
func Message(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrValidation):
		return "Invalid input"
	case errors.Is(err, ErrDuplicateUsername):
		return "Username already exists"
	case errors.Is(err, ErrDuplicateEmail):
		return "Email already exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, ErrNotAuthenticated):
		return "Please log in to continue"
	case errors.Is(err, ErrAccessDenied):
		return "Access denied"
	case errors.Is(err, ErrNotFound):
		return "Record not found"
	case errors.Is(err, ErrExportDisabled):
		return "Export is not available"
	default:
		return "An internal error occurred"
	}
}
