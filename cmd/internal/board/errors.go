package board

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage_unavailable")
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Kind must be one of the sentinel kinds above.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

func invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

func notFound(op, resource string) error {
	return OpError{Op: op, Kind: ErrNotFound, Msg: resource}
}

func forbidden(op string) error {
	return OpError{Op: op, Kind: ErrForbidden}
}

func conflict(op, field string) error {
	return OpError{Op: op, Kind: ErrConflict, Msg: field}
}

// storage wraps an underlying persistence failure. The cause is kept in the
// message only; callers dispatch on the kind, not the driver error.
func storage(op string, err error) error {
	return OpError{Op: op, Kind: ErrStorage, Msg: err.Error()}
}

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsForbidden reports whether err represents ErrForbidden.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsConflict reports whether err represents ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsStorage reports whether err represents ErrStorage.
func IsStorage(err error) bool { return errors.Is(err, ErrStorage) }
