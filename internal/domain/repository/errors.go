package repository

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrNetwork         = errors.New("network error")
	ErrServer          = errors.New("server error")
	ErrValidation      = errors.New("validation error")
	ErrDataUnavailable = errors.New("no data available")
)

// RequestError carries the kind of an upstream failure and its context.
type RequestError struct {
	Kind    error
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error kind.
func (e *RequestError) Is(target error) bool { return target == e.Kind }

// Unwrap returns underlying error.
func (e *RequestError) Unwrap() error { return e.Err }

// NewRequestError builds a RequestError of the given kind.
func NewRequestError(kind error, op string, err error) *RequestError {
	return &RequestError{Kind: kind, Op: op, Err: err}
}

// IsTransient reports whether retrying the same call may succeed.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}
