package http

import (
	"fmt"
	"net/http"
)

// AppError is an error rendered to clients in the APIResponse envelope.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// WithParam attaches a detail for the client, e.g. the failed operation.
// Empty values are skipped.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if value == nil || value == "" || value == 0 {
		return e
	}
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError keeps the cause for logs; it is never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func BadRequestError(message string) *AppError {
	return newAppError("ERR_BAD_REQUEST", http.StatusBadRequest, message)
}

func NotFoundError(message string) *AppError {
	return newAppError("ERR_NOT_FOUND", http.StatusNotFound, message)
}

// UnprocessableError reports a payload the chart backend refused.
func UnprocessableError(message string) *AppError {
	return newAppError("ERR_UNPROCESSABLE", http.StatusUnprocessableEntity, message)
}

// BadGatewayError reports a failed upstream call.
func BadGatewayError(message string) *AppError {
	return newAppError("ERR_UPSTREAM", http.StatusBadGateway, message)
}

func InternalError(message string) *AppError {
	return newAppError("ERR_INTERNAL", http.StatusInternalServerError, message)
}
