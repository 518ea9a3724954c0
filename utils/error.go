package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeValidation          ErrorCode = "VALIDATION"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeInvalidState        ErrorCode = "INVALID_STATE"
	CodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	CodeInsufficientCredit  ErrorCode = "INSUFFICIENT_CREDIT"
	CodeConcurrencyConflict ErrorCode = "CONCURRENCY_CONFLICT"
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeInternal            ErrorCode = "INTERNAL"
)

var defaultMessages = map[ErrorCode]string{
	CodeValidation:          "invalid input",
	CodeNotFound:            "record not found",
	CodeInvalidState:        "operation not allowed in current state",
	CodeInvalidTransition:   "invalid status transition",
	CodeInsufficientCredit:  "insufficient credit available",
	CodeConcurrencyConflict: "record was modified concurrently, retry",
	CodeForbidden:           "forbidden",
	CodeInternal:            "internal error",
}

func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeInvalidTransition, CodeConcurrencyConflict:
		return http.StatusConflict
	case CodeInsufficientCredit:
		return http.StatusUnprocessableEntity
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// AppError is an expected business failure. The entity it concerns is left unchanged.
type AppError struct {
	Code    ErrorCode
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Code]
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches by code, so errors.Is(err, ErrInsufficientCredit) holds for any insufficient credit error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrValidation          = &AppError{Code: CodeValidation}
	ErrNotFound            = &AppError{Code: CodeNotFound}
	ErrInvalidState        = &AppError{Code: CodeInvalidState}
	ErrInvalidTransition   = &AppError{Code: CodeInvalidTransition}
	ErrInsufficientCredit  = &AppError{Code: CodeInsufficientCredit}
	ErrConcurrencyConflict = &AppError{Code: CodeConcurrencyConflict}
)

func NewValidationError(format string, args ...any) error {
	return &AppError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewValidationFieldsError(fields map[string]string) error {
	return &AppError{Code: CodeValidation, Message: "invalid input", Fields: fields}
}

func NewNotFoundError(resource string) error {
	return &AppError{Code: CodeNotFound, Message: resource + " not found"}
}

func NewInvalidStateError(format string, args ...any) error {
	return &AppError{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidTransitionError(entity string, action string, from string) error {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s %s in status %s", action, entity, from),
	}
}

func NewInsufficientCreditError(availableCents int64, requestedCents int64) error {
	if requestedCents <= 0 {
		return &AppError{Code: CodeInsufficientCredit, Message: "no credit available"}
	}
	return &AppError{
		Code:    CodeInsufficientCredit,
		Message: fmt.Sprintf("insufficient credit available: requested %d, available %d", requestedCents, availableCents),
	}
}

func NewConcurrencyConflictError(resource string) error {
	return &AppError{Code: CodeConcurrencyConflict, Message: resource + " was modified concurrently, retry"}
}

func NewForbiddenError(format string, args ...any) error {
	return &AppError{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// AsAppError unwraps err into an AppError; anything else is reported as INTERNAL.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Code: CodeInternal, Err: err}
}
