package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMatchesByCode(t *testing.T) {
	err := fmt.Errorf("apply: %w", NewInsufficientCreditError(100, 250))

	assert.True(t, errors.Is(err, ErrInsufficientCredit))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "apply: insufficient credit available: requested 250, available 100", err.Error())

	appErr := AsAppError(err)
	assert.Equal(t, CodeInsufficientCredit, appErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code.HTTPStatus())
}

func TestAsAppErrorHidesUnexpectedErrors(t *testing.T) {
	appErr := AsAppError(errors.New("connection reset"))
	assert.Equal(t, CodeInternal, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code.HTTPStatus())
	assert.Equal(t, "internal error: connection reset", appErr.Error())
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeValidation:          http.StatusBadRequest,
		CodeNotFound:            http.StatusNotFound,
		CodeInvalidState:        http.StatusConflict,
		CodeInvalidTransition:   http.StatusConflict,
		CodeConcurrencyConflict: http.StatusConflict,
		CodeInsufficientCredit:  http.StatusUnprocessableEntity,
		CodeForbidden:           http.StatusForbidden,
	}
	for code, status := range cases {
		assert.Equal(t, status, code.HTTPStatus(), code)
	}
}

func TestNewInvalidTransitionError(t *testing.T) {
	err := NewInvalidTransitionError("credit note", "apply", "draft")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, "cannot apply credit note in status draft", err.Error())
	assert.Equal(t, "no credit available", NewInsufficientCreditError(0, 0).Error())
}
