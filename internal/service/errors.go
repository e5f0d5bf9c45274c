package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/ledger"
)

type AppError struct {
	HTTPStatus int
	Code       string
	Message    string
	Retryable  bool
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(status int, code, msg string, retryable bool, cause error) *AppError {
	return &AppError{
		HTTPStatus: status,
		Code:       code,
		Message:    msg,
		Retryable:  retryable,
		Cause:      cause,
	}
}

func IsCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

func Internal(msg string, cause error) *AppError {
	return NewAppError(http.StatusInternalServerError, "INTERNAL_ERROR", msg, true, cause)
}

func BadRequest(msg string, cause error) *AppError {
	return NewAppError(http.StatusBadRequest, "BAD_REQUEST", msg, false, cause)
}

// fromLedger maps chain store failures onto API errors.
func fromLedger(op string, err error) *AppError {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return NewAppError(http.StatusForbidden, "UNAUTHORIZED", "not authorized, log in first", false, err)
	case errors.Is(err, ledger.ErrInvalidCandidate):
		return BadRequest(err.Error(), err)
	case errors.Is(err, ledger.ErrSealTimeout):
		return NewAppError(http.StatusServiceUnavailable, "SEAL_TIMEOUT", "proof-of-work search exceeded its bound", true, err)
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return NewAppError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "ledger storage unavailable", true, err)
	case errors.Is(err, ledger.ErrIntegrityViolation):
		return NewAppError(http.StatusInternalServerError, "INTEGRITY_VIOLATION", "ledger integrity check failed", false, err)
	default:
		return Internal(op, err)
	}
}
