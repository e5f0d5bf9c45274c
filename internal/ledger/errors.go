package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized       = errors.New("ledger: no verified author")
	ErrInvalidCandidate   = errors.New("ledger: invalid candidate")
	ErrStorageUnavailable = errors.New("ledger: storage unavailable")
	ErrIntegrityViolation = errors.New("ledger: integrity violation")
	ErrSealTimeout        = errors.New("ledger: seal timeout")
)

// IntegrityError names the first block that failed validation.
type IntegrityError struct {
	Index  int64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v at block %d: %s", ErrIntegrityViolation, e.Index, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrityViolation
}
