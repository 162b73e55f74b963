// Package businessflow contains the core business logic and use cases for counter workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Counter validation errors — rejected before touching storage
	ErrInvalidColor  = errors.New("color must be one of: red, blue")
	ErrInvalidAmount = errors.New("increment amount must be a positive integer")

	// Counter data-integrity errors — should not occur after seeding
	ErrCounterNotFound = errors.New("counter not found")

	// Batch errors
	ErrBatchEmpty    = errors.New("batch must contain at least one increment")
	ErrBatchTooLarge = errors.New("batch exceeds the maximum number of increments")

	// History filter errors
	ErrInvalidDateFormat     = errors.New("date must be in RFC3339 format")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsInvalidColor(err error) bool {
	return errors.Is(err, ErrInvalidColor)
}

func IsInvalidAmount(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}

func IsCounterNotFound(err error) bool {
	return errors.Is(err, ErrCounterNotFound)
}

func IsBatchEmpty(err error) bool {
	return errors.Is(err, ErrBatchEmpty)
}

func IsBatchTooLarge(err error) bool {
	return errors.Is(err, ErrBatchTooLarge)
}

func IsInvalidDateFormat(err error) bool {
	return errors.Is(err, ErrInvalidDateFormat)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
