package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientPool means the pool cannot cover the per-region floor.
// It is always wrapped in a ValidationError.
var ErrInsufficientPool = errors.New("pool total is below floor times region count")

// ValidationError rejects bad input before anything is written.
type ValidationError struct {
	Err     error
	Field   string
	Message string
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// InvalidRegionError names a region id that does not exist.
type InvalidRegionError struct {
	RegionID int
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("invalid region id %d", e.RegionID)
}

// AllocationMismatchError is returned when a plan does not sum to the pool.
type AllocationMismatchError struct {
	Planned int
	Pool    int
}

func (e *AllocationMismatchError) Error() string {
	return fmt.Sprintf("allocation mismatch: planned %d officers, pool is %d", e.Planned, e.Pool)
}

// IsClientError reports whether err is caused by the caller's input.
func IsClientError(err error) bool {
	var ve *ValidationError
	var ie *InvalidRegionError
	var me *AllocationMismatchError
	return errors.As(err, &ve) || errors.As(err, &ie) || errors.As(err, &me)
}
