package service

import (
	"errors"
	"fmt"

	"github.com/sabyrkhan/cafe-pos/internal/domain"
)

// ErrConcurrency surfaces a write race (order number or token collision,
// or a status compare-and-set losing) that bounded retries could not resolve.
var ErrConcurrency = errors.New("concurrent modification could not be resolved")

// ValidationError is the caller's fault and is surfaced verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidStateError reports an operation attempted against an order whose
// current status forbids it.
type InvalidStateError struct {
	Current   domain.OrderStatus
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s an order in status %q", e.Attempted, e.Current)
}

// InvalidTransitionError reports a status transition outside the lifecycle table.
type InvalidTransitionError struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %q -> %q is not allowed", e.From, e.To)
}
