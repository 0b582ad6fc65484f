package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError reports malformed or missing input, including tax rule
// configuration problems. Nothing has been written when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing referenced entity (sale, sale item, variant).
type NotFoundError struct {
	Entity string
	Id     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Id)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrorRecordNotFound
}

func NewNotFoundError(entity string, id any) *NotFoundError {
	return &NotFoundError{Entity: entity, Id: id}
}

// ConflictError reports a state-machine violation: double cancel, over-return,
// stale purchase order transition.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError is distinguishable from plain validation failures so
// callers can offer a reduce-quantity path.
type InsufficientStockError struct {
	VariantId int
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %d: requested %s, available %s",
		e.VariantId, e.Requested.String(), e.Available.String())
}

// InternalError wraps persistence and other unexpected failures.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string { return "internal error: " + e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }

// WrapInternal classifies an error: taxonomy errors pass through untouched,
// anything else is treated as a store/internal failure.
func WrapInternal(err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		is *InsufficientStockError
		ie *InternalError
	)
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ce) || errors.As(err, &is) || errors.As(err, &ie) {
		return err
	}
	return &InternalError{Err: err}
}
