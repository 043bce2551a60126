package service

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound is returned for missing orders and for orders the
	// caller may not see
	ErrOrderNotFound = errors.New("order not found")

	// ErrProductNotFound is returned by catalog reads
	ErrProductNotFound = errors.New("product not found")

	// ErrRequestInProgress is returned when an idempotency key is still held
	// by an unfinished request
	ErrRequestInProgress = errors.New("a request with this idempotency key is in progress")
)

// ValidationError rejects malformed input before any transaction is opened
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ProductNotFoundError aborts an order that references a missing product
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// Is lets errors.Is(err, ErrProductNotFound) match
func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// InsufficientStockError aborts an order asking for more than is in stock
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (product %d): available=%d, requested=%d",
		e.Name, e.ProductID, e.Available, e.Requested)
}

// InvalidTransitionError rejects a status or payment change the order
// lifecycle does not allow
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}
