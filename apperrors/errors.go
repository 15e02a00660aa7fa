// Package apperrors holds the error kinds surfaced by the order pipeline.
// Each kind carries the identifiers known where it is raised so that callers
// log and map it without re-deriving context.
package apperrors

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Op      string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed: %s", e.Op, e.Message)
}

func Validation(op, format string, args ...any) error {
	return &ValidationError{Op: op, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Op       string
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s with id %d not found", e.Op, e.Resource, e.ID)
}

func NotFound(op, resource string, id int64) error {
	return &NotFoundError{Op: op, Resource: resource, ID: id}
}

// InsufficientStockError is raised while composing lines, before anything is written.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough quantity for product %q: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// NegativeStockError is raised when a decrement would drive stock below zero.
// The product quantity is unchanged when it is returned.
type NegativeStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("decrement of product %d by %d would leave negative stock (available %d)",
		e.ProductID, e.Requested, e.Available)
}

type DuplicateInvoiceError struct {
	OrderID int64
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("invoice for order %d already exists", e.OrderID)
}

type RenderError struct {
	OrderID int64
	Reason  string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render invoice for order %d: %s: %v", e.OrderID, e.Reason, e.Err)
	}
	return fmt.Sprintf("render invoice for order %d: %s", e.OrderID, e.Reason)
}

func (e *RenderError) Unwrap() error { return e.Err }

// DeliveryError describes a failed notification. It is recorded, never propagated
// out of the notification fan-out.
type DeliveryError struct {
	Kind      string
	Recipient string
	OrderID   int64
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s notification for order %d to %s: %v", e.Kind, e.OrderID, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Kind returns a short label for err, used for metrics and HTTP mapping.
func Kind(err error) string {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		stock      *InsufficientStockError
		negative   *NegativeStockError
		duplicate  *DuplicateInvoiceError
		render     *RenderError
		delivery   *DeliveryError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &stock):
		return "insufficient_stock"
	case errors.As(err, &negative):
		return "negative_stock"
	case errors.As(err, &duplicate):
		return "duplicate_invoice"
	case errors.As(err, &render):
		return "render"
	case errors.As(err, &delivery):
		return "delivery"
	default:
		return "internal"
	}
}
