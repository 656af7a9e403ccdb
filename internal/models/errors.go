package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain. Handlers map these to HTTP statuses with
// errors.Is; richer conflict errors below carry context via errors.As.
var (
	ErrValidation       = errors.New("validation")
	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCartItemNotFound = errors.New("item not found in cart")
	ErrOrderNotFound    = errors.New("order not found")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrForbidden        = errors.New("forbidden")
)

// OutOfStockError reports a stock conflict with enough context for the
// caller to retry with an adjusted quantity.
type OutOfStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock: product %d has %d available, %d requested",
		e.ProductID, e.Available, e.Requested)
}

// InvalidTransitionError reports a rejected order status change.
type InvalidTransitionError struct {
	OrderID int64
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: order %d cannot move from %q to %q",
		e.OrderID, e.From, e.To)
}

// IsConflict reports whether err is a stock or transition conflict.
func IsConflict(err error) bool {
	var oos *OutOfStockError
	var it *InvalidTransitionError
	return errors.As(err, &oos) || errors.As(err, &it)
}
