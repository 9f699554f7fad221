package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")

	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientCash  = errors.New("received amount is less than the amount due")
	ErrCheckoutInFlight  = errors.New("a checkout is already being submitted")
	ErrPaymentInProgress = errors.New("a payment session is already active")
	ErrNoActivePayment   = errors.New("no active payment session")
)
