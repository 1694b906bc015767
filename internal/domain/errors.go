package domain

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrTransitionConflict = errors.New("illegal transition of order status")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrRemoteFailure      = errors.New("remote call failed")
	ErrForbidden          = errors.New("forbidden")
	ErrOrderNotFound      = errors.New("order not found")
	ErrProductNotFound    = errors.New("product not found")
)
