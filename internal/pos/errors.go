package pos

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrOutOfStock           = errors.New("product out of stock")
	ErrLineNotFound         = errors.New("product not in cart")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInsufficientTender   = errors.New("tendered amount is less than total")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrCorruptSnapshot      = errors.New("corrupt snapshot")
)
