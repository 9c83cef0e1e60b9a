package utils

import "errors"

// Common application errors used across services.
var (
	ErrInvalidToken            = errors.New("INVALID_TOKEN")
	ErrInvalidAmount           = errors.New("INVALID_AMOUNT")
	ErrPaymentNotFound         = errors.New("PAYMENT_NOT_FOUND")
	ErrPaymentAlreadyCompleted = errors.New("PAYMENT_ALREADY_COMPLETED")
	ErrForbidden               = errors.New("FORBIDDEN")
	ErrInvalidResponse         = errors.New("INVALID_GATEWAY_RESPONSE")
	ErrSignatureMismatch       = errors.New("SIGNATURE_MISMATCH")
	ErrPaymentNotComplete      = errors.New("PAYMENT_NOT_COMPLETE")
	ErrAmountMismatch          = errors.New("AMOUNT_MISMATCH")
	ErrProductCodeMismatch     = errors.New("PRODUCT_CODE_MISMATCH")
	ErrGatewayUnavailable      = errors.New("GATEWAY_UNAVAILABLE")
)
