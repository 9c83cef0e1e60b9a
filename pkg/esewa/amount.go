package esewa

import (
	"errors"
	"math"
	"strconv"
)

var (
	// ErrNegativeAmount is returned when a monetary input is below zero.
	ErrNegativeAmount = errors.New("amount cannot be negative")
	// ErrInvalidAmount is returned for NaN or infinite monetary inputs.
	ErrInvalidAmount = errors.New("amount is not a finite number")
)

// FormatAmount renders v the way eSewa reconstructs it when validating a
// signature: whole numbers carry no decimal point ("100"), anything else uses
// the shortest decimal form that round-trips ("100.5").
func FormatAmount(v float64) string {
	if v == 0 {
		// also folds -0
		return "0"
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func validateAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidAmount
	}
	if v < 0 {
		return ErrNegativeAmount
	}
	return nil
}
