package usecases

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountCheck is the result of validating one keystroke's worth of input.
// Invalid input is rejected, never clamped.
type AmountCheck struct {
	Valid   bool
	Message string
}

// AmountValidator validates USD amount entry for one payment rail. Minimum
// and maximum messages are mutually exclusive and recomputed per input.
type AmountValidator struct {
	MinimumUsd      decimal.Decimal
	MaximumUsd      decimal.Decimal
	DisplayDecimals int32
}

// NewAmountValidator creates a validator for a rail's USD bounds.
func NewAmountValidator(minimumUsd, maximumUsd float64, displayDecimals int32) AmountValidator {
	return AmountValidator{
		MinimumUsd:      decimal.NewFromFloat(minimumUsd),
		MaximumUsd:      decimal.NewFromFloat(maximumUsd),
		DisplayDecimals: displayDecimals,
	}
}

// Check validates the raw input string.
func (v AmountValidator) Check(input string) AmountCheck {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return AmountCheck{Message: "Enter a valid amount"}
	}
	if d.Exponent() < -v.DisplayDecimals {
		return AmountCheck{Message: "Too many decimal places"}
	}
	if !d.IsPositive() {
		return AmountCheck{Message: "Enter a valid amount"}
	}
	if d.Cmp(v.MinimumUsd) < 0 {
		return AmountCheck{Message: "Minimum " + v.MinimumUsd.String() + " USD"}
	}
	if d.Cmp(v.MaximumUsd) > 0 {
		return AmountCheck{Message: "Maximum " + v.MaximumUsd.String() + " USD"}
	}
	return AmountCheck{Valid: true}
}
