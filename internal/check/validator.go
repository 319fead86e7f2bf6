package check

import (
	"math/big"
	"regexp"
)

// decimalPattern accepts plain decimal notation with an optional exponent,
// the forms a big decimal constructor accepts. Fractions and hex are refused.
var decimalPattern = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)

// IsComplete reports whether r may be submitted: a capture date is set, the
// recipient is not blank and the amount is a decimal strictly above zero.
// It has no side effects and is meant to be re-evaluated after every edit.
func IsComplete(r *Record) bool {
	if r == nil {
		return false
	}
	return r.CaptureDate != nil && !isBlank(r.Recipient) && positiveAmount(r.Amount)
}

func positiveAmount(amount string) bool {
	if !decimalPattern.MatchString(amount) {
		return false
	}
	v, ok := new(big.Rat).SetString(amount)
	if !ok {
		return false
	}
	return v.Sign() > 0
}
