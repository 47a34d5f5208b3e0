package ledger

import "errors"

// Epsilon tolerance for comparing float balances. Package prices and hours are
// floats; required - available must exceed this before a debit is refused.
const Epsilon = 1e-6

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrStaleLine           = errors.New("ledger: monthly line not usable for customer")
	ErrCustomerNotFound    = errors.New("ledger: customer not found")
	ErrInvalidAmount       = errors.New("ledger: amount must be positive")
)

func UnitsNeeded(hours, deductionFactor float64) float64 {
	if deductionFactor <= 0 {
		deductionFactor = 1
	}
	return hours * deductionFactor
}

// Sufficient reports whether available covers required within Epsilon.
func Sufficient(required, available float64) bool {
	return required-available <= Epsilon
}

// ClampZero snaps residual float noise around zero to exactly zero so a fully
// consumed balance never goes negative.
func ClampZero(v float64) float64 {
	if v <= Epsilon {
		return 0
	}
	return v
}

// Exhausted reports whether a balance remainder counts as fully consumed.
func Exhausted(remaining float64) bool {
	return remaining <= Epsilon
}
