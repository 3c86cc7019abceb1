// Package validator holds the consistency checks shared by the invoice
// matcher and the anomaly detector.
//
// The amount check confirms that what left the bank account covers what the
// invoice asked for. The VAT check confirms that an invoice's declared tax
// agrees with its own rate and with any VAT metadata on the payment.
package validator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tolerance is how far a payment may drift from the invoiced amount. The
// larger of the two bounds applies.
type Tolerance struct {
	Percent  decimal.Decimal // 1 means 1% of the expected amount
	Absolute decimal.Decimal // in currency units, e.g. 0.02
}

// DefaultTolerance allows 1% or 2 cents, whichever is larger.
func DefaultTolerance() Tolerance {
	return Tolerance{
		Percent:  decimal.NewFromInt(1),
		Absolute: decimal.NewFromFloat(0.02),
	}
}

// Bound returns the allowed absolute gap for an expected amount.
func (t Tolerance) Bound(expected decimal.Decimal) decimal.Decimal {
	relative := expected.Abs().Mul(t.Percent).Div(decimal.NewFromInt(100))
	return decimal.Max(relative, t.Absolute).Round(2)
}

// AmountCheck contains the result of comparing paid against expected.
type AmountCheck struct {
	// Valid is true if the gap is within tolerance
	Valid bool

	// Actual is the sum of the payments
	Actual decimal.Decimal

	// Expected is what the payments should sum to
	Expected decimal.Decimal

	// Difference is Actual - Expected
	Difference decimal.Decimal

	// Reason explains why the check failed (empty if valid)
	Reason string
}

// CheckPayments checks that payments (unsigned) sum to the expected amount
// within tolerance. Several payments cover instalments or split transfers.
func CheckPayments(payments []decimal.Decimal, expected decimal.Decimal, tol Tolerance) *AmountCheck {
	actual := decimal.Zero
	for _, p := range payments {
		actual = actual.Add(p.Abs())
	}
	actual = actual.Round(2)
	expected = expected.Abs().Round(2)

	diff := actual.Sub(expected)
	bound := tol.Bound(expected)

	if diff.Abs().LessThanOrEqual(bound) {
		return &AmountCheck{
			Valid:      true,
			Actual:     actual,
			Expected:   expected,
			Difference: diff,
		}
	}

	var reason string
	if diff.IsNegative() {
		reason = fmt.Sprintf("paid %s is less than invoiced %s - short by %s, possibly a partial payment",
			actual.StringFixed(2), expected.StringFixed(2), diff.Neg().StringFixed(2))
	} else {
		reason = fmt.Sprintf("paid %s exceeds invoiced %s by %s - possible fee or wrong invoice",
			actual.StringFixed(2), expected.StringFixed(2), diff.StringFixed(2))
	}

	return &AmountCheck{
		Valid:      false,
		Actual:     actual,
		Expected:   expected,
		Difference: diff,
		Reason:     reason,
	}
}

// CheckAmount is CheckPayments for a single payment.
func CheckAmount(paid, expected decimal.Decimal, tol Tolerance) *AmountCheck {
	return CheckPayments([]decimal.Decimal{paid}, expected, tol)
}
