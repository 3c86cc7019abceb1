package validator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
)

// vatRounding is the slack allowed between a declared tax amount and the
// one implied by the invoice's own rate.
var vatRounding = decimal.NewFromFloat(0.02)

// VATCheck contains the result of checking a payment's VAT consistency.
type VATCheck struct {
	Consistent  bool
	DeclaredTax decimal.Decimal // tax stated on the invoice, zero when absent
	ExpectedTax decimal.Decimal // tax implied by total and rate, zero when no rate
	Difference  decimal.Decimal // DeclaredTax - ExpectedTax
	Reason      string
}

// ExpectedTax returns the tax contained in a tax-inclusive total at rate:
// total - total/(1+rate), rounded to cents.
func ExpectedTax(total, rate decimal.Decimal) decimal.Decimal {
	net := total.Div(decimal.NewFromInt(1).Add(rate))
	return total.Sub(net).Round(2)
}

// CheckVAT checks that the invoice's declared tax agrees with its declared
// rate, and that a VAT rate carried by the transaction agrees with the
// invoice's. Missing VAT data on either side is not an inconsistency.
func CheckVAT(inv ledger.Invoice, tx ledger.Transaction) *VATCheck {
	check := &VATCheck{Consistent: true}

	if inv.TaxAmount != nil {
		check.DeclaredTax = inv.TaxAmount.Round(2)
	}

	if inv.VATRate != nil {
		check.ExpectedTax = ExpectedTax(inv.TotalAmount.Abs(), *inv.VATRate)

		if inv.TaxAmount != nil {
			check.Difference = check.DeclaredTax.Sub(check.ExpectedTax)
			if check.Difference.Abs().GreaterThan(vatRounding) {
				check.Consistent = false
				check.Reason = fmt.Sprintf("declared tax %s does not match %s%% of total (expected %s)",
					check.DeclaredTax.StringFixed(2), inv.VATRate.Mul(decimal.NewFromInt(100)).String(),
					check.ExpectedTax.StringFixed(2))
				return check
			}
		}

		if tx.VATRate != nil && !tx.VATRate.Equal(*inv.VATRate) {
			txTax := ExpectedTax(inv.TotalAmount.Abs(), *tx.VATRate)
			check.Consistent = false
			check.Difference = txTax.Sub(check.ExpectedTax)
			check.Reason = fmt.Sprintf("payment carries VAT rate %s%% but invoice declares %s%%",
				tx.VATRate.Mul(decimal.NewFromInt(100)).String(), inv.VATRate.Mul(decimal.NewFromInt(100)).String())
			return check
		}
	}

	if inv.VATRate == nil && inv.TaxAmount != nil && tx.VATRate != nil {
		implied := ExpectedTax(inv.TotalAmount.Abs(), *tx.VATRate)
		if check.DeclaredTax.Sub(implied).Abs().GreaterThan(vatRounding) {
			check.Consistent = false
			check.ExpectedTax = implied
			check.Difference = check.DeclaredTax.Sub(implied)
			check.Reason = fmt.Sprintf("declared tax %s does not match payment VAT rate %s%% (expected %s)",
				check.DeclaredTax.StringFixed(2), tx.VATRate.Mul(decimal.NewFromInt(100)).String(), implied.StringFixed(2))
		}
	}

	return check
}
