package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
)

func ptr(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestExpectedTax(t *testing.T) {
	assert.True(t, d("200").Equal(ExpectedTax(d("1200"), d("0.20"))))
	assert.True(t, d("10").Equal(ExpectedTax(d("110"), d("0.10"))))
	assert.True(t, d("0").Equal(ExpectedTax(d("100"), d("0"))))
}

func TestCheckVAT(t *testing.T) {
	tests := []struct {
		name       string
		invoice    ledger.Invoice
		tx         ledger.Transaction
		consistent bool
		reason     string
	}{
		{
			name:       "no VAT data anywhere",
			invoice:    ledger.Invoice{TotalAmount: d("1200")},
			tx:         ledger.Transaction{Amount: d("-1200")},
			consistent: true,
		},
		{
			name:       "declared tax agrees with rate",
			invoice:    ledger.Invoice{TotalAmount: d("1200"), TaxAmount: ptr("200"), VATRate: ptr("0.20")},
			tx:         ledger.Transaction{Amount: d("-1200")},
			consistent: true,
		},
		{
			name:       "same rate on both sides",
			invoice:    ledger.Invoice{TotalAmount: d("1200"), VATRate: ptr("0.20")},
			tx:         ledger.Transaction{Amount: d("-1200"), VATRate: ptr("0.2")},
			consistent: true,
		},
		{
			name:       "payment says 10% but invoice says 20%",
			invoice:    ledger.Invoice{TotalAmount: d("1200"), TaxAmount: ptr("200"), VATRate: ptr("0.20")},
			tx:         ledger.Transaction{Amount: d("-1200"), VATRate: ptr("0.10")},
			consistent: false,
			reason:     "payment carries VAT rate 10%",
		},
		{
			name:       "declared tax contradicts own rate",
			invoice:    ledger.Invoice{TotalAmount: d("1200"), TaxAmount: ptr("120"), VATRate: ptr("0.20")},
			tx:         ledger.Transaction{Amount: d("-1200")},
			consistent: false,
			reason:     "declared tax 120.00",
		},
		{
			name:       "rate only on payment, tax matches it",
			invoice:    ledger.Invoice{TotalAmount: d("110"), TaxAmount: ptr("10")},
			tx:         ledger.Transaction{Amount: d("-110"), VATRate: ptr("0.10")},
			consistent: true,
		},
		{
			name:       "rate only on payment, tax contradicts it",
			invoice:    ledger.Invoice{TotalAmount: d("120"), TaxAmount: ptr("20")},
			tx:         ledger.Transaction{Amount: d("-120"), VATRate: ptr("0.055")},
			consistent: false,
			reason:     "payment VAT rate 5.5%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckVAT(tt.invoice, tt.tx)

			assert.Equal(t, tt.consistent, got.Consistent)
			if tt.reason != "" {
				assert.Contains(t, got.Reason, tt.reason)
			} else {
				assert.Empty(t, got.Reason)
			}
		})
	}
}

func TestCheckVAT_ReportsGap(t *testing.T) {
	inv := ledger.Invoice{TotalAmount: d("1200"), TaxAmount: ptr("150"), VATRate: ptr("0.20")}

	got := CheckVAT(inv, ledger.Transaction{})

	assert.False(t, got.Consistent)
	assert.True(t, d("150").Equal(got.DeclaredTax))
	assert.True(t, d("200").Equal(got.ExpectedTax))
	assert.True(t, d("-50").Equal(got.Difference))
}
