package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCheckAmount_Exact(t *testing.T) {
	result := CheckAmount(d("-150.00"), d("150.00"), DefaultTolerance())

	assert.True(t, result.Valid)
	assert.True(t, d("150").Equal(result.Actual))
	assert.True(t, d("150").Equal(result.Expected))
	assert.True(t, result.Difference.IsZero())
	assert.Empty(t, result.Reason)
}

func TestCheckAmount_WithinPercent(t *testing.T) {
	// 1% of 1000 is 10, so a 9.99 gap passes
	result := CheckAmount(d("990.01"), d("1000"), DefaultTolerance())

	assert.True(t, result.Valid)
}

func TestCheckAmount_AbsoluteFloorForSmallAmounts(t *testing.T) {
	// 1% of 1.00 is one cent; the 2 cent floor applies
	result := CheckAmount(d("0.98"), d("1.00"), DefaultTolerance())

	assert.True(t, result.Valid, "2 cent difference should be within tolerance")
}

func TestCheckAmount_ShortPayment(t *testing.T) {
	result := CheckAmount(d("900"), d("1000"), DefaultTolerance())

	assert.False(t, result.Valid)
	assert.True(t, d("-100").Equal(result.Difference))
	assert.Contains(t, result.Reason, "less than invoiced")
	assert.Contains(t, result.Reason, "100.00")
}

func TestCheckAmount_OverPayment(t *testing.T) {
	result := CheckAmount(d("1050"), d("1000"), DefaultTolerance())

	assert.False(t, result.Valid)
	assert.True(t, d("50").Equal(result.Difference))
	assert.Contains(t, result.Reason, "exceeds invoiced")
}

func TestCheckPayments_Instalments(t *testing.T) {
	tests := []struct {
		name        string
		payments    []string
		expected    string
		expectValid bool
	}{
		{"three thirds", []string{"33.33", "33.33", "33.34"}, "100.00", true},
		{"missing instalment", []string{"50.00"}, "100.00", false},
		{"no payments", nil, "100.00", false},
		{"nothing due", nil, "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := make([]decimal.Decimal, 0, len(tt.payments))
			for _, p := range tt.payments {
				payments = append(payments, d(p))
			}

			result := CheckPayments(payments, d(tt.expected), DefaultTolerance())
			assert.Equal(t, tt.expectValid, result.Valid)
		})
	}
}

func TestTolerance_Bound(t *testing.T) {
	tol := Tolerance{Percent: d("1"), Absolute: d("0.02")}

	assert.True(t, d("10").Equal(tol.Bound(d("1000"))))
	assert.True(t, d("0.02").Equal(tol.Bound(d("1"))))
	assert.True(t, d("10").Equal(tol.Bound(d("-1000"))))
}
