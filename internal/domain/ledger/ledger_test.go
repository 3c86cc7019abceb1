package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"iso", "2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"french", "01/03/2026", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", "2026-03-01T10:30:00Z", time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"padded", "  2026-03-01 ", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(ParseDate(tt.in)))
		})
	}
}

func TestParseDate_Malformed(t *testing.T) {
	assert.True(t, ParseDate("").IsZero())
	assert.True(t, ParseDate("not a date").IsZero())
	assert.True(t, ParseDate("2026-13-45").IsZero())
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"150.00", "150", true},
		{"-42.5", "-42.5", true},
		{"1 234,56", "1234.56", true},
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"12,5 €", "12.5", true},
		{"abc", "0", false},
		{"", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestTransaction_IsExpense(t *testing.T) {
	assert.True(t, Transaction{Amount: decimal.NewFromInt(-10)}.IsExpense())
	assert.False(t, Transaction{Amount: decimal.NewFromInt(10)}.IsExpense())
	assert.True(t, Transaction{Amount: decimal.NewFromInt(10), Type: Expense}.IsExpense())
	assert.False(t, Transaction{Amount: decimal.NewFromInt(-10), Type: Income}.IsExpense())
}

func TestInvoice_PaymentAnchor(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, issued, Invoice{InvoiceDate: issued}.PaymentAnchor())
	assert.Equal(t, due, Invoice{InvoiceDate: issued, DueDate: due}.PaymentAnchor())
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 1, 11, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, 1, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}
