package similarity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
)

func day(s string) time.Time {
	return ledger.ParseDate(s)
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDateScore(t *testing.T) {
	tests := []struct {
		name string
		d1   string
		d2   string
		want float64
	}{
		{"same day", "2026-01-10", "2026-01-10", 1.0},
		{"one day", "2026-01-10", "2026-01-11", 0.9},
		{"one day backwards", "2026-01-11", "2026-01-10", 0.9},
		{"two days", "2026-01-10", "2026-01-12", 0.7},
		{"three days", "2026-01-10", "2026-01-13", 0.7},
		{"four days", "2026-01-10", "2026-01-14", 0.0},
		{"five days", "2026-01-10", "2026-01-15", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DateScore(day(tt.d1), day(tt.d2)))
		})
	}
}

func TestDateScore_MalformedIsMaximallyDistant(t *testing.T) {
	assert.Equal(t, 0.0, DateScore(time.Time{}, day("2026-01-10")))
	assert.Equal(t, 0.0, DateScore(day("2026-01-10"), ledger.ParseDate("garbage")))
	assert.Equal(t, 0.0, DateScore(time.Time{}, time.Time{}))
}

func TestDateScoreWithin_CustomWindow(t *testing.T) {
	w := Window{CloseDays: 2, MaxDays: 7}

	assert.Equal(t, 0.9, DateScoreWithin(day("2026-01-10"), day("2026-01-12"), w))
	assert.Equal(t, 0.7, DateScoreWithin(day("2026-01-10"), day("2026-01-17"), w))
	assert.Equal(t, 0.0, DateScoreWithin(day("2026-01-10"), day("2026-01-18"), w))
}

func TestDateScore_IgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 1, 10, 22, 0, 0, 0, time.UTC)

	assert.Equal(t, 1.0, DateScore(morning, evening))
}

func TestAmountScore(t *testing.T) {
	tests := []struct {
		name string
		a1   string
		a2   string
		want float64
	}{
		{"exact", "200", "200", 1.0},
		{"sign ignored", "-200", "200", 1.0},
		{"half percent", "100", "100.5", 0.95},
		{"one percent", "100", "101", 0.95},
		{"three percent", "100", "103", 0.7},
		{"five percent", "100", "95", 0.7},
		{"six percent", "100", "94", 0.0},
		{"both zero", "0", "0", 1.0},
		{"zero against value", "0", "12.50", 0.0},
		{"value against zero", "12.50", "0", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountScore(amt(tt.a1), amt(tt.a2)))
		})
	}
}

func TestAmountScore_Symmetric(t *testing.T) {
	pairs := [][2]string{{"100", "104"}, {"57.30", "57.31"}, {"10", "20"}}
	for _, p := range pairs {
		assert.Equal(t, AmountScore(amt(p[0]), amt(p[1])), AmountScore(amt(p[1]), amt(p[0])))
	}
}

func TestTextScore(t *testing.T) {
	assert.Equal(t, 1.0, TextScore("", ""))
	assert.Equal(t, 1.0, TextScore("  ", ""))
	assert.Equal(t, 1.0, TextScore("Loyer Mars", "  loyer mars "))
	assert.Equal(t, 0.0, TextScore("abc", ""))
	assert.InDelta(t, 0.75, TextScore("abcd", "abce"), 1e-9)
	assert.InDelta(t, 0.0, TextScore("abc", "xyz"), 1e-9)
}

func TestTextScore_Unicode(t *testing.T) {
	// One substitution over five runes, not over byte length.
	assert.InDelta(t, 0.8, TextScore("Éclat", "eclat"), 1e-9)
}

func TestWeightedScore(t *testing.T) {
	got := WeightedScore(1.0, 0.95, 0.5)
	assert.InDelta(t, 0.925, got, 1e-9)
	assert.GreaterOrEqual(t, got, 0.8)
}

func TestWeights_ScoreLandsOnNominalValue(t *testing.T) {
	// 0.4*0.9 + 0.5*0.7 + 0.1*0.9 sums to 0.7999999999999999 in float64
	got := DefaultWeights().Score(0.9, 0.7, 0.9)

	assert.Equal(t, 0.8, got)
	assert.GreaterOrEqual(t, got, 0.8)
}

func TestWeights_ScoreClamped(t *testing.T) {
	w := Weights{Date: 1, Amount: 1, Text: 1}
	assert.Equal(t, 1.0, w.Score(1, 1, 1))
}

func TestReflexivity(t *testing.T) {
	for _, a := range []string{"0", "0.01", "150", "-99.99", "1234567.89"} {
		assert.Equal(t, 1.0, AmountScore(amt(a), amt(a)), a)
	}
	for _, d := range []string{"2026-01-01", "2026-02-28", "2024-02-29"} {
		assert.Equal(t, 1.0, DateScore(day(d), day(d)), d)
	}
}
