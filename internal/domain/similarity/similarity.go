// Package similarity computes the per-criterion scores used to pair
// bookkeeping records: date proximity, amount proximity and description
// similarity, each in [0,1], and their weighted combination.
//
// Every function here is pure. Malformed input (a zero date, a zero amount
// facing a non-zero one) scores 0 rather than failing.
package similarity

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
)

// Window holds the day buckets for date scoring. A settlement usually lands
// within 0-3 days of the booking.
type Window struct {
	CloseDays int // at or under this many days scores 0.9
	MaxDays   int // at or under this many days scores 0.7
}

// DefaultWindow is the 1-day / 3-day bucketing.
func DefaultWindow() Window {
	return Window{CloseDays: 1, MaxDays: 3}
}

// DateScore scores two dates using the default window.
func DateScore(d1, d2 time.Time) float64 {
	return DateScoreWithin(d1, d2, DefaultWindow())
}

// DateScoreWithin scores two dates by calendar-day distance:
// same day 1.0, within CloseDays 0.9, within MaxDays 0.7, otherwise 0.
func DateScoreWithin(d1, d2 time.Time, w Window) float64 {
	if d1.IsZero() || d2.IsZero() {
		return 0
	}

	days := ledger.DaysBetween(d1, d2)
	switch {
	case days == 0:
		return 1.0
	case days <= w.CloseDays:
		return 0.9
	case days <= w.MaxDays:
		return 0.7
	default:
		return 0
	}
}

var (
	onePercent  = decimal.NewFromFloat(0.01)
	fivePercent = decimal.NewFromFloat(0.05)
)

// AmountScore compares the magnitudes of two amounts: exact 1.0, within 1%
// 0.95, within 5% 0.7, otherwise 0. The relative difference is taken against
// the larger magnitude so the score is symmetric.
//
// A zero amount only matches another zero.
func AmountScore(a1, a2 decimal.Decimal) float64 {
	a1, a2 = a1.Abs(), a2.Abs()

	if a1.IsZero() || a2.IsZero() {
		if a1.IsZero() && a2.IsZero() {
			return 1.0
		}
		return 0
	}
	if a1.Equal(a2) {
		return 1.0
	}

	relative := a1.Sub(a2).Abs().Div(decimal.Max(a1, a2))
	switch {
	case relative.LessThanOrEqual(onePercent):
		return 0.95
	case relative.LessThanOrEqual(fivePercent):
		return 0.7
	default:
		return 0
	}
}

// editOptions is classic Levenshtein: every edit costs one.
var editOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// TextScore returns 1 minus the edit distance of the trimmed, lower-cased
// strings normalised by the longer one. Two empty strings score 1.
func TextScore(s1, s2 string) float64 {
	a := strings.ToLower(strings.TrimSpace(s1))
	b := strings.ToLower(strings.TrimSpace(s2))

	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1.0
	}

	distance := levenshtein.DistanceForStrings([]rune(a), []rune(b), editOptions)
	return 1 - float64(distance)/float64(longest)
}

// Weights combines the three criteria into one confidence.
type Weights struct {
	Date   float64
	Amount float64
	Text   float64
}

// DefaultWeights ranks amount first, date second and free text last: bank
// descriptions are often truncated and only break ties.
func DefaultWeights() Weights {
	return Weights{Date: 0.4, Amount: 0.5, Text: 0.1}
}

// Score returns the weighted combination, clamped to [0,1] and rounded to
// nine decimals so a nominal 0.8 compares equal to an 0.8 threshold.
func (w Weights) Score(dateS, amountS, textS float64) float64 {
	s := roundConfidence(w.Date*dateS + w.Amount*amountS + w.Text*textS)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

func roundConfidence(s float64) float64 {
	return math.Round(s*1e9) / 1e9
}

// WeightedScore combines scores with DefaultWeights.
func WeightedScore(dateS, amountS, textS float64) float64 {
	return DefaultWeights().Score(dateS, amountS, textS)
}
