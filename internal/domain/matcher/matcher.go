// Package matcher pairs bookkeeping records:
//   - manual transactions with imported bank transactions (reconciliation)
//   - supplier invoices with the bank transactions that paid them
//
// Both matchers score every candidate with the same weighted formula
// (amount, date, description), classify the best one as auto, suggested or
// unmatched, and assign greedily in input order so a record is consumed by
// at most one pairing per run.
//
// Example usage:
//
//	m, err := matcher.New(matcher.DefaultConfig())
//	if err != nil {
//		return err // bad thresholds or weights
//	}
//	result := m.MatchInvoices(invoices, transactions, histories)
//	for _, match := range result.AutoMatched {
//		// mark match.Invoice as paid
//	}
package matcher

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Matcher scores and assigns candidate pairings. It holds no per-run state
// and is safe for concurrent use.
type Matcher struct {
	config Config
	logger *slog.Logger
}

// Option customises a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New validates config and returns a matcher using it.
func New(config Config, opts ...Option) (*Matcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &Matcher{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MustNew is New for configs known to be valid, such as DefaultConfig.
func MustNew(config Config, opts ...Option) *Matcher {
	m, err := New(config, opts...)
	if err != nil {
		panic(fmt.Sprintf("matcher: %v", err))
	}
	return m
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() Config {
	return m.config
}

func (m *Matcher) workers() int {
	if m.config.Workers > 0 {
		return m.config.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// candidate is one scored column for a row being matched.
type candidate struct {
	index      int
	scores     Scores
	boost      float64
	confidence float64
}

// rankCandidates scores every row against every column in parallel and
// returns, per row, the candidates at or above the suggested threshold
// ordered by confidence descending then column index ascending. Rows are
// independent and the ordering is total, so the worker count never changes
// the result.
func (m *Matcher) rankCandidates(rows, cols int, score func(row, col int) (candidate, bool)) [][]candidate {
	ranked := make([][]candidate, rows)

	var g errgroup.Group
	g.SetLimit(m.workers())
	for i := 0; i < rows; i++ {
		g.Go(func() error {
			var kept []candidate
			for j := 0; j < cols; j++ {
				c, ok := score(i, j)
				if !ok || c.confidence < m.config.SuggestedThreshold {
					continue
				}
				c.index = j
				kept = append(kept, c)
			}
			slices.SortStableFunc(kept, func(a, b candidate) int {
				if c := cmp.Compare(b.confidence, a.confidence); c != 0 {
					return c
				}
				return cmp.Compare(a.index, b.index)
			})
			ranked[i] = kept
			return nil
		})
	}
	_ = g.Wait() // scoring never fails

	return ranked
}

// firstAvailable returns the best candidate whose column is not consumed.
func firstAvailable(ranked []candidate, consumed []bool) (candidate, bool) {
	for _, c := range ranked {
		if !consumed[c.index] {
			return c, true
		}
	}
	return candidate{}, false
}
