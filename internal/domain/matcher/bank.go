package matcher

import (
	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/similarity"
)

// ReconcileBank pairs manual transactions with bank transactions using
// DefaultConfig.
func ReconcileBank(manual, bank []ledger.Transaction) *BankResult {
	return MustNew(DefaultConfig()).ReconcileBank(manual, bank)
}

// ReconcileBank pairs each manual transaction, in input order, with the best
// still-available bank transaction. Auto and suggested pairings both consume
// the bank side. Money in is never paired with money out.
//
// Nothing is mutated; the caller persists links and flips auto-matched
// records to reconciled (see BankResult.ReconciledIDs).
func (m *Matcher) ReconcileBank(manual, bank []ledger.Transaction) *BankResult {
	result := &BankResult{
		AutoMatches:      []BankMatch{},
		SuggestedMatches: []BankMatch{},
		UnmatchedManual:  []ledger.Transaction{},
		UnmatchedBank:    []ledger.Transaction{},
	}

	weights := m.config.Weights()
	window := m.config.Window()

	ranked := m.rankCandidates(len(manual), len(bank), func(i, j int) (candidate, bool) {
		mt, bt := manual[i], bank[j]
		if mt.IsExpense() != bt.IsExpense() {
			return candidate{}, false
		}

		scores := Scores{
			Date:        similarity.DateScoreWithin(mt.Date, bt.Date, window),
			Amount:      similarity.AmountScore(mt.Amount, bt.Amount),
			Description: similarity.TextScore(mt.Description, bt.Description),
		}
		return candidate{
			scores:     scores,
			confidence: weights.Score(scores.Date, scores.Amount, scores.Description),
		}, true
	})

	consumed := make([]bool, len(bank))
	for i, mt := range manual {
		best, ok := firstAvailable(ranked[i], consumed)
		if !ok {
			result.UnmatchedManual = append(result.UnmatchedManual, mt)
			continue
		}

		consumed[best.index] = true
		match := BankMatch{
			Manual:         mt,
			Bank:           bank[best.index],
			Scores:         best.scores,
			Confidence:     best.confidence,
			Classification: m.config.Classify(best.confidence),
		}

		if match.Classification == Auto {
			result.AutoMatches = append(result.AutoMatches, match)
		} else {
			result.SuggestedMatches = append(result.SuggestedMatches, match)
		}

		m.logger.Debug("bank pairing",
			"manual_id", mt.ID,
			"bank_id", match.Bank.ID,
			"confidence", match.Confidence,
			"classification", match.Classification)
	}

	for j, bt := range bank {
		if !consumed[j] {
			result.UnmatchedBank = append(result.UnmatchedBank, bt)
		}
	}

	return result
}
