package matcher

import (
	"math"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/history"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/similarity"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/validator"
)

// DemotionVAT marks an auto-scoring pairing held back for VAT inconsistency.
const DemotionVAT = "vat_inconsistent"

// MatchInvoices pairs each invoice, in input order, with the best
// still-available expense transaction.
//
// The description score compares the transaction description with the
// supplier name and is raised (capped at 1) when the description or account
// reference carries a fragment learned for that supplier. A pairing whose
// VAT data is inconsistent is never auto-confirmed: it is demoted to a
// suggestion with the reason attached.
//
// Identical inputs always produce identical output.
func (m *Matcher) MatchInvoices(invoices []ledger.Invoice, transactions []ledger.Transaction, histories history.Histories) *InvoiceResult {
	result := &InvoiceResult{
		AutoMatched:           []InvoiceMatch{},
		Suggestions:           []InvoiceMatch{},
		UnmatchedInvoices:     []ledger.Invoice{},
		UnmatchedTransactions: []ledger.Transaction{},
	}

	candidates := make([]ledger.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.IsExpense() && tx.Status != ledger.StatusDuplicate {
			candidates = append(candidates, tx)
		}
	}

	// Resolve histories once per invoice rather than once per cell.
	learned := make([]*history.SupplierHistory, len(invoices))
	for i, inv := range invoices {
		if sh, ok := histories.Lookup(inv.SupplierName); ok {
			learned[i] = &sh
		}
	}

	ranked := m.rankCandidates(len(invoices), len(candidates), func(i, j int) (candidate, bool) {
		return m.scoreInvoice(invoices[i], candidates[j], learned[i]), true
	})

	consumed := make([]bool, len(candidates))
	for i, inv := range invoices {
		best, ok := firstAvailable(ranked[i], consumed)
		if !ok {
			result.UnmatchedInvoices = append(result.UnmatchedInvoices, inv)
			continue
		}

		consumed[best.index] = true
		tx := candidates[best.index]
		match := InvoiceMatch{
			Invoice:        inv,
			Transaction:    tx,
			Scores:         best.scores,
			LearnedBoost:   best.boost,
			Confidence:     best.confidence,
			Classification: m.config.Classify(best.confidence),
		}

		if match.Classification == Auto {
			if vat := validator.CheckVAT(inv, tx); !vat.Consistent {
				match.Classification = Suggested
				match.Demotion = DemotionVAT + ": " + vat.Reason
			}
		}

		if match.Classification == Auto {
			result.AutoMatched = append(result.AutoMatched, match)
		} else {
			result.Suggestions = append(result.Suggestions, match)
		}

		m.logger.Debug("invoice pairing",
			"invoice_id", inv.ID,
			"transaction_id", tx.ID,
			"confidence", match.Confidence,
			"learned_boost", match.LearnedBoost,
			"classification", match.Classification,
			"demotion", match.Demotion)
	}

	for j, tx := range candidates {
		if !consumed[j] {
			result.UnmatchedTransactions = append(result.UnmatchedTransactions, tx)
		}
	}

	return result
}

// scoreInvoice scores one invoice against one transaction. The date is
// compared with the invoice date and, when set, the due date; the closer
// one counts.
func (m *Matcher) scoreInvoice(inv ledger.Invoice, tx ledger.Transaction, sh *history.SupplierHistory) candidate {
	window := m.config.Window()

	date := similarity.DateScoreWithin(inv.InvoiceDate, tx.Date, window)
	if !inv.DueDate.IsZero() {
		date = math.Max(date, similarity.DateScoreWithin(inv.DueDate, tx.Date, window))
	}

	text := similarity.TextScore(tx.Description, inv.SupplierName)
	description := text
	if sh != nil {
		description = math.Min(1, text+sh.Boost(tx.Description, tx.AccountRef, m.config.LearnedFragmentBoost))
	}

	scores := Scores{
		Date:        date,
		Amount:      similarity.AmountScore(inv.TotalAmount, tx.Amount),
		Description: description,
	}

	return candidate{
		scores:     scores,
		boost:      description - text,
		confidence: m.config.Weights().Score(scores.Date, scores.Amount, scores.Description),
	}
}
