package matcher

import (
	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
)

// Classification is the outcome of scoring a candidate pairing.
type Classification string

const (
	// Auto pairings are confident enough to accept without review
	Auto Classification = "auto"
	// Suggested pairings are shown to a human for confirmation
	Suggested Classification = "suggested"
	// Unmatched means no candidate cleared the suggested threshold
	Unmatched Classification = "unmatched"
)

// Scores is the per-criterion breakdown behind a confidence.
type Scores struct {
	Date        float64 `json:"date_score"`
	Amount      float64 `json:"amount_score"`
	Description float64 `json:"description_score"`
}

// BankMatch pairs a manual entry with the bank line it records.
type BankMatch struct {
	Manual         ledger.Transaction `json:"manual"`
	Bank           ledger.Transaction `json:"bank"`
	Scores         Scores             `json:"scores"`
	Confidence     float64            `json:"confidence"`
	Classification Classification     `json:"classification"`
}

// BankResult is the outcome of a bank reconciliation run.
type BankResult struct {
	AutoMatches      []BankMatch          `json:"auto_matches"`
	SuggestedMatches []BankMatch          `json:"suggested_matches"`
	UnmatchedManual  []ledger.Transaction `json:"unmatched_manual"`
	UnmatchedBank    []ledger.Transaction `json:"unmatched_bank"`
}

// ReconciledIDs lists the transaction ids the caller should move to
// reconciled. Only auto matches qualify.
func (r *BankResult) ReconciledIDs() []string {
	ids := make([]string, 0, len(r.AutoMatches)*2)
	for _, m := range r.AutoMatches {
		ids = append(ids, m.Manual.ID, m.Bank.ID)
	}
	return ids
}

// InvoiceMatch pairs a supplier invoice with the transaction that paid it.
type InvoiceMatch struct {
	Invoice        ledger.Invoice     `json:"invoice"`
	Transaction    ledger.Transaction `json:"transaction"`
	Scores         Scores             `json:"scores"`
	LearnedBoost   float64            `json:"learned_boost"` // share of Description owed to supplier history
	Confidence     float64            `json:"confidence"`
	Classification Classification     `json:"classification"`
	// Demotion explains why a pairing scoring Auto was kept as Suggested
	Demotion string `json:"demotion,omitempty"`
}

// InvoiceResult is the outcome of an invoice matching run.
type InvoiceResult struct {
	AutoMatched           []InvoiceMatch       `json:"auto_matched"`
	Suggestions           []InvoiceMatch       `json:"suggestions"`
	UnmatchedInvoices     []ledger.Invoice     `json:"unmatched_invoices"`
	UnmatchedTransactions []ledger.Transaction `json:"unmatched_transactions"`
}

// Pair identifies a matched invoice and transaction.
type Pair struct {
	InvoiceID     string `json:"invoice_id"`
	TransactionID string `json:"transaction_id"`
}

// AutoPairs returns the auto-matched pairs.
func (r *InvoiceResult) AutoPairs() []Pair {
	return pairsOf(r.AutoMatched)
}

// Pairs returns auto and suggested pairs, auto first.
func (r *InvoiceResult) Pairs() []Pair {
	return append(pairsOf(r.AutoMatched), pairsOf(r.Suggestions)...)
}

func pairsOf(matches []InvoiceMatch) []Pair {
	pairs := make([]Pair, 0, len(matches))
	for _, m := range matches {
		pairs = append(pairs, Pair{InvoiceID: m.Invoice.ID, TransactionID: m.Transaction.ID})
	}
	return pairs
}
