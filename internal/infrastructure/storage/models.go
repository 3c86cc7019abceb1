package storage

import (
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/anomaly"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/history"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
)

// Run statuses
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunSummary holds the outcome counts of a run
type RunSummary struct {
	Transactions     int `json:"transactions"`
	Invoices         int `json:"invoices"`
	BankAuto         int `json:"bank_auto"`
	BankSuggested    int `json:"bank_suggested"`
	InvoiceAuto      int `json:"invoice_auto"`
	InvoiceSuggested int `json:"invoice_suggested"`
	Anomalies        int `json:"anomalies"`
}

// Run represents a reconciliation run record
type Run struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	AsOf         time.Time  `json:"as_of"`
	DryRun       bool       `json:"dry_run"`
	Status       string     `json:"status"`
	Summary      RunSummary `json:"summary"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// RunResults is everything a non-dry run persists once it has finished
type RunResults struct {
	Matches   []MatchRecord
	Anomalies []anomaly.Anomaly
	// Histories holds only the supplier histories the run changed
	Histories history.Histories
}

// MatchKind says which matcher produced a match
type MatchKind string

const (
	KindBank    MatchKind = "bank"
	KindInvoice MatchKind = "invoice"
)

// MatchRecord is a stored pairing. For bank matches LeftID is the manual
// transaction and RightID the bank line; for invoice matches LeftID is the
// invoice and RightID the paying transaction.
type MatchRecord struct {
	ID               int64                  `json:"id"`
	RunID            string                 `json:"run_id"`
	Kind             MatchKind              `json:"kind"`
	LeftID           string                 `json:"left_id"`
	RightID          string                 `json:"right_id"`
	Confidence       float64                `json:"confidence"`
	Classification   matcher.Classification `json:"classification"`
	DateScore        float64                `json:"date_score"`
	AmountScore      float64                `json:"amount_score"`
	DescriptionScore float64                `json:"description_score"`
	LearnedBoost     float64                `json:"learned_boost"`
	Demotion         string                 `json:"demotion,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// BankMatchRecords flattens a bank reconciliation result, auto first.
func BankMatchRecords(result *matcher.BankResult) []MatchRecord {
	records := make([]MatchRecord, 0, len(result.AutoMatches)+len(result.SuggestedMatches))
	for _, group := range [][]matcher.BankMatch{result.AutoMatches, result.SuggestedMatches} {
		for _, m := range group {
			records = append(records, MatchRecord{
				Kind:             KindBank,
				LeftID:           m.Manual.ID,
				RightID:          m.Bank.ID,
				Confidence:       m.Confidence,
				Classification:   m.Classification,
				DateScore:        m.Scores.Date,
				AmountScore:      m.Scores.Amount,
				DescriptionScore: m.Scores.Description,
			})
		}
	}
	return records
}

// InvoiceMatchRecords flattens an invoice matching result, auto first.
func InvoiceMatchRecords(result *matcher.InvoiceResult) []MatchRecord {
	records := make([]MatchRecord, 0, len(result.AutoMatched)+len(result.Suggestions))
	for _, group := range [][]matcher.InvoiceMatch{result.AutoMatched, result.Suggestions} {
		for _, m := range group {
			records = append(records, MatchRecord{
				Kind:             KindInvoice,
				LeftID:           m.Invoice.ID,
				RightID:          m.Transaction.ID,
				Confidence:       m.Confidence,
				Classification:   m.Classification,
				DateScore:        m.Scores.Date,
				AmountScore:      m.Scores.Amount,
				DescriptionScore: m.Scores.Description,
				LearnedBoost:     m.LearnedBoost,
				Demotion:         m.Demotion,
			})
		}
	}
	return records
}
