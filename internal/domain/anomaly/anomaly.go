// Package anomaly flags bookkeeping problems left over after matching:
// duplicates, unpaid or unexplained records, amount and VAT gaps between
// matched records, and unusually large expenses.
//
// Every rule runs independently, so one record may raise several anomalies.
// The detector reports; it never changes records or matches.
package anomaly

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type names the rule that raised an anomaly.
type Type string

const (
	DuplicateTransaction      Type = "duplicate_transaction"
	DuplicateInvoice          Type = "duplicate_invoice"
	TransactionWithoutInvoice Type = "transaction_without_invoice"
	InvoiceWithoutTransaction Type = "invoice_without_transaction"
	AmountGap                 Type = "amount_gap"
	VATGap                    Type = "vat_gap"
	IncoherentDate            Type = "incoherent_date"
	UnusualAmount             Type = "unusual_amount"
)

// typeOrder fixes the order anomalies are reported in.
var typeOrder = map[Type]int{
	DuplicateTransaction:      0,
	DuplicateInvoice:          1,
	TransactionWithoutInvoice: 2,
	InvoiceWithoutTransaction: 3,
	AmountGap:                 4,
	VATGap:                    5,
	IncoherentDate:            6,
	UnusualAmount:             7,
}

// Severity ranks how urgently an anomaly needs attention.
type Severity string

const (
	Critical Severity = "critical"
	Warning  Severity = "warning"
	Info     Severity = "info"
)

// Anomaly is one flagged problem.
type Anomaly struct {
	ID            string           `json:"id"`
	Type          Type             `json:"type"`
	Severity      Severity         `json:"severity"`
	TransactionID string           `json:"transaction_id,omitempty"`
	InvoiceID     string           `json:"invoice_id,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Expected      *decimal.Decimal `json:"expected_amount,omitempty"`
	Gap           *decimal.Decimal `json:"gap,omitempty"`
	Message       string           `json:"message"`
	DetectedAt    time.Time        `json:"detected_at"`
}

// Report is the output of one detection pass.
type Report struct {
	Anomalies  []Anomaly        `json:"anomalies"`
	BySeverity map[Severity]int `json:"by_severity"`
	Total      int              `json:"total"`
}

// OfType returns the anomalies raised by one rule, in report order.
func (r Report) OfType(t Type) []Anomaly {
	var out []Anomaly
	for _, a := range r.Anomalies {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// Count returns the number of anomalies at a severity.
func (r Report) Count(s Severity) int {
	return r.BySeverity[s]
}

func money(d decimal.Decimal) *decimal.Decimal {
	d = d.Round(2)
	return &d
}
