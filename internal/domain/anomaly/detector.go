package anomaly

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/history"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/similarity"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/validator"
)

// Detector runs the anomaly rules.
type Detector struct {
	config matcher.Config
	logger *slog.Logger
	now    func() time.Time
}

// Option customises a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock overrides the time stamped on detected anomalies.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDetector validates config and returns a detector using it.
func NewDetector(config matcher.Config, opts ...Option) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// detection carries the indexes shared by the rules of one pass.
type detection struct {
	transactions []ledger.Transaction
	invoices     []ledger.Invoice
	pairs        []matcher.Pair
	asOf         time.Time

	txByID     map[string]ledger.Transaction
	invByID    map[string]ledger.Invoice
	matchedTx  map[string]bool
	matchedInv map[string]bool
}

// Detect runs every rule over one snapshot. pairs are the invoice and
// transaction ids matched by the run; asOf is the date payment windows are
// measured against.
func (d *Detector) Detect(transactions []ledger.Transaction, invoices []ledger.Invoice, pairs []matcher.Pair, asOf time.Time) Report {
	s := &detection{
		transactions: transactions,
		invoices:     invoices,
		pairs:        pairs,
		asOf:         asOf,
		txByID:       make(map[string]ledger.Transaction, len(transactions)),
		invByID:      make(map[string]ledger.Invoice, len(invoices)),
		matchedTx:    make(map[string]bool, len(pairs)),
		matchedInv:   make(map[string]bool, len(pairs)),
	}
	for _, tx := range transactions {
		s.txByID[tx.ID] = tx
	}
	for _, inv := range invoices {
		s.invByID[inv.ID] = inv
	}
	for _, p := range pairs {
		s.matchedTx[p.TransactionID] = true
		s.matchedInv[p.InvoiceID] = true
	}

	rules := []struct {
		name string
		run  func(*detection) []Anomaly
	}{
		{"duplicate transactions", d.duplicateTransactions},
		{"duplicate invoices", d.duplicateInvoices},
		{"transactions without invoice", d.transactionsWithoutInvoice},
		{"invoices without transaction", d.invoicesWithoutTransaction},
		{"matched pairs", d.pairGaps},
		{"unusual amounts", d.unusualAmounts},
	}

	detectedAt := d.now()
	var anomalies []Anomaly
	for _, rule := range rules {
		found := rule.run(s)
		d.logger.Debug("anomaly rule done", "rule", rule.name, "found", len(found))
		anomalies = append(anomalies, found...)
	}

	for i := range anomalies {
		anomalies[i].ID = uuid.NewString()
		anomalies[i].DetectedAt = detectedAt
	}

	slices.SortStableFunc(anomalies, func(a, b Anomaly) int {
		if c := cmp.Compare(typeOrder[a.Type], typeOrder[b.Type]); c != 0 {
			return c
		}
		if c := cmp.Compare(a.TransactionID, b.TransactionID); c != 0 {
			return c
		}
		return cmp.Compare(a.InvoiceID, b.InvoiceID)
	})

	report := Report{
		Anomalies:  anomalies,
		BySeverity: map[Severity]int{Critical: 0, Warning: 0, Info: 0},
		Total:      len(anomalies),
	}
	if report.Anomalies == nil {
		report.Anomalies = []Anomaly{}
	}
	for _, a := range anomalies {
		report.BySeverity[a.Severity]++
	}
	return report
}

// duplicateTransactions flags unmatched transactions booked twice: same
// source, same day, same amount and near-identical description. The first
// occurrence is kept; each later copy is flagged once.
func (d *Detector) duplicateTransactions(s *detection) []Anomaly {
	type key struct {
		source ledger.Source
		day    time.Time
		amount string
	}

	groups := make(map[key][]ledger.Transaction)
	var out []Anomaly
	for _, tx := range s.transactions {
		if s.matchedTx[tx.ID] || tx.Status == ledger.StatusDuplicate || tx.Date.IsZero() {
			continue
		}

		k := key{source: tx.Source, day: ledger.CalendarDay(tx.Date), amount: tx.Amount.Round(2).String()}
		for _, earlier := range groups[k] {
			if similarity.TextScore(earlier.Description, tx.Description) >= d.config.DuplicateTextThreshold {
				out = append(out, Anomaly{
					Type:          DuplicateTransaction,
					Severity:      Warning,
					TransactionID: tx.ID,
					Amount:        money(tx.Amount.Abs()),
					Message: fmt.Sprintf("transaction %q of %s on %s looks like a duplicate of %s",
						tx.Description, tx.Amount.StringFixed(2), tx.Date.Format(time.DateOnly), earlier.ID),
				})
				break
			}
		}
		groups[k] = append(groups[k], tx)
	}
	return out
}

// duplicateInvoices flags invoices entered twice for the same supplier and
// total, recognised by the same invoice date or the same invoice number.
func (d *Detector) duplicateInvoices(s *detection) []Anomaly {
	type key struct {
		supplier string
		total    string
	}

	groups := make(map[key][]ledger.Invoice)
	var out []Anomaly
	for _, inv := range s.invoices {
		supplier := history.Normalize(inv.SupplierName)
		if supplier == "" {
			continue
		}

		k := key{supplier: supplier, total: inv.TotalAmount.Abs().Round(2).String()}
		for _, earlier := range groups[k] {
			sameDate := !inv.InvoiceDate.IsZero() && ledger.DaysBetween(inv.InvoiceDate, earlier.InvoiceDate) == 0
			sameNumber := inv.Number != "" && inv.Number == earlier.Number
			if sameDate || sameNumber {
				out = append(out, Anomaly{
					Type:      DuplicateInvoice,
					Severity:  Warning,
					InvoiceID: inv.ID,
					Amount:    money(inv.TotalAmount.Abs()),
					Message: fmt.Sprintf("invoice from %s for %s looks like a duplicate of %s",
						inv.SupplierName, inv.TotalAmount.StringFixed(2), earlier.ID),
				})
				break
			}
		}
		groups[k] = append(groups[k], inv)
	}
	return out
}

// transactionsWithoutInvoice flags material expenses no invoice explains.
// A manual entry already reconciled to its bank line is covered by that
// bank line.
func (d *Detector) transactionsWithoutInvoice(s *detection) []Anomaly {
	materiality := decimal.NewFromFloat(d.config.MaterialityAmount)

	var out []Anomaly
	for _, tx := range s.transactions {
		switch {
		case !tx.IsExpense(), s.matchedTx[tx.ID], tx.Status == ledger.StatusDuplicate:
			continue
		case tx.Source == ledger.SourceManual && tx.Status == ledger.StatusReconciled:
			continue
		case tx.AbsAmount().LessThan(materiality):
			continue
		}

		out = append(out, Anomaly{
			Type:          TransactionWithoutInvoice,
			Severity:      Info,
			TransactionID: tx.ID,
			Amount:        money(tx.AbsAmount()),
			Message:       fmt.Sprintf("expense %q of %s has no matching invoice", tx.Description, tx.AbsAmount().StringFixed(2)),
		})
	}
	return out
}

// invoicesWithoutTransaction flags validated invoices still unpaid once the
// payment window after their due date (or invoice date) has passed.
func (d *Detector) invoicesWithoutTransaction(s *detection) []Anomaly {
	if s.asOf.IsZero() {
		return nil
	}

	var out []Anomaly
	for _, inv := range s.invoices {
		if inv.Status != ledger.InvoiceValidated || s.matchedInv[inv.ID] {
			continue
		}
		anchor := inv.PaymentAnchor()
		if anchor.IsZero() || !ledger.CalendarDay(s.asOf).After(ledger.CalendarDay(anchor)) {
			continue
		}

		overdue := ledger.DaysBetween(s.asOf, anchor)
		if overdue <= d.config.MaxPaymentWindowDays {
			continue
		}

		out = append(out, Anomaly{
			Type:      InvoiceWithoutTransaction,
			Severity:  Warning,
			InvoiceID: inv.ID,
			Amount:    money(inv.TotalAmount.Abs()),
			Message: fmt.Sprintf("invoice from %s for %s unpaid %d days after %s",
				inv.SupplierName, inv.TotalAmount.StringFixed(2), overdue, anchor.Format(time.DateOnly)),
		})
	}
	return out
}

// pairGaps checks every matched invoice against the transactions paying it:
// amount within tolerance, VAT consistent, payment not dated before the
// invoice was issued.
func (d *Detector) pairGaps(s *detection) []Anomaly {
	// An invoice settled in instalments appears in several pairs.
	var order []string
	paidBy := make(map[string][]ledger.Transaction)
	for _, p := range s.pairs {
		inv, okInv := s.invByID[p.InvoiceID]
		tx, okTx := s.txByID[p.TransactionID]
		if !okInv || !okTx {
			d.logger.Debug("skipping pair with unknown record", "invoice_id", p.InvoiceID, "transaction_id", p.TransactionID)
			continue
		}
		if _, seen := paidBy[inv.ID]; !seen {
			order = append(order, inv.ID)
		}
		paidBy[inv.ID] = append(paidBy[inv.ID], tx)
	}

	tol := d.config.Tolerance()
	var out []Anomaly
	for _, invID := range order {
		inv := s.invByID[invID]
		txs := paidBy[invID]

		payments := make([]decimal.Decimal, len(txs))
		for i, tx := range txs {
			payments[i] = tx.Amount
		}
		if check := validator.CheckPayments(payments, inv.TotalAmount, tol); !check.Valid {
			out = append(out, Anomaly{
				Type:          AmountGap,
				Severity:      Critical,
				InvoiceID:     inv.ID,
				TransactionID: txs[0].ID,
				Amount:        money(check.Actual),
				Expected:      money(check.Expected),
				Gap:           money(check.Difference),
				Message:       check.Reason,
			})
		}

		for _, tx := range txs {
			if check := validator.CheckVAT(inv, tx); !check.Consistent {
				out = append(out, Anomaly{
					Type:          VATGap,
					Severity:      Critical,
					InvoiceID:     inv.ID,
					TransactionID: tx.ID,
					Amount:        money(check.DeclaredTax),
					Expected:      money(check.ExpectedTax),
					Gap:           money(check.Difference),
					Message:       check.Reason,
				})
			}

			if inv.InvoiceDate.IsZero() || tx.Date.IsZero() || !tx.Date.Before(inv.InvoiceDate) {
				continue
			}
			if early := ledger.DaysBetween(tx.Date, inv.InvoiceDate); early > d.config.DateMaxDays {
				out = append(out, Anomaly{
					Type:          IncoherentDate,
					Severity:      Warning,
					InvoiceID:     inv.ID,
					TransactionID: tx.ID,
					Message: fmt.Sprintf("payment on %s is %d days before invoice date %s",
						tx.Date.Format(time.DateOnly), early, inv.InvoiceDate.Format(time.DateOnly)),
				})
			}
		}
	}
	return out
}

// unusualAmounts flags expenses larger than OutlierMultiplier times the
// mean of the earlier expenses in the same category. Uncategorised
// expenses, and categories with fewer than OutlierMinSamples earlier
// expenses, are not judged.
func (d *Detector) unusualAmounts(s *detection) []Anomaly {
	byCategory := make(map[string][]ledger.Transaction)
	var categories []string
	for _, tx := range s.transactions {
		if tx.Category == "" || !tx.IsExpense() || tx.Status == ledger.StatusDuplicate || tx.Date.IsZero() {
			continue
		}
		if _, ok := byCategory[tx.Category]; !ok {
			categories = append(categories, tx.Category)
		}
		byCategory[tx.Category] = append(byCategory[tx.Category], tx)
	}

	multiplier := decimal.NewFromFloat(d.config.OutlierMultiplier)
	var out []Anomaly
	for _, category := range categories {
		txs := slices.Clone(byCategory[category])
		slices.SortStableFunc(txs, func(a, b ledger.Transaction) int {
			return a.Date.Compare(b.Date)
		})

		sum := decimal.Zero
		for i, tx := range txs {
			amount := tx.AbsAmount()
			if i >= d.config.OutlierMinSamples {
				mean := sum.Div(decimal.NewFromInt(int64(i)))
				if bound := mean.Mul(multiplier); mean.IsPositive() && amount.GreaterThan(bound) {
					out = append(out, Anomaly{
						Type:          UnusualAmount,
						Severity:      Info,
						TransactionID: tx.ID,
						Amount:        money(amount),
						Expected:      money(mean),
						Gap:           money(amount.Sub(mean)),
						Message: fmt.Sprintf("expense of %s in %s is more than %sx the usual %s",
							amount.StringFixed(2), category, multiplier.String(), mean.StringFixed(2)),
					})
				}
			}
			sum = sum.Add(amount)
		}
	}
	return out
}
