// Package service wires the matching engine to storage: it loads supplier
// histories, runs bank reconciliation, invoice matching and anomaly
// detection over one snapshot, learns from confident invoice matches and
// persists the outcome.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/anomaly"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/history"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// ErrRunInProgress is returned when a run is started while another one is
// still writing histories.
var ErrRunInProgress = errors.New("reconciliation run already in progress")

// RunRequest holds the snapshot for one run.
type RunRequest struct {
	Transactions []ledger.Transaction // manual and bank-imported, in caller order
	Invoices     []ledger.Invoice
	AsOf         time.Time // payment windows are measured to this date; zero means now
	DryRun       bool      // compute everything, persist only the run record
}

// RunReport is everything a run produced.
type RunReport struct {
	RunID     string                 `json:"run_id,omitempty"`
	AsOf      time.Time              `json:"as_of"`
	DryRun    bool                   `json:"dry_run"`
	Bank      *matcher.BankResult    `json:"bank"`
	Invoices  *matcher.InvoiceResult `json:"invoices"`
	Anomalies anomaly.Report         `json:"anomalies"`
	Histories history.Histories      `json:"-"`
	Learned   []string               `json:"learned_suppliers"` // supplier keys updated by this run
	Summary   storage.RunSummary     `json:"summary"`
	Duration  time.Duration          `json:"duration"`
}

// ReconcileService manages reconciliation runs.
type ReconcileService struct {
	config   matcher.Config
	matcher  *matcher.Matcher
	detector *anomaly.Detector
	storage  storage.Repository
	logger   *slog.Logger
	now      func() time.Time

	// Only one run at a time may read-modify-write supplier histories
	runMu sync.Mutex
}

// Option customises a ReconcileService.
type Option func(*ReconcileService)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ReconcileService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *ReconcileService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReconcileService validates config and creates a service persisting to
// store. store may be nil when only the engine methods are used.
func NewReconcileService(config matcher.Config, store storage.Repository, opts ...Option) (*ReconcileService, error) {
	s := &ReconcileService{
		config:  config,
		storage: store,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := matcher.New(config, matcher.WithLogger(s.logger.With("component", "matcher")))
	if err != nil {
		return nil, err
	}
	d, err := anomaly.NewDetector(config,
		anomaly.WithLogger(s.logger.With("component", "anomaly")),
		anomaly.WithClock(s.now))
	if err != nil {
		return nil, err
	}

	s.matcher = m
	s.detector = d
	return s, nil
}

// ReconcileBank pairs manual transactions with bank transactions.
func (s *ReconcileService) ReconcileBank(manual, bank []ledger.Transaction) *matcher.BankResult {
	return s.matcher.ReconcileBank(manual, bank)
}

// MatchInvoices pairs invoices with the transactions that paid them.
func (s *ReconcileService) MatchInvoices(invoices []ledger.Invoice, transactions []ledger.Transaction, histories history.Histories) *matcher.InvoiceResult {
	return s.matcher.MatchInvoices(invoices, transactions, histories)
}

// DetectAnomalies runs the anomaly rules over a snapshot and its pairs.
func (s *ReconcileService) DetectAnomalies(transactions []ledger.Transaction, invoices []ledger.Invoice, pairs []matcher.Pair, asOf time.Time) anomaly.Report {
	return s.detector.Detect(transactions, invoices, pairs, asOf)
}

// UpdateSupplierHistory records a confirmed supplier payment and returns
// the new histories.
func (s *ReconcileService) UpdateSupplierHistory(histories history.Histories, supplierName, description string, amount decimal.Decimal) history.Histories {
	return history.UpdateSupplierHistory(histories, supplierName, description, amount, s.now())
}

// Run executes the full pipeline over one snapshot:
//  1. bank reconciliation (manual vs bank_import)
//  2. invoice matching against the remaining transactions
//  3. anomaly detection
//  4. supplier-history learning from auto matches
//  5. persistence (skipped for dry runs)
//
// ctx is checked between stages; a cancelled run persists nothing but its
// failed run record.
func (s *ReconcileService) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	if s.storage == nil {
		return nil, errors.New("reconcile service has no storage")
	}
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	started := s.now()
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = started
	}

	runID, err := s.storage.StartRun(ctx, asOf, req.DryRun)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	logger := s.logger.With("run_id", runID)
	logger.Info("reconciliation run started",
		"transactions", len(req.Transactions),
		"invoices", len(req.Invoices),
		"as_of", asOf.Format(time.DateOnly),
		"dry_run", req.DryRun)

	report, err := s.run(ctx, logger, runID, asOf, req)
	if err != nil {
		// ctx may already be done; the failure is still recorded.
		if failErr := s.storage.FailRun(context.WithoutCancel(ctx), runID, err); failErr != nil {
			logger.Error("failed to record run failure", "error", failErr)
		}
		logger.Error("reconciliation run failed", "error", err)
		return nil, err
	}

	report.Duration = s.now().Sub(started)
	logger.Info("reconciliation run completed",
		"bank_auto", report.Summary.BankAuto,
		"bank_suggested", report.Summary.BankSuggested,
		"invoice_auto", report.Summary.InvoiceAuto,
		"invoice_suggested", report.Summary.InvoiceSuggested,
		"anomalies", report.Summary.Anomalies,
		"duration", report.Duration)
	return report, nil
}

func (s *ReconcileService) run(ctx context.Context, logger *slog.Logger, runID string, asOf time.Time, req RunRequest) (*RunReport, error) {
	histories, err := s.storage.LoadHistories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load supplier histories: %w", err)
	}

	// Stage 1: bank reconciliation
	if err := stageDone(ctx, "bank reconciliation"); err != nil {
		return nil, err
	}
	manual, bank := splitBySource(req.Transactions)
	bankResult := s.matcher.ReconcileBank(manual, bank)
	transactions := applyReconciled(req.Transactions, bankResult.ReconciledIDs())
	logger.Debug("bank reconciliation done",
		"manual", len(manual), "bank", len(bank),
		"auto", len(bankResult.AutoMatches), "suggested", len(bankResult.SuggestedMatches))

	// Stage 2: invoice matching
	if err := stageDone(ctx, "invoice matching"); err != nil {
		return nil, err
	}
	invoiceResult := s.matcher.MatchInvoices(openInvoices(req.Invoices), invoiceCandidates(transactions), histories)
	logger.Debug("invoice matching done",
		"auto", len(invoiceResult.AutoMatched), "suggested", len(invoiceResult.Suggestions),
		"unmatched_invoices", len(invoiceResult.UnmatchedInvoices))

	// Stage 3: anomalies
	if err := stageDone(ctx, "anomaly detection"); err != nil {
		return nil, err
	}
	// Suggestions await confirmation, so only auto pairs count as paid.
	anomalies := s.detector.Detect(transactions, req.Invoices, invoiceResult.AutoPairs(), asOf)

	// Stage 4: learning
	updated, learned := learn(histories, invoiceResult.AutoMatched, asOf)

	summary := storage.RunSummary{
		Transactions:     len(req.Transactions),
		Invoices:         len(req.Invoices),
		BankAuto:         len(bankResult.AutoMatches),
		BankSuggested:    len(bankResult.SuggestedMatches),
		InvoiceAuto:      len(invoiceResult.AutoMatched),
		InvoiceSuggested: len(invoiceResult.Suggestions),
		Anomalies:        anomalies.Total,
	}

	// Stage 5: persistence
	if err := stageDone(ctx, "persistence"); err != nil {
		return nil, err
	}
	if !req.DryRun {
		if err := s.persist(ctx, runID, bankResult, invoiceResult, anomalies, updated, learned); err != nil {
			return nil, err
		}
	} else {
		logger.Info("dry run: matches, anomalies and histories not saved")
	}
	if err := s.storage.CompleteRun(ctx, runID, summary); err != nil {
		return nil, fmt.Errorf("complete run: %w", err)
	}

	return &RunReport{
		RunID:     runID,
		AsOf:      asOf,
		DryRun:    req.DryRun,
		Bank:      bankResult,
		Invoices:  invoiceResult,
		Anomalies: anomalies,
		Histories: updated,
		Learned:   learned,
		Summary:   summary,
	}, nil
}

func (s *ReconcileService) persist(
	ctx context.Context,
	runID string,
	bank *matcher.BankResult,
	invoices *matcher.InvoiceResult,
	anomalies anomaly.Report,
	histories history.Histories,
	learned []string,
) error {
	changed := make(history.Histories, len(learned))
	for _, key := range learned {
		changed[key] = histories[key]
	}

	results := storage.RunResults{
		Matches:   append(storage.BankMatchRecords(bank), storage.InvoiceMatchRecords(invoices)...),
		Anomalies: anomalies.Anomalies,
		Histories: changed,
	}
	if err := s.storage.SaveRunResults(ctx, runID, results); err != nil {
		return fmt.Errorf("save run results: %w", err)
	}
	return nil
}

// stageDone reports a cancelled or expired context before a stage starts
func stageDone(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("before %s: %w", stage, err)
	}
	return nil
}

// splitBySource separates manual entries from bank-imported lines.
// Duplicates and lines reconciled by an earlier run never take part in
// reconciliation.
func splitBySource(transactions []ledger.Transaction) (manual, bank []ledger.Transaction) {
	for _, tx := range transactions {
		if tx.Status == ledger.StatusDuplicate || tx.Status == ledger.StatusReconciled {
			continue
		}
		switch tx.Source {
		case ledger.SourceBankImport:
			bank = append(bank, tx)
		default:
			manual = append(manual, tx)
		}
	}
	return manual, bank
}

// applyReconciled returns a copy of transactions with the given ids marked
// reconciled.
func applyReconciled(transactions []ledger.Transaction, ids []string) []ledger.Transaction {
	out := slices.Clone(transactions)
	if len(ids) == 0 {
		return out
	}

	reconciled := make(map[string]bool, len(ids))
	for _, id := range ids {
		reconciled[id] = true
	}
	for i := range out {
		if reconciled[out[i].ID] {
			out[i].Status = ledger.StatusReconciled
		}
	}
	return out
}

// invoiceCandidates drops manual entries already reconciled to a bank line
// so one payment is offered to invoices only once.
func invoiceCandidates(transactions []ledger.Transaction) []ledger.Transaction {
	out := make([]ledger.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.Source == ledger.SourceManual && tx.Status == ledger.StatusReconciled {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// openInvoices drops invoices already settled.
func openInvoices(invoices []ledger.Invoice) []ledger.Invoice {
	out := make([]ledger.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Status != ledger.InvoicePaid {
			out = append(out, inv)
		}
	}
	return out
}

// learn folds every auto invoice match into the histories. It returns the
// new histories and the sorted keys it touched.
func learn(histories history.Histories, matches []matcher.InvoiceMatch, at time.Time) (history.Histories, []string) {
	touched := make(map[string]bool)
	for _, m := range matches {
		histories = history.Update(histories, history.Observation{
			SupplierName: m.Invoice.SupplierName,
			Description:  m.Transaction.Description,
			AccountRef:   m.Transaction.AccountRef,
			Amount:       m.Transaction.Amount,
			MatchedAt:    at,
		})
		if key := history.Normalize(m.Invoice.SupplierName); key != "" {
			touched[key] = true
		}
	}

	learned := make([]string, 0, len(touched))
	for key := range touched {
		learned = append(learned, key)
	}
	slices.Sort(learned)
	return histories, learned
}
