package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/application/service"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/anomaly"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// PrintHeader prints the application header
func PrintHeader(w io.Writer, asOf time.Time, dryRun bool) {
	mode := "PRODUCTION"
	if dryRun {
		mode = "DRY-RUN"
	}
	date := "today"
	if !asOf.IsZero() {
		date = asOf.Format(time.DateOnly)
	}
	fmt.Fprintf(w, "reconcile: as of %s (%s mode)\n\n", date, mode)
}

// PrintReportJSON writes the run report as indented JSON
func PrintReportJSON(w io.Writer, report *service.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// PrintRunReport prints the outcome of a reconciliation run
func PrintRunReport(w io.Writer, report *service.RunReport) {
	fmt.Fprintln(w, "Bank reconciliation")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, m := range report.Bank.AutoMatches {
		printBankMatch(w, m)
	}
	for _, m := range report.Bank.SuggestedMatches {
		printBankMatch(w, m)
	}
	fmt.Fprintf(w, "Unmatched: %d manual, %d bank\n\n",
		len(report.Bank.UnmatchedManual), len(report.Bank.UnmatchedBank))

	fmt.Fprintln(w, "Invoice matching")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, m := range report.Invoices.AutoMatched {
		printInvoiceMatch(w, m)
	}
	for _, m := range report.Invoices.Suggestions {
		printInvoiceMatch(w, m)
	}
	for _, inv := range report.Invoices.UnmatchedInvoices {
		fmt.Fprintf(w, "  %-9s  %-10s  %-30s %10s\n", matcher.Unmatched, inv.ID, truncate(inv.SupplierName, 30), inv.TotalAmount.StringFixed(2))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Anomalies")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	PrintAnomalies(w, report.Anomalies.Anomalies)
	fmt.Fprintln(w)

	fmt.Fprintln(w, strings.Repeat("-", 60))
	s := report.Summary
	fmt.Fprintf(w, "Summary: Bank auto=%d suggested=%d | Invoices auto=%d suggested=%d | Anomalies=%d (critical=%d warning=%d info=%d)\n",
		s.BankAuto, s.BankSuggested, s.InvoiceAuto, s.InvoiceSuggested, s.Anomalies,
		report.Anomalies.Count(anomaly.Critical),
		report.Anomalies.Count(anomaly.Warning),
		report.Anomalies.Count(anomaly.Info))
	if len(report.Learned) > 0 {
		fmt.Fprintf(w, "Learned suppliers: %s\n", strings.Join(report.Learned, ", "))
	}

	if report.DryRun {
		fmt.Fprintln(w, "\nDry run: nothing was saved.")
	} else {
		fmt.Fprintf(w, "\nRun %s saved.\n", report.RunID)
	}
}

func printBankMatch(w io.Writer, m matcher.BankMatch) {
	fmt.Fprintf(w, "  %-9s  %-10s <-> %-10s  %-30s %10s  %.2f\n",
		m.Classification, m.Manual.ID, m.Bank.ID,
		truncate(m.Bank.Description, 30), m.Bank.Amount.StringFixed(2), m.Confidence)
}

func printInvoiceMatch(w io.Writer, m matcher.InvoiceMatch) {
	fmt.Fprintf(w, "  %-9s  %-10s <-> %-10s  %-30s %10s  %.2f",
		m.Classification, m.Invoice.ID, m.Transaction.ID,
		truncate(m.Invoice.SupplierName, 30), m.Invoice.TotalAmount.StringFixed(2), m.Confidence)
	if m.Demotion != "" {
		fmt.Fprintf(w, "  (%s)", m.Demotion)
	}
	fmt.Fprintln(w)
}

// PrintAnomalies prints one line per anomaly
func PrintAnomalies(w io.Writer, anomalies []anomaly.Anomaly) {
	if len(anomalies) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, a := range anomalies {
		fmt.Fprintf(w, "  [%s] %s: %s\n", strings.ToUpper(string(a.Severity)), a.Type, a.Message)
		fmt.Fprintf(w, "      id=%s", a.ID)
		if a.TransactionID != "" {
			fmt.Fprintf(w, " transaction=%s", a.TransactionID)
		}
		if a.InvoiceID != "" {
			fmt.Fprintf(w, " invoice=%s", a.InvoiceID)
		}
		fmt.Fprintln(w)
	}
}

// PrintRuns prints recent runs, newest first
func PrintRuns(w io.Writer, runs []storage.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "  no runs recorded")
		return
	}

	fmt.Fprintf(w, "%-20s %-10s %-8s %-10s %-24s %s\n", "Started", "As of", "Mode", "Status", "Bank/Invoice auto", "Anomalies")
	fmt.Fprintln(w, strings.Repeat("-", 86))
	for _, run := range runs {
		mode := "LIVE"
		if run.DryRun {
			mode = "DRY"
		}
		fmt.Fprintf(w, "%-20s %-10s %-8s %-10s %-24s %d\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.AsOf.Format(time.DateOnly),
			mode,
			run.Status,
			fmt.Sprintf("%d/%d", run.Summary.BankAuto, run.Summary.InvoiceAuto),
			run.Summary.Anomalies)
		if run.ErrorMessage != "" {
			fmt.Fprintf(w, "    error: %s\n", run.ErrorMessage)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
