package cli

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
)

// ReconcileFlags are the flags of the reconcile command
type ReconcileFlags struct {
	ConfigFile string
	Input      string // JSON snapshot with transactions and invoices
	BankCSV    string // optional CSV bank statement appended to the snapshot
	DBPath     string // overrides storage.database_path
	DryRun     bool
	AsOf       string
	Timeout    time.Duration
	JSON       bool
	Verbose    bool
}

// ParseReconcileFlags parses reconcile flags from args (without the program
// name). Usage goes to output.
func ParseReconcileFlags(args []string, output io.Writer) (ReconcileFlags, error) {
	var flags ReconcileFlags
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	fs.StringVar(&flags.Input, "input", "", "JSON snapshot of transactions and invoices")
	fs.StringVar(&flags.BankCSV, "bank-csv", "", "CSV bank statement to import (date,description,amount[,account])")
	fs.StringVar(&flags.DBPath, "db", "", "Path to database file (uses config if not specified)")
	fs.BoolVar(&flags.DryRun, "dry-run", false, "Compute matches without saving them")
	fs.StringVar(&flags.AsOf, "as-of", "", "Reference date for payment windows (default today)")
	fs.DurationVar(&flags.Timeout, "timeout", 0, "Abort the run after this long (0 = no limit)")
	fs.BoolVar(&flags.JSON, "json", false, "Print the report as JSON")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return flags, err
	}

	if flags.Input == "" && flags.BankCSV == "" {
		return flags, fmt.Errorf("one of -input or -bank-csv is required")
	}
	if _, err := flags.AsOfDate(); err != nil {
		return flags, err
	}
	return flags, nil
}

// AsOfDate returns the -as-of date, or the zero time when unset
func (f ReconcileFlags) AsOfDate() (time.Time, error) {
	if f.AsOf == "" {
		return time.Time{}, nil
	}
	t := ledger.ParseDate(f.AsOf)
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("invalid -as-of date %q", f.AsOf)
	}
	return t, nil
}

// AuditFlags are the flags of the audit-report command
type AuditFlags struct {
	ConfigFile string
	DBPath     string
	Limit      int
	Resolve    string // anomaly id to mark resolved
}

// ParseAuditFlags parses audit-report flags from args
func ParseAuditFlags(args []string, output io.Writer) (AuditFlags, error) {
	var flags AuditFlags
	fs := flag.NewFlagSet("audit-report", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	fs.StringVar(&flags.DBPath, "db", "", "Path to database file (uses config if not specified)")
	fs.IntVar(&flags.Limit, "limit", 10, "Number of recent runs to show")
	fs.StringVar(&flags.Resolve, "resolve", "", "Mark the anomaly with this id as resolved")
	err := fs.Parse(args)
	return flags, err
}
