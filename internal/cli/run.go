package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/files"
	"github.com/eshaffer321/ledger-reconciler/internal/application/service"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/logging"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// LoadConfig loads configFile, or the first config.yaml / config.yml found
// in the working directory, falling back to environment variables when
// neither exists. A file that exists but is invalid is an error.
func LoadConfig(configFile string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.LoadOrEnv(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Debug("configuration loaded", "file", configFile, "database", cfg.Storage.DatabasePath)
	return cfg, nil
}

// RunReconcile runs one reconciliation over the files named in flags and
// prints the report to stdout.
func RunReconcile(ctx context.Context, flags ReconcileFlags, stdout io.Writer) error {
	cfg, err := LoadConfig(flags.ConfigFile, slog.Default())
	if err != nil {
		return err
	}
	if flags.DBPath != "" {
		cfg.Storage.DatabasePath = flags.DBPath
	}

	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "reconcile")

	req, err := loadRequest(flags, logger)
	if err != nil {
		return err
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath,
		storage.WithLogger(logging.NewLoggerWithSystem(loggingCfg, "storage")))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	svc, err := service.NewReconcileService(cfg.Matching, store, service.WithLogger(logger))
	if err != nil {
		return err
	}

	if flags.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.Timeout)
		defer cancel()
	}

	if !flags.JSON {
		PrintHeader(stdout, req.AsOf, req.DryRun)
	}

	report, err := svc.Run(ctx, req)
	if err != nil {
		return err
	}

	if flags.JSON {
		return PrintReportJSON(stdout, report)
	}
	PrintRunReport(stdout, report)
	return nil
}

func loadRequest(flags ReconcileFlags, logger *slog.Logger) (service.RunRequest, error) {
	asOf, err := flags.AsOfDate()
	if err != nil {
		return service.RunRequest{}, err
	}
	req := service.RunRequest{AsOf: asOf, DryRun: flags.DryRun}

	if flags.Input != "" {
		snap, err := files.LoadSnapshot(flags.Input)
		if err != nil {
			return req, err
		}
		req.Transactions = snap.Transactions
		req.Invoices = snap.Invoices
		logger.Info("loaded snapshot", "path", flags.Input,
			"transactions", len(snap.Transactions), "invoices", len(snap.Invoices))
	}

	if flags.BankCSV != "" {
		statement, err := files.LoadBankCSV(flags.BankCSV)
		if err != nil {
			return req, err
		}
		for _, skipped := range statement.Skipped {
			logger.Warn("skipped bank statement row", "path", flags.BankCSV, "reason", skipped)
		}
		req.Transactions = append(req.Transactions, statement.Transactions...)
		logger.Info("loaded bank statement", "path", flags.BankCSV, "transactions", len(statement.Transactions))
	}

	return req, nil
}

// RunAudit prints recent runs and open anomalies from the database,
// optionally resolving one anomaly first.
func RunAudit(ctx context.Context, flags AuditFlags, stdout io.Writer) error {
	cfg, err := LoadConfig(flags.ConfigFile, slog.Default())
	if err != nil {
		return err
	}
	if flags.DBPath != "" {
		cfg.Storage.DatabasePath = flags.DBPath
	}
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "audit")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath,
		storage.WithLogger(logging.NewLoggerWithSystem(cfg.Observability.Logging, "storage")))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	return audit(ctx, store, flags, cfg.Storage.DatabasePath, stdout, logger)
}

func audit(ctx context.Context, store storage.Repository, flags AuditFlags, dbPath string, stdout io.Writer, logger *slog.Logger) error {
	if flags.Resolve != "" {
		if err := store.ResolveAnomaly(ctx, flags.Resolve); err != nil {
			return err
		}
		logger.Info("anomaly resolved", "id", flags.Resolve)
	}

	runs, err := store.ListRuns(ctx, flags.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	anomalies, err := store.ListOpenAnomalies(ctx)
	if err != nil {
		return fmt.Errorf("failed to list anomalies: %w", err)
	}

	fmt.Fprintln(stdout, "📊 RECONCILIATION AUDIT REPORT")
	fmt.Fprintf(stdout, "Database: %s\n\n", dbPath)

	fmt.Fprintln(stdout, "🔄 RECENT RUNS")
	PrintRuns(stdout, runs)
	fmt.Fprintln(stdout)

	fmt.Fprintf(stdout, "⚠️  OPEN ANOMALIES (%d)\n", len(anomalies))
	PrintAnomalies(stdout, anomalies)
	return nil
}
