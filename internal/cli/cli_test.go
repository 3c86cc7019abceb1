package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/anomaly"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

const snapshotJSON = `{
	"transactions": [
		{"id": "m1", "date": "2026-03-01", "description": "Facture ACME", "amount": "-1200"}
	],
	"invoices": [
		{"id": "inv-1", "supplier_name": "ACME Sarl", "invoice_date": "2026-03-01", "total_amount": "1200", "status": "pending"},
		{"id": "inv-2", "supplier_name": "Plombier Dupont", "invoice_date": "2026-01-05", "total_amount": "300", "status": "validated"}
	]
}`

const bankCSV = "date;description;amount\n" +
	"02/03/2026;VIR ACME SARL;-1 200,00\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	return writeFile(t, dir, "config.yaml", `
storage:
  database_path: `+filepath.Join(dir, "config.db")+`
observability:
  logging:
    level: error
`)
}

func TestParseReconcileFlags(t *testing.T) {
	flags, err := ParseReconcileFlags([]string{
		"-input", "snap.json", "-bank-csv", "bank.csv", "-db", "x.db",
		"-dry-run", "-as-of", "2026-03-31", "-timeout", "5s", "-verbose",
	}, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, "snap.json", flags.Input)
	assert.Equal(t, "bank.csv", flags.BankCSV)
	assert.Equal(t, "x.db", flags.DBPath)
	assert.True(t, flags.DryRun)
	assert.True(t, flags.Verbose)
	assert.Equal(t, 5*time.Second, flags.Timeout)

	asOf, err := flags.AsOfDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), asOf)
}

func TestParseReconcileFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", []string{"-dry-run"}, "-input or -bank-csv"},
		{"bad as-of", []string{"-input", "s.json", "-as-of", "yesterday"}, "invalid -as-of"},
		{"unknown flag", []string{"-days", "3"}, "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReconcileFlags(tt.args, io.Discard)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParseAuditFlags_Defaults(t *testing.T) {
	flags, err := ParseAuditFlags(nil, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, 10, flags.Limit)
	assert.Empty(t, flags.Resolve)
}

func TestRunReconcile_EndToEnd(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "books.db")
	flags := ReconcileFlags{
		ConfigFile: writeConfig(t, dir),
		Input:      writeFile(t, dir, "snapshot.json", snapshotJSON),
		BankCSV:    writeFile(t, dir, "bank.csv", bankCSV),
		DBPath:     dbPath,
		AsOf:       "2026-03-31",
	}
	var out bytes.Buffer

	// Act
	err := RunReconcile(context.Background(), flags, &out)

	// Assert
	require.NoError(t, err)
	text := out.String()
	assert.Contains(t, text, "reconcile: as of 2026-03-31 (PRODUCTION mode)")
	assert.Contains(t, text, "m1         <-> bank-2")
	assert.Contains(t, text, "inv-1      <-> bank-2")
	assert.Contains(t, text, "invoice_without_transaction")
	assert.Contains(t, text, "Learned suppliers: acme sarl")

	store, err := storage.NewStorage(dbPath)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, storage.RunCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].Summary.InvoiceAuto)

	open, err := store.ListOpenAnomalies(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, anomaly.InvoiceWithoutTransaction, open[0].Type)

	_, err = os.Stat(filepath.Join(dir, "config.db"))
	assert.True(t, os.IsNotExist(err), "-db overrides the configured path")
}

func TestRunReconcile_JSONDryRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "books.db")
	flags := ReconcileFlags{
		ConfigFile: writeConfig(t, dir),
		Input:      writeFile(t, dir, "snapshot.json", snapshotJSON),
		BankCSV:    writeFile(t, dir, "bank.csv", bankCSV),
		DBPath:     dbPath,
		AsOf:       "2026-03-31",
		DryRun:     true,
		JSON:       true,
	}
	var out bytes.Buffer

	require.NoError(t, RunReconcile(context.Background(), flags, &out))

	var report struct {
		DryRun  bool               `json:"dry_run"`
		Summary storage.RunSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Summary.BankAuto)
	assert.Equal(t, 1, report.Summary.InvoiceAuto)

	store, err := storage.NewStorage(dbPath)
	require.NoError(t, err)
	defer store.Close()
	open, err := store.ListOpenAnomalies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open, "dry runs save no anomalies")
}

func TestRunReconcile_MissingInput(t *testing.T) {
	dir := t.TempDir()
	flags := ReconcileFlags{
		ConfigFile: writeConfig(t, dir),
		Input:      filepath.Join(dir, "absent.json"),
	}

	err := RunReconcile(context.Background(), flags, io.Discard)

	assert.ErrorContains(t, err, "failed to open snapshot")
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "matching:\n  auto_threshold: 3\n")

	_, err := LoadConfig(path, slog.Default())

	assert.ErrorContains(t, err, "failed to load config")
}

func TestAudit(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := storage.NewMockRepository()
	runID, err := store.StartRun(ctx, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(ctx, runID, storage.RunSummary{BankAuto: 2, InvoiceAuto: 1, Anomalies: 2}))
	require.NoError(t, store.ReplaceOpenAnomalies(ctx, runID, []anomaly.Anomaly{
		{ID: "a1", Type: anomaly.DuplicateTransaction, Severity: anomaly.Critical, TransactionID: "b2", Message: "possible duplicate"},
		{ID: "a2", Type: anomaly.UnusualAmount, Severity: anomaly.Warning, TransactionID: "b9", Message: "unusually large"},
	}))
	var out bytes.Buffer

	// Act
	err = audit(ctx, store, AuditFlags{Limit: 5, Resolve: "a1"}, "books.db", &out, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Assert
	require.NoError(t, err)
	text := out.String()
	assert.Contains(t, text, "Database: books.db")
	assert.Contains(t, text, "2026-03-31")
	assert.Contains(t, text, "2/1")
	assert.Contains(t, text, "OPEN ANOMALIES (1)")
	assert.Contains(t, text, "[WARNING] unusual_amount: unusually large")
	assert.NotContains(t, text, "possible duplicate")
}

func TestAudit_ResolveUnknownAnomaly(t *testing.T) {
	err := audit(context.Background(), storage.NewMockRepository(), AuditFlags{Resolve: "nope"}, "x.db", io.Discard, slog.Default())

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Sociét…", truncate("Société Générale", 7))
}
