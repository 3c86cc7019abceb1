package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/anomaly"
)

// ReplaceOpenAnomalies swaps the unresolved anomaly list for a fresh one.
// Resolved anomalies are history and are never touched.
func (s *Storage) ReplaceOpenAnomalies(ctx context.Context, runID string, anomalies []anomaly.Anomaly) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceOpenAnomalies(ctx, tx, runID, anomalies)
	})
}

func replaceOpenAnomalies(ctx context.Context, tx *sql.Tx, runID string, anomalies []anomaly.Anomaly) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM anomalies WHERE resolved_at IS NULL`); err != nil {
		return fmt.Errorf("failed to clear open anomalies: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO anomalies
		(id, run_id, type, severity, transaction_id, invoice_id,
		 amount, expected_amount, gap, message, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	var run sql.NullString
	if runID != "" {
		run = sql.NullString{String: runID, Valid: true}
	}

	for _, a := range anomalies {
		_, err := stmt.ExecContext(ctx,
			a.ID,
			run,
			a.Type,
			a.Severity,
			a.TransactionID,
			a.InvoiceID,
			nullDecimal(a.Amount),
			nullDecimal(a.Expected),
			nullDecimal(a.Gap),
			a.Message,
			a.DetectedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to save anomaly %s: %w", a.ID, err)
		}
	}
	return nil
}

// ListOpenAnomalies returns unresolved anomalies, critical first
func (s *Storage) ListOpenAnomalies(ctx context.Context) ([]anomaly.Anomaly, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, severity, transaction_id, invoice_id,
		       amount, expected_amount, gap, message, detected_at
		FROM anomalies
		WHERE resolved_at IS NULL
		ORDER BY CASE severity
		           WHEN 'critical' THEN 0
		           WHEN 'warning' THEN 1
		           ELSE 2
		         END,
		         type, transaction_id, invoice_id, id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []anomaly.Anomaly
	for rows.Next() {
		var a anomaly.Anomaly
		var amount, expected, gap decimal.NullDecimal
		err := rows.Scan(
			&a.ID,
			&a.Type,
			&a.Severity,
			&a.TransactionID,
			&a.InvoiceID,
			&amount,
			&expected,
			&gap,
			&a.Message,
			&a.DetectedAt,
		)
		if err != nil {
			return nil, err
		}
		a.Amount = decimalPtr(amount)
		a.Expected = decimalPtr(expected)
		a.Gap = decimalPtr(gap)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveAnomaly marks an open anomaly handled
func (s *Storage) ResolveAnomaly(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE anomalies SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve anomaly %s: %w", id, err)
	}
	return expectOneRow(result, "open anomaly", id)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	return &d.Decimal
}
