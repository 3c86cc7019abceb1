package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartRun records the start of a reconciliation run
func (s *Storage) StartRun(ctx context.Context, asOf time.Time, dryRun bool) (string, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO runs (id, started_at, as_of, dry_run, status)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := s.db.ExecContext(ctx, query, id, time.Now().UTC(), asOf.UTC(), dryRun, RunRunning); err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// CompleteRun records the completion of a run
func (s *Storage) CompleteRun(ctx context.Context, runID string, summary RunSummary) error {
	query := `
		UPDATE runs
		SET completed_at = ?,
		    status = ?,
		    transactions = ?,
		    invoices = ?,
		    bank_auto = ?,
		    bank_suggested = ?,
		    invoice_auto = ?,
		    invoice_suggested = ?,
		    anomalies = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		time.Now().UTC(),
		RunCompleted,
		summary.Transactions,
		summary.Invoices,
		summary.BankAuto,
		summary.BankSuggested,
		summary.InvoiceAuto,
		summary.InvoiceSuggested,
		summary.Anomalies,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runID, err)
	}
	return expectOneRow(result, "run", runID)
}

// FailRun records why a run stopped
func (s *Storage) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET completed_at = ?, status = ?, error_message = ? WHERE id = ?
	`, time.Now().UTC(), RunFailed, msg, runID)
	if err != nil {
		return fmt.Errorf("failed to mark run %s failed: %w", runID, err)
	}
	return expectOneRow(result, "run", runID)
}

const runColumns = `
	id, started_at, completed_at, as_of, dry_run, status,
	transactions, invoices, bank_auto, bank_suggested,
	invoice_auto, invoice_suggested, anomalies, error_message`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var completedAt, asOf sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&completedAt,
		&asOf,
		&run.DryRun,
		&run.Status,
		&run.Summary.Transactions,
		&run.Summary.Invoices,
		&run.Summary.BankAuto,
		&run.Summary.BankSuggested,
		&run.Summary.InvoiceAuto,
		&run.Summary.InvoiceSuggested,
		&run.Summary.Anomalies,
		&run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if asOf.Valid {
		run.AsOf = asOf.Time
	}
	return &run, nil
}

// GetRun retrieves a run by id
func (s *Storage) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// SaveMatches stores the matches of a run in one transaction
func (s *Storage) SaveMatches(ctx context.Context, runID string, matches []MatchRecord) error {
	if len(matches) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveMatches(ctx, tx, runID, matches)
	})
}

func saveMatches(ctx context.Context, tx *sql.Tx, runID string, matches []MatchRecord) error {
	if len(matches) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches
		(run_id, kind, left_id, right_id, confidence, classification,
		 date_score, amount_score, description_score, learned_boost, demotion, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, m := range matches {
		_, err := stmt.ExecContext(ctx,
			runID,
			m.Kind,
			m.LeftID,
			m.RightID,
			m.Confidence,
			m.Classification,
			m.DateScore,
			m.AmountScore,
			m.DescriptionScore,
			m.LearnedBoost,
			m.Demotion,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to save %s match %s/%s: %w", m.Kind, m.LeftID, m.RightID, err)
		}
	}
	return nil
}

// ListMatches returns the matches of a run, in insertion order
func (s *Storage) ListMatches(ctx context.Context, runID string) ([]MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, kind, left_id, right_id, confidence, classification,
		       date_score, amount_score, description_score, learned_boost, demotion, created_at
		FROM matches
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var matches []MatchRecord
	for rows.Next() {
		var m MatchRecord
		err := rows.Scan(
			&m.ID,
			&m.RunID,
			&m.Kind,
			&m.LeftID,
			&m.RightID,
			&m.Confidence,
			&m.Classification,
			&m.DateScore,
			&m.AmountScore,
			&m.DescriptionScore,
			&m.LearnedBoost,
			&m.Demotion,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func expectOneRow(result sql.Result, what, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}
