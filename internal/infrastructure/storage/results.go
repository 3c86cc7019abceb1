package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveRunResults writes a run's matches, its anomaly list and the supplier
// histories it changed in a single transaction. Either all three land or
// none do.
func (s *Storage) SaveRunResults(ctx context.Context, runID string, results RunResults) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveMatches(ctx, tx, runID, results.Matches); err != nil {
			return fmt.Errorf("save matches: %w", err)
		}
		if err := replaceOpenAnomalies(ctx, tx, runID, results.Anomalies); err != nil {
			return fmt.Errorf("save anomalies: %w", err)
		}
		if err := saveHistories(ctx, tx, results.Histories); err != nil {
			return fmt.Errorf("save supplier histories: %w", err)
		}
		return nil
	})
}

// withTx runs fn inside a transaction, committing only when fn succeeds
func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
