package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/history"
)

// LoadHistories returns every stored supplier history
func (s *Storage) LoadHistories(ctx context.Context) (history.Histories, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT supplier_key, display_name, descriptions_json, accounts_json,
		       avg_amount, match_count, last_matched_at
		FROM supplier_histories
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	histories := make(history.Histories)
	for rows.Next() {
		var sh history.SupplierHistory
		var descriptionsJSON, accountsJSON, avg string
		var lastMatched sql.NullTime
		err := rows.Scan(
			&sh.Key,
			&sh.DisplayName,
			&descriptionsJSON,
			&accountsJSON,
			&avg,
			&sh.MatchCount,
			&lastMatched,
		)
		if err != nil {
			return nil, err
		}
		sh.AvgAmount = avgAmount(avg)

		if err := json.Unmarshal([]byte(descriptionsJSON), &sh.Descriptions); err != nil {
			return nil, fmt.Errorf("supplier %s: bad descriptions: %w", sh.Key, err)
		}
		if err := json.Unmarshal([]byte(accountsJSON), &sh.Accounts); err != nil {
			return nil, fmt.Errorf("supplier %s: bad accounts: %w", sh.Key, err)
		}
		if lastMatched.Valid {
			sh.LastMatchedAt = lastMatched.Time
		}
		histories[sh.Key] = sh
	}
	return histories, rows.Err()
}

// SaveHistories upserts histories in one transaction
func (s *Storage) SaveHistories(ctx context.Context, histories history.Histories) error {
	if len(histories) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveHistories(ctx, tx, histories)
	})
}

func saveHistories(ctx context.Context, tx *sql.Tx, histories history.Histories) error {
	if len(histories) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO supplier_histories
		(supplier_key, display_name, descriptions_json, accounts_json,
		 avg_amount, match_count, last_matched_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(supplier_key) DO UPDATE SET
			display_name = excluded.display_name,
			descriptions_json = excluded.descriptions_json,
			accounts_json = excluded.accounts_json,
			avg_amount = excluded.avg_amount,
			match_count = excluded.match_count,
			last_matched_at = excluded.last_matched_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	// Sorted keys keep write order stable across runs
	keys := make([]string, 0, len(histories))
	for k := range histories {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	now := time.Now().UTC()
	for _, key := range keys {
		sh := histories[key]
		if sh.Key == "" {
			sh.Key = key
		}

		descriptionsJSON, err := json.Marshal(sh.Descriptions)
		if err != nil {
			return err
		}
		accountsJSON, err := json.Marshal(sh.Accounts)
		if err != nil {
			return err
		}

		var lastMatched sql.NullTime
		if !sh.LastMatchedAt.IsZero() {
			lastMatched = sql.NullTime{Time: sh.LastMatchedAt.UTC(), Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			sh.Key,
			sh.DisplayName,
			string(descriptionsJSON),
			string(accountsJSON),
			sh.AvgAmount.String(),
			sh.MatchCount,
			lastMatched,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to save supplier history %s: %w", sh.Key, err)
		}
	}
	return nil
}

// avgAmount parses a stored average, tolerating legacy blanks
func avgAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
