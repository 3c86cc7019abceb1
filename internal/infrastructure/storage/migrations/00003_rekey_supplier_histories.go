package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/history"
)

func init() {
	goose.AddMigrationContext(upRekeySupplierHistories, downRekeySupplierHistories)
}

type storedHistory struct {
	key         string
	displayName string
	matchCount  int
}

// upRekeySupplierHistories recomputes supplier_key from display_name with
// history.Normalize. Any change to Normalize needs a new migration that
// repeats this re-key, or stored rows stop being found by lookups. When two
// rows collapse onto one key the one with more matches wins.
func upRekeySupplierHistories(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT supplier_key, display_name, match_count
		FROM supplier_histories
		ORDER BY match_count DESC, supplier_key
	`)
	if err != nil {
		return err
	}

	var stored []storedHistory
	for rows.Next() {
		var h storedHistory
		if err := rows.Scan(&h.key, &h.displayName, &h.matchCount); err != nil {
			_ = rows.Close()
			return err
		}
		stored = append(stored, h)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Rows arrive strongest first, so the first claim on a key keeps it.
	claimed := make(map[string]bool, len(stored))
	displaced := make(map[string]bool)
	for _, h := range stored {
		if displaced[h.key] {
			continue
		}
		key := history.Normalize(h.displayName)
		if key == "" {
			continue
		}

		if claimed[key] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM supplier_histories WHERE supplier_key = ?`, h.key); err != nil {
				return err
			}
			continue
		}
		claimed[key] = true
		if key == h.key {
			continue
		}

		// A weaker row may already sit on the new key.
		if _, err := tx.ExecContext(ctx, `DELETE FROM supplier_histories WHERE supplier_key = ?`, key); err != nil {
			return err
		}
		displaced[key] = true

		if _, err := tx.ExecContext(ctx, `UPDATE supplier_histories SET supplier_key = ? WHERE supplier_key = ?`, key, h.key); err != nil {
			return err
		}
	}

	return nil
}

// downRekeySupplierHistories is a no-op - the old keys are not recoverable
func downRekeySupplierHistories(ctx context.Context, tx *sql.Tx) error {
	return nil
}
