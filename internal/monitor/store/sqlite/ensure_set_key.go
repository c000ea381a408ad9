package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureSetKey guarantees a set_keys row exists for key so set_members rows
// can reference it, and bumps its updated_at_ms.
//
// Must be called inside an existing transaction.
func ensureSetKey(ctx context.Context, tx *sql.Tx, key string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO set_keys(set_key, created_at_ms, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(set_key) DO UPDATE SET updated_at_ms = excluded.updated_at_ms;
`, key, nowMs, nowMs); err != nil {
		return fmt.Errorf("ensureSetKey %s: %w", key, err)
	}
	return nil
}
