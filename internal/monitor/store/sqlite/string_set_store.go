package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/PravinPK/places-monitor/internal/db"
)

type StringSetStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewStringSetStore(db *sql.DB, writer *dbpkg.Worker) *StringSetStore {
	return &StringSetStore{db: db, writer: writer}
}

// GetStringSet returns the members stored under key in lexical order, or def
// when the key has never been written.
func (s *StringSetStore) GetStringSet(ctx context.Context, key string, def []string) ([]string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return def, nil
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM set_keys WHERE set_key = ?;`, key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetStringSet %s: %w", key, err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT member FROM set_members
WHERE set_key = ?
ORDER BY member;
`, key)
	if err != nil {
		return nil, fmt.Errorf("GetStringSet %s query: %w", key, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("GetStringSet %s scan: %w", key, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStringSet %s rows: %w", key, err)
	}
	return out, nil
}

// PutStringSet replaces the set stored under key in one transaction.
// Duplicate members collapse into one row.
func (s *StringSetStore) PutStringSet(ctx context.Context, key string, members []string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("PutStringSet: empty key")
	}
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureSetKey(ctx, tx, key, nowMs); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM set_members WHERE set_key = ?;`, key); err != nil {
			return fmt.Errorf("PutStringSet %s clear: %w", key, err)
		}

		for _, m := range members {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO set_members(set_key, member) VALUES (?, ?);
`, key, m); err != nil {
				return fmt.Errorf("PutStringSet %s insert %q: %w", key, m, err)
			}
		}
		return nil
	})
}
