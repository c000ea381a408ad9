package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/PravinPK/places-monitor/internal/db"
	"github.com/PravinPK/places-monitor/internal/monitor/store"
	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

type TransitionEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewTransitionEventStore(db *sql.DB, writer *dbpkg.Worker) *TransitionEventStore {
	return &TransitionEventStore{db: db, writer: writer}
}

func (s *TransitionEventStore) RecordTransition(ctx context.Context, rec store.TransitionRecord) error {
	kind, err := kindColumn(rec.Kind)
	if err != nil {
		return err
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	recordedMs := rec.RecordedAt.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO transition_events(region_id, transition, recorded_at_ms)
VALUES (?, ?, ?);
`, rec.RegionID, kind, recordedMs); err != nil {
			return fmt.Errorf("RecordTransition insert: %w", err)
		}
		return nil
	})
}

// RecentTransitions returns up to limit rows, newest first. A non-positive
// limit returns every row.
func (s *TransitionEventStore) RecentTransitions(ctx context.Context, limit int) ([]store.TransitionRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT region_id, transition, recorded_at_ms
FROM transition_events
ORDER BY recorded_at_ms DESC, id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentTransitions query: %w", err)
	}
	defer rows.Close()

	var out []store.TransitionRecord
	for rows.Next() {
		var (
			regionID string
			kind     string
			ms       int64
		)
		if err := rows.Scan(&regionID, &kind, &ms); err != nil {
			return nil, fmt.Errorf("RecentTransitions scan: %w", err)
		}
		k, err := types.ParseTransitionKind(kind)
		if err != nil {
			return nil, fmt.Errorf("RecentTransitions: %w", err)
		}
		out = append(out, store.TransitionRecord{
			RegionID:   regionID,
			Kind:       k,
			RecordedAt: time.UnixMilli(ms).UTC(),
		})
	}
	return out, rows.Err()
}

// PruneOlderThan deletes rows recorded before cutoff and returns how many
// were removed. Uses idx_transition_events_time.
func (s *TransitionEventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM transition_events
WHERE recorded_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func kindColumn(k types.TransitionKind) (string, error) {
	switch k {
	case types.TransitionEnter, types.TransitionExit:
		return k.String(), nil
	default:
		return "", fmt.Errorf("RecordTransition: unsupported transition %s", k)
	}
}
