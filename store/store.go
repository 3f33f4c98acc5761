// Package store persists canonical candles in a local SQLite database.
//
// Writes are grouped into one transaction per sync job, so a crash never
// leaves a job half-committed, and concurrent jobs (which touch disjoint
// key ranges) stay independent.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/candlesync/market"
)

// DefaultRetention is how many candles are kept per instrument/granularity
// pair when no explicit retention is configured.
const DefaultRetention = 2000

// Store is a SQLite-backed candle store.
type Store struct {
	db *sql.DB

	// Retention caps the rows kept per (instrument, granularity) pair; the
	// oldest beyond the cap are pruned on each upsert. Zero disables pruning.
	Retention int
}

// Open opens (creating if needed) the database at path and bootstraps the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Store{db: db, Retention: DefaultRetention}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LastTime returns the newest stored candle timestamp for the pair, or
// ok=false when the pair has never been synced.
func (s *Store) LastTime(ctx context.Context, instrument string, g market.Granularity) (time.Time, bool, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx, `
		SELECT ts FROM candles
		WHERE instrument = ? AND granularity = ?
		ORDER BY ts DESC LIMIT 1`,
		instrument, string(g),
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(ts, 0).UTC(), true, nil
}

// UpsertCandles merges one job's candles into storage inside a single
// transaction. An existing row at the same (instrument, granularity, ts) key
// is overwritten in full, completeness flag included, so a previously
// incomplete candle is corrected by a later read. Retention pruning runs in
// the same transaction.
//
// On any storage error the whole transaction rolls back; no partial writes
// for the job become visible.
func (s *Store) UpsertCandles(ctx context.Context, candles []market.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (instrument, granularity, ts, open, high, low, close, volume, complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument, granularity, ts) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			complete = excluded.complete`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	written := 0
	pairs := map[[2]string]struct{}{}
	for _, cd := range candles {
		if _, err := stmt.ExecContext(ctx,
			cd.Instrument, string(cd.Granularity), cd.Time.Unix(),
			cd.Open, cd.High, cd.Low, cd.Close, cd.Volume, cd.Complete,
		); err != nil {
			return 0, fmt.Errorf("upsert %s/%s@%s: %w", cd.Instrument, cd.Granularity, cd.Time, err)
		}
		written++
		pairs[[2]string{cd.Instrument, string(cd.Granularity)}] = struct{}{}
	}

	if s.Retention > 0 {
		for pair := range pairs {
			if err := pruneTx(ctx, tx, pair[0], pair[1], s.Retention); err != nil {
				return 0, fmt.Errorf("prune %s/%s: %w", pair[0], pair[1], err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// pruneTx deletes all but the newest keep rows for the pair.
func pruneTx(ctx context.Context, tx *sql.Tx, instrument, granularity string, keep int) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM candles
		WHERE instrument = ? AND granularity = ? AND ts IN (
			SELECT ts FROM candles
			WHERE instrument = ? AND granularity = ?
			ORDER BY ts DESC LIMIT -1 OFFSET ?
		)`,
		instrument, granularity, instrument, granularity, keep,
	)
	return err
}

// Candles returns the stored candles for a pair, oldest first.
func (s *Store) Candles(ctx context.Context, instrument string, g market.Granularity) ([]market.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume, complete FROM candles
		WHERE instrument = ? AND granularity = ?
		ORDER BY ts ASC`,
		instrument, string(g),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		var (
			ts int64
			cd market.Candle
		)
		if err := rows.Scan(&ts, &cd.Open, &cd.High, &cd.Low, &cd.Close, &cd.Volume, &cd.Complete); err != nil {
			return nil, err
		}
		cd.Instrument = instrument
		cd.Granularity = g
		cd.Time = time.Unix(ts, 0).UTC()
		out = append(out, cd)
	}
	return out, rows.Err()
}

// RunRecord is one row of the sync-run journal.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Jobs       int
	Succeeded  int
	Partial    int
	Failed     int
	Canceled   int
}

// RecordRun journals the outcome of one whole process run.
func (s *Store) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs
		(run_id, started_at, finished_at, jobs, succeeded, partial, failed, canceled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt, r.FinishedAt, r.Jobs, r.Succeeded, r.Partial, r.Failed, r.Canceled,
	)
	return err
}
