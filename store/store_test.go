package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/candlesync/market"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func daily(instrument string, day int, closeP float64, complete bool) market.Candle {
	return market.Candle{
		Instrument:  instrument,
		Granularity: market.Daily,
		Time:        time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Open:        1.0,
		High:        2.0,
		Low:         0.5,
		Close:       closeP,
		Volume:      100,
		Complete:    complete,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('candles','sync_runs')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["candles"])
	assert.True(t, found["sync_runs"])
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []market.Candle{
		daily("EUR_USD", 1, 1.10, true),
		daily("EUR_USD", 2, 1.11, true),
		daily("EUR_USD", 3, 1.12, true),
	}

	n, err := s.UpsertCandles(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Same data again: no duplicates, same rows.
	_, err = s.UpsertCandles(ctx, batch)
	require.NoError(t, err)

	got, err := s.Candles(ctx, "EUR_USD", market.Daily)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, batch, got)
}

func TestUpsertCorrectsIncompleteCandle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	early := daily("EUR_USD", 5, 1.08, false)
	_, err := s.UpsertCandles(ctx, []market.Candle{early})
	require.NoError(t, err)

	corrected := early
	corrected.Close = 1.09
	corrected.High = 2.5
	corrected.Volume = 250
	corrected.Complete = true
	_, err = s.UpsertCandles(ctx, []market.Candle{corrected})
	require.NoError(t, err)

	got, err := s.Candles(ctx, "EUR_USD", market.Daily)
	require.NoError(t, err)
	require.Len(t, got, 1, "correction must overwrite, not duplicate")
	assert.Equal(t, corrected, got[0])
}

func TestUpsertKeepsPairsIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCandles(ctx, []market.Candle{daily("EUR_USD", 1, 1.1, true)})
	require.NoError(t, err)
	_, err = s.UpsertCandles(ctx, []market.Candle{daily("XAU_USD", 1, 2030.5, true)})
	require.NoError(t, err)

	eur, err := s.Candles(ctx, "EUR_USD", market.Daily)
	require.NoError(t, err)
	xau, err := s.Candles(ctx, "XAU_USD", market.Daily)
	require.NoError(t, err)

	assert.Len(t, eur, 1)
	assert.Len(t, xau, 1)
	assert.Equal(t, 2030.5, xau[0].Close)
}

func TestLastTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LastTime(ctx, "EUR_USD", market.Daily)
	require.NoError(t, err)
	assert.False(t, ok, "never-synced pair has no cursor")

	_, err = s.UpsertCandles(ctx, []market.Candle{
		daily("EUR_USD", 1, 1.1, true),
		daily("EUR_USD", 7, 1.2, true),
		daily("EUR_USD", 3, 1.3, true),
	})
	require.NoError(t, err)

	ts, ok, err := s.LastTime(ctx, "EUR_USD", market.Daily)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), ts)

	// The weekly cursor is independent of the daily one.
	_, ok, err = s.LastTime(ctx, "EUR_USD", market.Weekly)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetentionPrunesOldestRows(t *testing.T) {
	s := newTestStore(t)
	s.Retention = 5
	ctx := context.Background()

	var batch []market.Candle
	for day := 1; day <= 9; day++ {
		batch = append(batch, daily("EUR_USD", day, 1.1, true))
	}
	// A different pair must not be affected by EUR_USD pruning.
	batch = append(batch, daily("XAU_USD", 1, 2030.5, true))

	_, err := s.UpsertCandles(ctx, batch)
	require.NoError(t, err)

	eur, err := s.Candles(ctx, "EUR_USD", market.Daily)
	require.NoError(t, err)
	require.Len(t, eur, 5, "only the newest rows survive")
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), eur[0].Time)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), eur[4].Time)

	xau, err := s.Candles(ctx, "XAU_USD", market.Daily)
	require.NoError(t, err)
	assert.Len(t, xau, 1)
}

func TestUpsertEmptyBatchIsNoop(t *testing.T) {
	s := newTestStore(t)

	n, err := s.UpsertCandles(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := RunRecord{
		RunID:      "01J8TESTRUN",
		StartedAt:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC),
		Jobs:       6,
		Succeeded:  4,
		Partial:    1,
		Failed:     1,
	}
	require.NoError(t, s.RecordRun(ctx, rec))

	var jobs, succeeded, partial, failed int
	err := s.db.QueryRow(`SELECT jobs, succeeded, partial, failed FROM sync_runs WHERE run_id = ?`, rec.RunID).
		Scan(&jobs, &succeeded, &partial, &failed)
	require.NoError(t, err)
	assert.Equal(t, 6, jobs)
	assert.Equal(t, 4, succeeded)
	assert.Equal(t, 1, partial)
	assert.Equal(t, 1, failed)
}
