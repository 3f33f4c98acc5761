package store

const Schema = `
CREATE TABLE IF NOT EXISTS candles (
	instrument TEXT NOT NULL,
	granularity TEXT NOT NULL,
	ts INTEGER NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume INTEGER NOT NULL DEFAULT 0,
	complete INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (instrument, granularity, ts)
);

CREATE TABLE IF NOT EXISTS sync_runs (
	run_id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	jobs INTEGER NOT NULL,
	succeeded INTEGER NOT NULL,
	partial INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	canceled INTEGER NOT NULL
);
`
