package store

// schemaVersionV1 is the only schema so far.
const schemaVersionV1 = 1

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS pending_reports (
	run              TEXT NOT NULL,
	sender           TEXT NOT NULL,
	pv               TEXT NOT NULL,
	report           TEXT NOT NULL,
	suspected_system TEXT,
	value            REAL,
	tick             INTEGER NOT NULL DEFAULT 0,
	received_at      TEXT NOT NULL,
	PRIMARY KEY (run, sender)
);

CREATE TABLE IF NOT EXISTS resolutions (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	run        TEXT NOT NULL,
	state      TEXT NOT NULL,
	root       TEXT,
	symptom    TEXT,
	reversed   INTEGER NOT NULL DEFAULT 0,
	theory     TEXT,
	trail      TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_run ON resolutions(run);
`
