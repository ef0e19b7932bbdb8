package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"plantdiag/internal/diagnose"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullFloat converts a sql.NullFloat64 to a plain float64 (0 if null).
func nullFloat(nf sql.NullFloat64) float64 {
	if nf.Valid {
		return nf.Float64
	}
	return 0
}

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .plantdiag) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; concurrent scenario runs serialize here.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SqlStore) Close() error { return s.db.Close() }

// PutReport implements Store.
func (s *SqlStore) PutReport(run string, r diagnose.Report) error {
	_, err := s.db.Exec(`
		INSERT INTO pending_reports(run, sender, pv, report, suspected_system, value, tick, received_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run, sender) DO UPDATE SET
			pv = excluded.pv, report = excluded.report, suspected_system = excluded.suspected_system,
			value = excluded.value, tick = excluded.tick, received_at = excluded.received_at`,
		run, r.Sender, r.PV, r.Text, r.SuspectedSystem, r.Value, r.Tick, nowUTC())
	if err != nil {
		return fmt.Errorf("put report %s/%s: %w", run, r.Sender, err)
	}
	return nil
}

// PendingReports implements Store.
func (s *SqlStore) PendingReports(run string) (map[string]diagnose.Report, error) {
	rows, err := s.db.Query(
		"SELECT sender, pv, report, suspected_system, value, tick FROM pending_reports WHERE run = ?", run)
	if err != nil {
		return nil, fmt.Errorf("list pending reports: %w", err)
	}
	defer rows.Close()

	out := make(map[string]diagnose.Report)
	for rows.Next() {
		var r diagnose.Report
		var suspected sql.NullString
		var value sql.NullFloat64
		if err := rows.Scan(&r.Sender, &r.PV, &r.Text, &suspected, &value, &r.Tick); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.SuspectedSystem = nullStr(suspected)
		r.Value = nullFloat(value)
		out[r.Sender] = r
	}
	return out, rows.Err()
}

// ResolveReports implements Store.
func (s *SqlStore) ResolveReports(run string, senders ...string) error {
	if len(senders) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin resolve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, sender := range senders {
		if _, err := tx.Exec("DELETE FROM pending_reports WHERE run = ? AND sender = ?", run, sender); err != nil {
			return fmt.Errorf("resolve %s/%s: %w", run, sender, err)
		}
	}
	return tx.Commit()
}

// RecordOutcome implements Store.
func (s *SqlStore) RecordOutcome(run string, o diagnose.Outcome) (*Resolution, error) {
	r := newResolution(run, o, uuid.NewString(), time.Now().UTC())
	trail, err := json.Marshal(r.Trail)
	if err != nil {
		return nil, fmt.Errorf("encode trail: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO resolutions(id, run, state, root, symptom, reversed, theory, trail, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, run, string(r.State), r.Root, r.Symptom, r.Reversed, r.Theory, string(trail), r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}
	return r, nil
}

// ListResolutions implements Store.
func (s *SqlStore) ListResolutions(run string) ([]*Resolution, error) {
	rows, err := s.db.Query(`
		SELECT id, state, root, symptom, reversed, theory, trail, created_at
		FROM resolutions WHERE run = ? ORDER BY seq`, run)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	var out []*Resolution
	for rows.Next() {
		var (
			r                     = &Resolution{Run: run}
			state, trail, created string
			root, symptom, theory sql.NullString
		)
		if err := rows.Scan(&r.ID, &state, &root, &symptom, &r.Reversed, &theory, &trail, &created); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		r.State = diagnose.State(state)
		r.Root, r.Symptom, r.Theory = nullStr(root), nullStr(symptom), nullStr(theory)
		if err := json.Unmarshal([]byte(trail), &r.Trail); err != nil {
			return nil, fmt.Errorf("decode trail of %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
