// Package store persists the pending-report table and the history of
// diagnosis outcomes. Reports and outcomes are namespaced by run so several
// scenarios can share one database.
package store

import (
	"time"

	"plantdiag/internal/diagnose"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Open() creates the parent dir (e.g. .plantdiag).
const DefaultDBPath = ".plantdiag/plantdiag.db"

// Resolution is one recorded diagnosis outcome.
type Resolution struct {
	ID        string
	Run       string
	State     diagnose.State
	Root      string
	Symptom   string
	Reversed  bool
	Theory    string
	Trail     []diagnose.Transition
	CreatedAt time.Time
}

// Store is the persistence facade for pending reports and outcomes.
// Implementation is SQLite or in-memory.
type Store interface {
	// Pending reports, at most one per sender; a newer report replaces the older.
	PutReport(run string, r diagnose.Report) error
	PendingReports(run string) (map[string]diagnose.Report, error)
	ResolveReports(run string, senders ...string) error
	// Outcome history, in recording order.
	RecordOutcome(run string, o diagnose.Outcome) (*Resolution, error)
	ListResolutions(run string) ([]*Resolution, error)
	Close() error
}

func newResolution(run string, o diagnose.Outcome, id string, at time.Time) *Resolution {
	return &Resolution{
		ID:        id,
		Run:       run,
		State:     o.State,
		Root:      o.Root,
		Symptom:   o.Symptom,
		Reversed:  o.Reversed,
		Theory:    o.Theory.Explanation,
		Trail:     append([]diagnose.Transition(nil), o.Trail...),
		CreatedAt: at,
	}
}
