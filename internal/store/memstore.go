package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"plantdiag/internal/diagnose"
)

// MemStore is an in-memory Store for tests and single runs.
type MemStore struct {
	mu          sync.Mutex
	reports     map[string]map[string]diagnose.Report
	resolutions []*Resolution
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{reports: make(map[string]map[string]diagnose.Report)}
}

// PutReport implements Store.
func (s *MemStore) PutReport(run string, r diagnose.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.reports[run]
	if !ok {
		table = make(map[string]diagnose.Report)
		s.reports[run] = table
	}
	table[r.Sender] = r
	return nil
}

// PendingReports implements Store. The returned map is a copy.
func (s *MemStore) PendingReports(run string) (map[string]diagnose.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]diagnose.Report, len(s.reports[run]))
	for k, v := range s.reports[run] {
		out[k] = v
	}
	return out, nil
}

// ResolveReports implements Store. Unknown senders are ignored.
func (s *MemStore) ResolveReports(run string, senders ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sender := range senders {
		delete(s.reports[run], sender)
	}
	return nil
}

// RecordOutcome implements Store.
func (s *MemStore) RecordOutcome(run string, o diagnose.Outcome) (*Resolution, error) {
	r := newResolution(run, o, uuid.NewString(), time.Now().UTC())
	s.mu.Lock()
	s.resolutions = append(s.resolutions, r)
	s.mu.Unlock()
	cp := *r
	return &cp, nil
}

// ListResolutions implements Store.
func (s *MemStore) ListResolutions(run string) ([]*Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Resolution
	for _, r := range s.resolutions {
		if r.Run == run {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
