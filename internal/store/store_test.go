package store

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"plantdiag/internal/diagnose"
	"plantdiag/internal/oracle"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sql, err := Open(filepath.Join(t.TempDir(), "nested", "plantdiag.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { sql.Close() })
	return map[string]Store{"mem": NewMemStore(), "sqlite": sql}
}

func TestStore_PendingReports(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			cool := diagnose.Report{Sender: "Cooling_Agent", PV: "COOL:valve_position", Text: "stuck", SuspectedSystem: "Cooling", Value: 10, Tick: 3}
			rf := diagnose.Report{Sender: "RF_Agent", PV: "RF:cavity_temp", Text: "hot", Value: 61.5, Tick: 4}
			for _, r := range []diagnose.Report{cool, rf} {
				if err := s.PutReport("s1", r); err != nil {
					t.Fatalf("PutReport: %v", err)
				}
			}
			if err := s.PutReport("s2", cool); err != nil {
				t.Fatal(err)
			}

			rfLater := rf
			rfLater.Value, rfLater.Tick = 66.5, 5
			if err := s.PutReport("s1", rfLater); err != nil {
				t.Fatal(err)
			}

			got, err := s.PendingReports("s1")
			if err != nil {
				t.Fatal(err)
			}
			want := map[string]diagnose.Report{"Cooling_Agent": cool, "RF_Agent": rfLater}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("pending mismatch (-want +got):\n%s", diff)
			}

			if err := s.ResolveReports("s1", "Cooling_Agent", "Nobody"); err != nil {
				t.Fatal(err)
			}
			got, _ = s.PendingReports("s1")
			if len(got) != 1 || got["RF_Agent"].Tick != 5 {
				t.Errorf("after resolve: %+v", got)
			}
			other, _ := s.PendingReports("s2")
			if len(other) != 1 {
				t.Errorf("resolve leaked into another run: %+v", other)
			}
		})
	}
}

func TestStore_Resolutions(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			resolved := diagnose.Outcome{
				State: diagnose.StateResolved, Root: "Cooling_Agent", Symptom: "RF_Agent", Reversed: true,
				Theory: oracle.Theory{Explanation: "valve stuck"},
				Trail:  []diagnose.Transition{{From: diagnose.StateCollect, To: diagnose.StateHypothesize, Reason: "collected"}},
			}
			rejected := diagnose.Outcome{State: diagnose.StateRejected, Trail: []diagnose.Transition{{From: diagnose.StateCollect, To: diagnose.StateRejected, Reason: "one report"}}}

			first, err := s.RecordOutcome("s1", resolved)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := uuid.Parse(first.ID); err != nil {
				t.Errorf("id %q is not a uuid: %v", first.ID, err)
			}
			if _, err := s.RecordOutcome("s1", rejected); err != nil {
				t.Fatal(err)
			}
			if _, err := s.RecordOutcome("s2", rejected); err != nil {
				t.Fatal(err)
			}

			list, err := s.ListResolutions("s1")
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 {
				t.Fatalf("got %d resolutions, want 2", len(list))
			}
			if diff := cmp.Diff(first, list[0]); diff != "" {
				t.Errorf("first resolution mismatch (-want +got):\n%s", diff)
			}
			if list[1].State != diagnose.StateRejected || list[1].Root != "" {
				t.Errorf("second resolution: %+v", list[1])
			}
		})
	}
}

func TestOpen_ReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plantdiag.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutReport("s1", diagnose.Report{Sender: "Vacuum_Agent", PV: "VAC:sector1_pump:pressure", Text: "spike"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, _ := s.PendingReports("s1")
	if _, ok := got["Vacuum_Agent"]; !ok {
		t.Errorf("report lost across reopen: %+v", got)
	}
}
