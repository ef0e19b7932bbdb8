package rules

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"plantdiag/internal/kripke"
	"plantdiag/internal/modal"
)

func diagnosticsModel() *kripke.Model {
	return kripke.New(
		[]string{"w0", "w1", "w2", "w3", "w4"},
		[]kripke.Edge{{From: "w0", To: "w1"}, {From: "w0", To: "w2"}, {From: "w0", To: "w3"}, {From: "w0", To: "w4"}},
		map[string][]string{
			"w0": {"system_nominal"},
			"w1": {"rf_fault_reported"},
			"w2": {"cooling_fault_reported"},
			"w3": {"klystron_fault_reported", "rf_power_fault_reported"},
			"w4": {"vacuum_fault_reported"},
		},
		"w0",
	)
}

func TestDefault_AcceptsEveryRoleOnInitialBelief(t *testing.T) {
	set := Default()
	if set.Len() != 4 {
		t.Fatalf("Default rules = %d, want 4", set.Len())
	}
	for _, sender := range []string{"Cooling_Agent", "Klystron_Agent", "RF_Agent", "Vacuum_Agent"} {
		if v := set.Check(diagnosticsModel(), FaultProposition(sender)); !v.Consistent {
			t.Errorf("%s: violated %v", sender, v.Violated)
		}
	}
}

// With no outgoing edges from the current world, a necessity rule holds no
// matter what the current world believes.
func TestIsConsistent_VacuousNecessity(t *testing.T) {
	set := MustCompile([]string{"[] (klystron_fault_reported -> rf_power_fault_reported)"})
	for _, val := range [][]string{nil, {"klystron_fault_reported"}, {"rf_power_fault_reported", "x"}} {
		m := kripke.New([]string{"w0"}, nil, map[string][]string{"w0": val}, "w0")
		if !set.IsConsistent(m, "klystron_fault_reported") {
			t.Errorf("valuation %v: rule should hold vacuously", val)
		}
	}
}

// The current world sees itself, so the mutual-exclusion rule constrains the
// hypothetical valuation directly.
func TestIsConsistent_MutualExclusionRejects(t *testing.T) {
	set := MustCompile([]string{"[] ~(cooling_fault_reported & klystron_fault_reported)"})
	m := kripke.New(
		[]string{"w0"},
		[]kripke.Edge{{From: "w0", To: "w0"}},
		map[string][]string{"w0": {"klystron_fault_reported"}},
		"w0",
	)
	v := set.Check(m, "cooling_fault_reported")
	if v.Consistent {
		t.Fatal("expected cooling_fault_reported to be rejected")
	}
	if diff := cmp.Diff([]string{"[] ~(cooling_fault_reported & klystron_fault_reported)"}, v.Violated); diff != "" {
		t.Errorf("Violated (-want +got):\n%s", diff)
	}
	if !set.IsConsistent(m, "vacuum_fault_reported") {
		t.Error("an unrelated proposition should be consistent")
	}
}

func TestIsConsistent_DoesNotMutate(t *testing.T) {
	m := kripke.New(
		[]string{"w0"},
		[]kripke.Edge{{From: "w0", To: "w0"}},
		map[string][]string{"w0": {"klystron_fault_reported"}},
		"w0",
	)
	before, _ := json.Marshal(m.ToSerializable())
	Default().IsConsistent(m, "cooling_fault_reported")
	Default().IsConsistent(m, "brand_new_fault_reported")
	after, _ := json.Marshal(m.ToSerializable())
	if string(before) != string(after) {
		t.Errorf("model changed:\nbefore %s\nafter  %s", before, after)
	}

	empty := kripke.New([]string{"w0"}, nil, nil, "w0")
	Default().IsConsistent(empty, "p")
	if len(empty.Valuation("w0")) != 0 {
		t.Error("creating the hypothetical valuation leaked into the original")
	}
}

func TestIsConsistent_EmptyOrNilSetPasses(t *testing.T) {
	var nilSet *Set
	if !nilSet.IsConsistent(diagnosticsModel(), "anything") {
		t.Error("nil set should pass")
	}
	if !MustCompile(nil).IsConsistent(diagnosticsModel(), "anything") {
		t.Error("empty set should pass")
	}
}

func TestCompile_ReportsBadRule(t *testing.T) {
	_, err := Compile([]string{"p", "[] (p ->", "q"})
	if err == nil {
		t.Fatal("expected error")
	}
	var se *modal.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("want wrapped *modal.SyntaxError, got %v", err)
	}
}

func TestLoad_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "rules.yaml")
	jsonPath := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(yamlPath, []byte("rules:\n  - \"[] (a -> b)\"\n  - \"~c\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jsonPath, []byte(`{"rules": ["<>a"]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	ys, err := LoadFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadFile yaml: %v", err)
	}
	if diff := cmp.Diff([]string{"[] (a -> b)", "~c"}, ys.Sources()); diff != "" {
		t.Errorf("yaml sources (-want +got):\n%s", diff)
	}

	js, err := LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFile json: %v", err)
	}
	if js.Len() != 1 {
		t.Errorf("json rules = %d, want 1", js.Len())
	}

	sniffed, err := Load([]byte(`{"rules": ["a", "b"]}`), "")
	if err != nil || sniffed.Len() != 2 {
		t.Errorf("Load sniffed json: %v, %d rules", err, sniffed.Len())
	}
}

func TestFaultProposition(t *testing.T) {
	cases := map[string]string{
		"Cooling_Agent":  "cooling_fault_reported",
		"Klystron_Agent": "klystron_fault_reported",
		"RF_Agent":       "rf_fault_reported",
		"Vacuum":         "vacuum_fault_reported",
	}
	for in, want := range cases {
		if got := FaultProposition(in); got != want {
			t.Errorf("FaultProposition(%q) = %q, want %q", in, got, want)
		}
	}
}
