package modal

import "testing"

// testFrame is a minimal Frame: valuation sets and successor lists keyed by world.
type testFrame struct {
	current string
	val     map[string][]string
	succ    map[string][]string
}

func (f testFrame) Holds(world, prop string) bool {
	for _, p := range f.val[world] {
		if p == prop {
			return true
		}
	}
	return false
}

func (f testFrame) Successors(world string) []string { return f.succ[world] }
func (f testFrame) CurrentWorld() string             { return f.current }

// diagnosticsFrame mirrors the diagnostics role's initial belief.
func diagnosticsFrame() testFrame {
	return testFrame{
		current: "w0",
		val: map[string][]string{
			"w0": {"system_nominal"},
			"w1": {"rf_fault_reported"},
			"w2": {"cooling_fault_reported"},
			"w3": {"klystron_fault_reported", "rf_power_fault_reported"},
			"w4": {"vacuum_fault_reported"},
		},
		succ: map[string][]string{"w0": {"w1", "w2", "w3", "w4"}},
	}
}

var sampleFormulas = []string{
	"p",
	"~p",
	"p & q",
	"p | q",
	"[]p",
	"<>p",
	"[](p -> q)",
	"<>(p & ~q)",
	"~[]~p",
}

func TestEvaluate_DeadEndModalities(t *testing.T) {
	m := testFrame{
		val:  map[string][]string{"dead": {"p", "q"}, "w0": {"p"}},
		succ: map[string][]string{"w0": {"dead"}},
	}
	for _, src := range sampleFormulas {
		f := MustParse(src)
		if !Evaluate(m, "dead", Necessity{f}) {
			t.Errorf("[](%s) at a dead end should be vacuously true", src)
		}
		if Evaluate(m, "dead", Possibility{f}) {
			t.Errorf("<>(%s) at a dead end should be false", src)
		}
		// Worlds absent from both maps behave like dead ends with empty valuations.
		if !Evaluate(m, "nowhere", Necessity{f}) || Evaluate(m, "nowhere", Possibility{f}) {
			t.Errorf("unknown world should be a dead end for %s", src)
		}
	}
}

func TestEvaluate_ImplicationMatchesDisjunction(t *testing.T) {
	m := testFrame{
		val: map[string][]string{
			"w0": {"p"},
			"w1": {"q"},
			"w2": {"p", "q"},
		},
		succ: map[string][]string{"w0": {"w1", "w2"}, "w1": {"w3"}},
	}
	worlds := []string{"w0", "w1", "w2", "w3"}
	for _, ls := range sampleFormulas {
		for _, rs := range sampleFormulas {
			l, r := MustParse(ls), MustParse(rs)
			for _, w := range worlds {
				got := Evaluate(m, w, Implication{l, r})
				want := Evaluate(m, w, Disjunction{Negation{l}, r})
				if got != want {
					t.Errorf("at %s: (%s -> %s) = %v, (~%s | %s) = %v", w, ls, rs, got, ls, rs, want)
				}
			}
		}
	}
}

func TestEvaluate_Connectives(t *testing.T) {
	m := testFrame{val: map[string][]string{"w": {"a"}}}
	cases := []struct {
		src  string
		want bool
	}{
		{"a", true},
		{"b", false},
		{"~b", true},
		{"a & b", false},
		{"a | b", true},
		{"b -> a", true},
		{"a -> b", false},
		{"a <-> b", false},
		{"b <-> c", true},
		{"~(a <-> ~a)", false},
	}
	for _, tc := range cases {
		if got := Evaluate(m, "w", MustParse(tc.src)); got != tc.want {
			t.Errorf("%s = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestEvaluate_ModalOverSuccessors(t *testing.T) {
	m := diagnosticsFrame()
	cases := []struct {
		src  string
		want bool
	}{
		{"<>cooling_fault_reported", true},
		{"[]cooling_fault_reported", false},
		{"[] (klystron_fault_reported -> rf_power_fault_reported)", true},
		{"[] ~(cooling_fault_reported & klystron_fault_reported)", true},
		{"<>system_nominal", false},
		{"system_nominal & <>vacuum_fault_reported", true},
		{"[]<>rf_fault_reported", false},
		{"<>[]rf_fault_reported", true},
	}
	for _, tc := range cases {
		got, err := Check(m, tc.src)
		if err != nil {
			t.Fatalf("Check(%q): %v", tc.src, err)
		}
		if got != tc.want {
			t.Errorf("Check(%q) = %v, want %v", tc.src, got, tc.want)
		}
	}
}

// A necessity rule over a world without outgoing edges holds whatever the
// current world believes.
func TestEvaluate_VacuousRuleAtCurrentWorld(t *testing.T) {
	rule := MustParse("[] (klystron_fault_reported -> rf_power_fault_reported)")
	for _, val := range [][]string{nil, {"klystron_fault_reported"}, {"rf_power_fault_reported"}} {
		m := testFrame{current: "w0", val: map[string][]string{"w0": val}}
		if !Evaluate(m, m.CurrentWorld(), rule) {
			t.Errorf("rule should hold vacuously with valuation %v", val)
		}
	}
}

func TestCheck_SyntaxError(t *testing.T) {
	if _, err := Check(diagnosticsFrame(), "[] (a ->"); err == nil {
		t.Error("expected syntax error")
	}
}

type bogus struct{ Proposition }

func TestEvaluate_UnknownNodePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown formula type")
		}
	}()
	Evaluate(diagnosticsFrame(), "w0", bogus{})
}
