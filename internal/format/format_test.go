package format_test

import (
	"strings"
	"testing"
	"time"

	"plantdiag/internal/agent"
	"plantdiag/internal/diagnose"
	"plantdiag/internal/format"
	"plantdiag/internal/kripke"
	"plantdiag/internal/plant"
	"plantdiag/internal/rules"
	"plantdiag/internal/store"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("PV", "Value")
	tb.Row("RF:cavity_temp", 50.1)
	tb.Row("RF:forward_power", 10.0)
	out := tb.String()

	if !strings.Contains(out, "PV") {
		t.Errorf("expected header 'PV' in output:\n%s", out)
	}
	if !strings.Contains(out, "RF:cavity_temp") {
		t.Errorf("expected 'RF:cavity_temp' in output:\n%s", out)
	}
	// StyleLight draws with box characters
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Scenario", "Attempts")
	tb.Row("1_cooling_failure", 2)
	tb.Footer("Total", 2)
	out := tb.String()

	if !strings.Contains(out, "| Scenario") {
		t.Errorf("expected markdown header with '| Scenario':\n%s", out)
	}
	if !strings.Contains(out, "Total") {
		t.Errorf("expected footer 'Total' in output:\n%s", out)
	}
}

func TestCSV(t *testing.T) {
	tb := format.NewTable(format.CSV)
	tb.Header("A", "B")
	tb.Row("x", "y")
	out := tb.String()

	if !strings.Contains(out, "x,y") {
		t.Errorf("expected CSV row 'x,y' in output:\n%s", out)
	}
	if strings.Contains(out, "│") {
		t.Errorf("CSV output should not contain box characters:\n%s", out)
	}
}

func TestSameData_AllModes(t *testing.T) {
	build := func(m format.Mode) string {
		tb := format.NewTable(m)
		tb.Header("A", "B")
		tb.Row("x", "y")
		return tb.String()
	}

	ascii, md, csv := build(format.ASCII), build(format.Markdown), build(format.CSV)
	if ascii == md || md == csv || ascii == csv {
		t.Error("each mode should render differently")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want format.Mode
	}{
		{"", format.ASCII},
		{"table", format.ASCII},
		{"MD", format.Markdown},
		{"markdown", format.Markdown},
		{"csv", format.CSV},
	}
	for _, tc := range tests {
		got, err := format.ParseMode(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := format.ParseMode("html"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if format.CSV.String() != "csv" {
		t.Errorf("CSV.String() = %q", format.CSV.String())
	}
}

// --- Domain tables ---

func TestModelTable(t *testing.T) {
	m := kripke.New(
		[]string{"w0", "w1"},
		[]kripke.Edge{{From: "w0", To: "w1"}},
		map[string][]string{"w1": {"cooling_ok", "rf_ok"}},
		"w0",
	)
	out := format.ModelTable(m, format.Markdown)

	for _, want := range []string{"| w0", "| w1", "cooling_ok, rf_ok", "*"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRulesTable(t *testing.T) {
	m := kripke.New([]string{"w0"}, nil, nil, "w0")
	set := rules.MustCompile([]string{"[] p", "<> p"})
	out := format.RulesTable(set, m, format.ASCII)

	// Dead end: necessity holds vacuously, possibility fails.
	if !strings.Contains(out, "✓") || !strings.Contains(out, "✗") {
		t.Errorf("expected one holding and one failing rule:\n%s", out)
	}
}

func TestReportsTable_SortedBySender(t *testing.T) {
	reports := map[string]diagnose.Report{
		"RF_Agent":      {Sender: "RF_Agent", PV: "RF:cavity_temp", Value: 65, Tick: 3, SuspectedSystem: "Cooling"},
		"Cooling_Agent": {Sender: "Cooling_Agent", PV: "COOL:valve_position", Value: 10, Tick: 2, SuspectedSystem: "Cooling"},
		"Vacuum_Agent":  {Sender: "Vacuum_Agent", PV: "VAC:sector1_pump:pressure", Value: 6e-9, Tick: 4},
	}
	out := format.ReportsTable(reports, format.ASCII)

	cooling := strings.Index(out, "COOL:valve_position")
	rf := strings.Index(out, "RF:cavity_temp")
	if cooling < 0 || rf < 0 || cooling > rf {
		t.Errorf("expected Cooling row before RF row:\n%s", out)
	}
	if !strings.Contains(out, "Cooling system") {
		t.Errorf("expected system label in output:\n%s", out)
	}
	if !strings.Contains(out, "6.000e-09") {
		t.Errorf("expected exponent formatting for pressure:\n%s", out)
	}
}

func TestTrailTable(t *testing.T) {
	trail := []diagnose.Transition{
		{From: diagnose.StateCollect, To: diagnose.StateHypothesize, Reason: "2 pending reports"},
		{From: diagnose.StateHypothesize, To: diagnose.StateRejected, Reason: "oracle unavailable"},
	}
	out := format.TrailTable(trail, format.Markdown)
	for _, want := range []string{"Collect", "Hypothesize", "Rejected", "oracle unavailable"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestResolutionsTable(t *testing.T) {
	rs := []*store.Resolution{
		{ID: "0f6d3c1e-aaaa-bbbb-cccc-000000000000", State: diagnose.StateResolved, Root: "Cooling_Agent", Symptom: "RF_Agent", Reversed: true, CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{ID: "short", State: diagnose.StateRejected},
	}
	out := format.ResolutionsTable(rs, format.ASCII)
	for _, want := range []string{"0f6d3...", "Cooling → RF", "2026-01-02 03:04:05", "Rejected", "short"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestScenariosTable(t *testing.T) {
	out := format.ScenariosTable(plant.DefaultScenarios(), format.Markdown)
	for _, want := range []string{"cooling_failure", "COOL:valve_position", "Diagnostics"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSummaryTable(t *testing.T) {
	sc := plant.Scenario{ID: 1, Name: "cooling_failure", Agents: []agent.Role{agent.RoleRF}}
	results := []*plant.Result{{
		Scenario: sc,
		Ticks:    7,
		Outcomes: []diagnose.Outcome{{State: diagnose.StateResolved}, {State: diagnose.StateRejected}},
		Resolved: [][]string{{"Cooling_Agent", "RF_Agent"}},
		Unresolved: map[string]diagnose.Report{
			"Vacuum_Agent": {Sender: "Vacuum_Agent"},
		},
	}}
	out := format.SummaryTable(results, format.ASCII)
	for _, want := range []string{"1_cooling_failure", "Cooling → RF", "Vacuum", "Total"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestNarrative(t *testing.T) {
	o := diagnose.Outcome{
		State:    diagnose.StateResolved,
		Root:     "Cooling_Agent",
		Symptom:  "RF_Agent",
		Reversed: true,
		Trail:    []diagnose.Transition{{From: diagnose.StateReverseVerify, To: diagnose.StateResolved, Reason: "connected"}},
	}
	got := format.Narrative(o)
	want := "Resolved: connected\nRoot cause Cooling, symptom RF. Initial theory was reversed.\n"
	if got != want {
		t.Errorf("Narrative = %q, want %q", got, want)
	}

	rejected := diagnose.Outcome{State: diagnose.StateRejected, Trail: []diagnose.Transition{{Reason: "no theory"}}}
	if got := format.Narrative(rejected); got != "Rejected: no theory\n" {
		t.Errorf("Narrative(rejected) = %q", got)
	}
}

// --- Helper tests ---

func TestFmtValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.000"},
		{50, "50.000"},
		{-1.5, "-1.500"},
		{1e-9, "1.000e-09"},
		{2.5e6, "2.500e+06"},
	}
	for _, tc := range tests {
		if got := format.FmtValue(tc.in); got != tc.want {
			t.Errorf("FmtValue(%g) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFmtTime(t *testing.T) {
	if got := format.FmtTime(time.Time{}); got != "-" {
		t.Errorf("FmtTime(zero) = %q", got)
	}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	if got := format.FmtTime(ts); got != "2026-03-01 11:00:00" {
		t.Errorf("FmtTime = %q", got)
	}
}

func TestFmtList(t *testing.T) {
	if got := format.FmtList(nil); got != "-" {
		t.Errorf("FmtList(nil) = %q", got)
	}
	if got := format.FmtList([]string{"a", "b"}); got != "a, b" {
		t.Errorf("FmtList = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}
	for _, tc := range tests {
		if got := format.Truncate(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestBoolMark(t *testing.T) {
	if format.BoolMark(true) != "✓" {
		t.Error("BoolMark(true) should be ✓")
	}
	if format.BoolMark(false) != "✗" {
		t.Error("BoolMark(false) should be ✗")
	}
}
