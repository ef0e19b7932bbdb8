package format

import (
	"fmt"
	"sort"
	"strings"

	"plantdiag/internal/diagnose"
	"plantdiag/internal/display"
	"plantdiag/internal/kripke"
	"plantdiag/internal/modal"
	"plantdiag/internal/plant"
	"plantdiag/internal/rules"
	"plantdiag/internal/store"
)

// ModelTable lists every world of m with its successors and valuation.
// The current world is marked.
func ModelTable(m *kripke.Model, mode Mode) string {
	tb := NewTable(mode)
	tb.Header("World", "Current", "Successors", "Valuation")
	for _, w := range m.Worlds() {
		current := ""
		if w == m.CurrentWorld() {
			current = "*"
		}
		tb.Row(w, current, FmtList(m.Successors(w)), FmtList(m.Valuation(w)))
	}
	tb.Columns(ColumnConfig{Number: 2, Align: AlignCenter})
	return tb.String()
}

// RulesTable lists rules with whether each holds at the current world of m.
func RulesTable(set *rules.Set, m *kripke.Model, mode Mode) string {
	tb := NewTable(mode)
	tb.Header("#", "Rule", "Holds")
	for i, r := range set.Rules() {
		tb.Row(i+1, r.Source, BoolMark(modal.Evaluate(m, m.CurrentWorld(), r.Formula)))
	}
	tb.Columns(
		ColumnConfig{Number: 1, Align: AlignRight},
		ColumnConfig{Number: 3, Align: AlignCenter},
	)
	return tb.String()
}

// ReportsTable lists pending reports ordered by sender.
func ReportsTable(reports map[string]diagnose.Report, mode Mode) string {
	senders := make([]string, 0, len(reports))
	for s := range reports {
		senders = append(senders, s)
	}
	sort.Strings(senders)

	tb := NewTable(mode)
	tb.Header("Agent", "PV", "Value", "Tick", "Suspected", "Report")
	for _, s := range senders {
		r := reports[s]
		tb.Row(display.Agent(s), r.PV, FmtValue(r.Value), r.Tick, display.System(r.SuspectedSystem), r.Text)
	}
	tb.Columns(
		ColumnConfig{Number: 3, Align: AlignRight},
		ColumnConfig{Number: 4, Align: AlignRight},
		ColumnConfig{Number: 6, MaxWidth: 60},
	)
	return tb.String()
}

// TrailTable lists the transitions of one diagnosis attempt.
func TrailTable(trail []diagnose.Transition, mode Mode) string {
	tb := NewTable(mode)
	tb.Header("Step", "From", "To", "Reason")
	for i, t := range trail {
		tb.Row(i+1, display.State(string(t.From)), display.State(string(t.To)), t.Reason)
	}
	tb.Columns(
		ColumnConfig{Number: 1, Align: AlignRight},
		ColumnConfig{Number: 4, MaxWidth: 70},
	)
	return tb.String()
}

// ResolutionsTable lists recorded outcomes in recording order.
func ResolutionsTable(rs []*store.Resolution, mode Mode) string {
	tb := NewTable(mode)
	tb.Header("ID", "State", "Root → Symptom", "Reversed", "Recorded")
	for _, r := range rs {
		pair := "-"
		if r.Root != "" || r.Symptom != "" {
			pair = display.AgentPair(r.Root, r.Symptom)
		}
		tb.Row(Truncate(r.ID, 8), display.State(string(r.State)), pair, BoolMark(r.Reversed), FmtTime(r.CreatedAt))
	}
	tb.Columns(ColumnConfig{Number: 4, Align: AlignCenter})
	return tb.String()
}

// ScenariosTable lists scenarios with their fault schedule and agents.
func ScenariosTable(list []plant.Scenario, mode Mode) string {
	tb := NewTable(mode)
	tb.Header("ID", "Name", "Faults", "Agents", "Expected")
	for _, s := range list {
		faults := make([]string, len(s.Faults))
		for i, f := range s.Faults {
			faults[i] = fmt.Sprintf("t%d %s %s", f.Tick, f.PV, f.Kind)
		}
		agents := make([]string, len(s.Agents))
		for i, r := range s.Agents {
			agents[i] = display.Agent(r.String())
		}
		tb.Row(s.ID, s.Name, FmtList(faults), FmtList(agents), s.Expected)
	}
	tb.Columns(
		ColumnConfig{Number: 1, Align: AlignRight},
		ColumnConfig{Number: 5, MaxWidth: 50},
	)
	return tb.String()
}

// SummaryTable condenses finished runs: one row per scenario with its
// resolutions and what was left pending.
func SummaryTable(results []*plant.Result, mode Mode) string {
	tb := NewTable(mode)
	tb.Header("Scenario", "Ticks", "Attempts", "Resolved", "Unresolved")
	attempts := 0
	for _, r := range results {
		pairs := make([]string, len(r.Resolved))
		for i, p := range r.Resolved {
			pairs[i] = display.AgentPair(p[0], p[1])
		}
		pending := make([]string, 0, len(r.Unresolved))
		for s := range r.Unresolved {
			pending = append(pending, display.Agent(s))
		}
		sort.Strings(pending)
		attempts += len(r.Outcomes)
		tb.Row(r.Scenario.Key(), r.Ticks, len(r.Outcomes), FmtList(pairs), FmtList(pending))
	}
	tb.Footer("Total", "", attempts, "", "")
	tb.Columns(
		ColumnConfig{Number: 2, Align: AlignRight},
		ColumnConfig{Number: 3, Align: AlignRight},
	)
	return tb.String()
}

// Narrative renders an outcome as a short paragraph for humans.
func Narrative(o diagnose.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", display.State(string(o.State)), o.Reason())
	if o.State == diagnose.StateResolved {
		fmt.Fprintf(&b, "Root cause %s, symptom %s.", display.Agent(o.Root), display.Agent(o.Symptom))
		if o.Reversed {
			b.WriteString(" Initial theory was reversed.")
		}
		b.WriteString("\n")
	}
	return b.String()
}
