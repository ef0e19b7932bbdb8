package diagnose

import "sort"

// Sender is what the diagnoser knows about one report sender: the process
// variable standing in for it in connectivity queries, the relation type it
// supplies downstream, and the component that owns it.
type Sender struct {
	PV        string `json:"pv" yaml:"pv" validate:"required"`
	Relation  string `json:"relation,omitempty" yaml:"relation,omitempty"`
	Component string `json:"component,omitempty" yaml:"component,omitempty"`
}

// SenderMap maps report sender names to their connectivity configuration.
type SenderMap map[string]Sender

// RelationUnknown is the relation type used for senders that declare none.
const RelationUnknown = "unknown"

// DefaultSenders returns the sender configuration for the standard agent roles.
func DefaultSenders() SenderMap {
	return SenderMap{
		"Cooling_Agent":  {PV: "COOL:valve_position", Relation: "cooling", Component: "COOL:primary_loop"},
		"Klystron_Agent": {PV: "RF:klystron_output", Relation: "power", Component: "RF:klystron"},
		"RF_Agent":       {PV: "RF:cavity", Component: "RF:cavity"},
		"Vacuum_Agent":   {PV: "VAC:sector1_pump:pressure", Component: "VAC:sector1_pump"},
	}
}

// RelationOf returns the sender's relation type, or RelationUnknown.
func (m SenderMap) RelationOf(sender string) string {
	if s, ok := m[sender]; ok && s.Relation != "" {
		return s.Relation
	}
	return RelationUnknown
}

// Components returns the distinct components owning the given senders, in
// sender order. Senders without a component are skipped.
func (m SenderMap) Components(senders []string) []string {
	sorted := append([]string(nil), senders...)
	sort.Strings(sorted)
	seen := make(map[string]bool)
	var out []string
	for _, s := range sorted {
		c := m[s].Component
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Merge returns a copy of m with every entry of overrides applied on top.
func (m SenderMap) Merge(overrides SenderMap) SenderMap {
	out := make(SenderMap, len(m)+len(overrides))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
