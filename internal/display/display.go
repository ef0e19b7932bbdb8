// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, tables, and logs.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import (
	"strings"
	"unicode"
)

// --- Diagnosis states ---

var states = map[string]string{
	"COLLECT":          "Collect",
	"HYPOTHESIZE":      "Hypothesize",
	"VALIDATE":         "Validate",
	"VERIFY":           "Verify",
	"REVERSE_VALIDATE": "Reverse validate",
	"REVERSE_VERIFY":   "Reverse verify",
	"RESOLVED":         "Resolved",
	"REJECTED":         "Rejected",
}

// State returns the human-readable name for a diagnosis state.
// Unknown codes are returned as-is.
func State(code string) string {
	if name, ok := states[code]; ok {
		return name
	}
	return code
}

// StatePath converts a list of state codes to a readable path.
// ["COLLECT", "HYPOTHESIZE"] -> "Collect → Hypothesize"
func StatePath(codes []string) string {
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = State(c)
	}
	return strings.Join(names, " → ")
}

// --- Agents ---

var agents = map[string]string{
	"RF_Agent":               "RF",
	"Cooling_Agent":          "Cooling",
	"Klystron_Agent":         "Klystron",
	"Vacuum_Agent":           "Vacuum",
	"AcceleratorDiagnostics": "Diagnostics",
	"LatticeLayoutAgent":     "Lattice layout",
}

// Agent returns the short label for an agent name. Names following the
// "<Prefix>_Agent" convention but missing from the table render as Prefix.
func Agent(name string) string {
	if label, ok := agents[name]; ok {
		return label
	}
	if prefix, ok := strings.CutSuffix(name, "_Agent"); ok && prefix != "" {
		return prefix
	}
	return name
}

// AgentPair renders a root/symptom pair as "Cooling → RF".
func AgentPair(root, symptom string) string {
	return Agent(root) + " → " + Agent(symptom)
}

// --- Suspected systems ---

var systems = map[string]string{
	"Cooling":          "Cooling system",
	"Power":            "Power distribution",
	"Vacuum":           "Vacuum system",
	"Klystron":         "Klystron",
	"Magnet":           "Magnet power supplies",
	"Beam Instability": "Beam instability",
	"Unknown":          "Unknown",
}

// System returns the descriptive name for a suspected system.
func System(code string) string {
	if name, ok := systems[code]; ok {
		return name
	}
	return code
}

// --- Fault kinds ---

var faultKinds = map[string]string{
	"low":   "Low (10%)",
	"high":  "High (115%)",
	"stuck": "Stuck",
}

// FaultKind returns the label for a fault kind.
func FaultKind(code string) string {
	if name, ok := faultKinds[code]; ok {
		return name
	}
	return code
}

// --- Propositions ---

// Proposition turns a snake_case proposition into words:
// "cooling_fault_reported" -> "Cooling fault reported".
func Proposition(p string) string {
	if p == "" {
		return ""
	}
	words := strings.ReplaceAll(p, "_", " ")
	r := []rune(words)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Relation labels a relation type; an empty relation is "any".
func Relation(r string) string {
	if r == "" {
		return "any"
	}
	return r
}
