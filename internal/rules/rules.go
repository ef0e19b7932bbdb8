// Package rules checks candidate beliefs against a fixed set of modal logic
// expert rules.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"plantdiag/internal/kripke"
	"plantdiag/internal/modal"
)

// defaultSources are the expert rules the diagnostics role ships with.
var defaultSources = []string{
	// A high cavity temperature admits a cooling fault as a cause.
	"[] (rf_temp_high -> <>cooling_fault_reported)",
	// A klystron failure necessarily implies an RF power fault, not the other way around.
	"[] (klystron_fault_reported -> rf_power_fault_reported)",
	// A cooling fault and a klystron fault are never the same event.
	"[] ~(cooling_fault_reported & klystron_fault_reported)",
	// High vacuum pressure is never the root cause of an RF power failure.
	"[] (vacuum_fault_reported -> ~<>rf_fault_is_root_cause)",
}

// Rule is one compiled rule with its source text.
type Rule struct {
	Source  string
	Formula modal.Formula
}

// Set is an immutable, ordered collection of compiled rules. A nil *Set is an
// empty set: no constraints configured.
type Set struct {
	rules []Rule
}

// Compile parses every source once. A malformed rule is a deployment bug; the
// returned error wraps the *modal.SyntaxError with the rule's index.
func Compile(sources []string) (*Set, error) {
	s := &Set{rules: make([]Rule, 0, len(sources))}
	for i, src := range sources {
		f, err := modal.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("rule %d %q: %w", i, src, err)
		}
		s.rules = append(s.rules, Rule{Source: src, Formula: f})
	}
	return s, nil
}

// MustCompile is Compile for compiled-in rule sets. It panics on error.
func MustCompile(sources []string) *Set {
	s, err := Compile(sources)
	if err != nil {
		panic(err)
	}
	return s
}

// Default returns the built-in expert rules.
func Default() *Set { return MustCompile(defaultSources) }

// file is the on-disk layout of a rule file.
type file struct {
	Rules []string `json:"rules" yaml:"rules"`
}

// LoadFile reads and compiles a YAML or JSON rule file. Format is chosen by
// extension, falling back to content sniffing.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses rule file bytes. ext is a format hint (".yaml", ".json"); empty = detect.
func Load(data []byte, ext string) (*Set, error) {
	var f file
	ext = strings.ToLower(ext)
	isJSON := ext == ".json" || (ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{"))
	if isJSON {
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse rules json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	return Compile(f.Rules)
}

// Len returns the number of rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Rules returns the compiled rules in load order.
func (s *Set) Rules() []Rule {
	if s == nil {
		return nil
	}
	return append([]Rule(nil), s.rules...)
}

// Sources returns the rule texts in load order.
func (s *Set) Sources() []string {
	out := make([]string, 0, s.Len())
	for _, r := range s.Rules() {
		out = append(out, r.Source)
	}
	return out
}

// Verdict is the outcome of checking one candidate proposition.
type Verdict struct {
	Candidate  string
	Consistent bool
	Violated   []string // sources of rules that evaluated false
}

// Check evaluates every rule at the current world of a hypothetical copy of
// model in which candidate also holds. The model itself is never modified.
func (s *Set) Check(model *kripke.Model, candidate string) Verdict {
	v := Verdict{Candidate: candidate, Consistent: true}
	if s.Len() == 0 {
		return v
	}
	h := model.With(candidate)
	for _, r := range s.rules {
		if !modal.Evaluate(h, h.CurrentWorld(), r.Formula) {
			v.Consistent = false
			v.Violated = append(v.Violated, r.Source)
		}
	}
	return v
}

// IsConsistent reports whether adding candidate to the current world keeps
// every rule true.
func (s *Set) IsConsistent(model *kripke.Model, candidate string) bool {
	return s.Check(model, candidate).Consistent
}

// FaultProposition derives the candidate proposition for a report sender:
// the sender's role prefix (up to the first '_'), lower-cased, suffixed
// "_fault_reported". "Cooling_Agent" becomes "cooling_fault_reported".
func FaultProposition(sender string) string {
	prefix, _, _ := strings.Cut(sender, "_")
	return strings.ToLower(prefix) + "_fault_reported"
}
