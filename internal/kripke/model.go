// Package kripke holds the belief state of an agent: a finite Kripke model of
// worlds, an accessibility relation and per-world valuations, with one
// designated current world.
//
// A Model is immutable once built. Hypothetical reasoning works on Clone or
// With; belief updates replace the whole model.
package kripke

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Edge is one ordered pair of the accessibility relation.
type Edge struct {
	From string
	To   string
}

// Model is a Kripke model. The zero value is an empty model with no worlds.
type Model struct {
	worlds    map[string]struct{}
	edges     map[Edge]struct{}
	valuation map[string]map[string]struct{}
	current   string

	succ map[string][]string // derived from edges, sorted per world
}

// New builds a model from explicit parts. Inputs are copied; duplicates collapse.
// No membership checks are made here; see Validate.
func New(worlds []string, edges []Edge, valuation map[string][]string, current string) *Model {
	m := &Model{
		worlds:    make(map[string]struct{}, len(worlds)),
		edges:     make(map[Edge]struct{}, len(edges)),
		valuation: make(map[string]map[string]struct{}, len(valuation)),
		current:   current,
	}
	for _, w := range worlds {
		m.worlds[w] = struct{}{}
	}
	for _, e := range edges {
		m.edges[e] = struct{}{}
	}
	for w, props := range valuation {
		set := make(map[string]struct{}, len(props))
		for _, p := range props {
			set[p] = struct{}{}
		}
		m.valuation[w] = set
	}
	m.index()
	return m
}

func (m *Model) index() {
	m.succ = make(map[string][]string)
	for e := range m.edges {
		m.succ[e.From] = append(m.succ[e.From], e.To)
	}
	for _, tos := range m.succ {
		sort.Strings(tos)
	}
}

// CurrentWorld returns the designated world rules are evaluated at.
func (m *Model) CurrentWorld() string { return m.current }

// HasWorld reports whether w is a declared world.
func (m *Model) HasWorld(w string) bool {
	_, ok := m.worlds[w]
	return ok
}

// Worlds returns the declared worlds, sorted.
func (m *Model) Worlds() []string { return sortedKeys(m.worlds) }

// Edges returns the accessibility relation sorted by (From, To).
func (m *Model) Edges() []Edge {
	out := make([]Edge, 0, len(m.edges))
	for e := range m.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Valuation returns the propositions true at world, sorted. Unknown worlds
// have an empty valuation.
func (m *Model) Valuation(world string) []string { return sortedKeys(m.valuation[world]) }

// Holds reports whether prop is true at world.
func (m *Model) Holds(world, prop string) bool {
	_, ok := m.valuation[world][prop]
	return ok
}

// Successors returns the worlds accessible from world.
func (m *Model) Successors(world string) []string {
	return append([]string(nil), m.succ[world]...)
}

// Clone returns a deep copy sharing no mutable state with m.
func (m *Model) Clone() *Model {
	c := &Model{
		worlds:    make(map[string]struct{}, len(m.worlds)),
		edges:     make(map[Edge]struct{}, len(m.edges)),
		valuation: make(map[string]map[string]struct{}, len(m.valuation)),
		current:   m.current,
	}
	for w := range m.worlds {
		c.worlds[w] = struct{}{}
	}
	for e := range m.edges {
		c.edges[e] = struct{}{}
	}
	for w, props := range m.valuation {
		set := make(map[string]struct{}, len(props))
		for p := range props {
			set[p] = struct{}{}
		}
		c.valuation[w] = set
	}
	c.index()
	return c
}

// With returns a clone whose current world additionally holds props.
// The valuation set is created when the current world has none.
func (m *Model) With(props ...string) *Model {
	c := m.Clone()
	set, ok := c.valuation[c.current]
	if !ok {
		set = make(map[string]struct{}, len(props))
		c.valuation[c.current] = set
	}
	for _, p := range props {
		set[p] = struct{}{}
	}
	return c
}

// Serialized is the plain data form exchanged with the oracle and stored on disk.
type Serialized struct {
	Worlds       []string            `json:"worlds" yaml:"worlds"`
	Relations    [][]string          `json:"relations" yaml:"relations"`
	Valuations   map[string][]string `json:"valuations" yaml:"valuations"`
	CurrentWorld string              `json:"current_world" yaml:"current_world"`
}

// ToSerializable returns the plain data form with every collection sorted, so
// equal models serialize byte-identically.
func (m *Model) ToSerializable() Serialized {
	s := Serialized{
		Worlds:       m.Worlds(),
		Relations:    make([][]string, 0, len(m.edges)),
		Valuations:   make(map[string][]string, len(m.valuation)),
		CurrentWorld: m.current,
	}
	for _, e := range m.Edges() {
		s.Relations = append(s.Relations, []string{e.From, e.To})
	}
	for w := range m.valuation {
		s.Valuations[w] = m.Valuation(w)
	}
	return s
}

// MarshalJSON encodes the serializable form.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToSerializable())
}

// FromSerializable rebuilds a model. A relation entry that is not a pair is an error.
func FromSerializable(s Serialized) (*Model, error) {
	edges := make([]Edge, 0, len(s.Relations))
	for i, r := range s.Relations {
		if len(r) != 2 {
			return nil, fmt.Errorf("relation %d: want [from, to], got %d elements", i, len(r))
		}
		edges = append(edges, Edge{From: r[0], To: r[1]})
	}
	return New(s.Worlds, edges, s.Valuations, s.CurrentWorld), nil
}

// MustFromSerializable is FromSerializable for compiled-in templates.
func MustFromSerializable(s Serialized) *Model {
	m, err := FromSerializable(s)
	if err != nil {
		panic(err)
	}
	return m
}

// InvariantError lists every world-membership violation found by Validate.
type InvariantError struct {
	Violations []string
}

func (e *InvariantError) Error() string {
	return "kripke model invariant violated: " + strings.Join(e.Violations, "; ")
}

// Validate checks that relation endpoints and valuation worlds are declared
// worlds and that the current world is declared whenever any world is.
func (m *Model) Validate() error {
	var v []string
	for _, e := range m.Edges() {
		if !m.HasWorld(e.From) {
			v = append(v, fmt.Sprintf("relation (%s, %s): unknown source world %q", e.From, e.To, e.From))
		}
		if !m.HasWorld(e.To) {
			v = append(v, fmt.Sprintf("relation (%s, %s): unknown target world %q", e.From, e.To, e.To))
		}
	}
	for _, w := range sortedKeys(m.valuation) {
		if !m.HasWorld(w) {
			v = append(v, fmt.Sprintf("valuation for unknown world %q", w))
		}
	}
	if len(m.worlds) > 0 && !m.HasWorld(m.current) {
		v = append(v, fmt.Sprintf("current world %q is not a declared world", m.current))
	}
	if len(v) > 0 {
		return &InvariantError{Violations: v}
	}
	return nil
}

// Equal reports structural equality independent of insertion order. A world
// mapped to an empty valuation equals a world with no valuation entry.
func Equal(a, b *Model) bool {
	if a.current != b.current || len(a.worlds) != len(b.worlds) || len(a.edges) != len(b.edges) {
		return false
	}
	for w := range a.worlds {
		if !b.HasWorld(w) {
			return false
		}
	}
	for e := range a.edges {
		if _, ok := b.edges[e]; !ok {
			return false
		}
	}
	worlds := make(map[string]struct{})
	for w := range a.valuation {
		worlds[w] = struct{}{}
	}
	for w := range b.valuation {
		worlds[w] = struct{}{}
	}
	for w := range worlds {
		va, vb := a.valuation[w], b.valuation[w]
		if len(va) != len(vb) {
			return false
		}
		for p := range va {
			if _, ok := vb[p]; !ok {
				return false
			}
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
