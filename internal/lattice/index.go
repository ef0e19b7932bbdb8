// Package lattice answers connectivity questions over the static component
// graph of the plant: which component owns a sensor, and whether one component
// feeds another through a given relation.
package lattice

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Fallback is a naming-convention heuristic for sensors no component lists:
// any id containing Contains resolves to Component.
type Fallback struct {
	Contains  string `json:"contains" yaml:"contains"`
	Component string `json:"component" yaml:"component"`
}

// DefaultFallbacks returns the heuristics used with the default layout.
func DefaultFallbacks() []Fallback {
	return []Fallback{
		{Contains: "COOL:water_pressure", Component: "COOL:primary_loop"},
		{Contains: "PS:quad_1A", Component: "PS:quad_1A"},
		{Contains: "VAC:sector1_pump", Component: "VAC:sector1_pump"},
	}
}

// Connection is the answer to a connectivity query. Reason is meant for
// humans and is surfaced verbatim.
type Connection struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason"`
}

// Index is a read-only query surface over a Layout. It is safe for concurrent use.
type Index struct {
	layout    Layout
	ids       []string
	fallbacks []Fallback
}

// NewIndex copies layout and fallbacks into an immutable index.
func NewIndex(layout Layout, fallbacks []Fallback) *Index {
	idx := &Index{
		layout:    make(Layout, len(layout)),
		fallbacks: append([]Fallback(nil), fallbacks...),
	}
	for id, c := range layout {
		idx.layout[id] = copyComponent(c)
		idx.ids = append(idx.ids, id)
	}
	sort.Strings(idx.ids)
	return idx
}

// Default returns an index over the built-in layout with the default fallbacks.
func Default() *Index { return NewIndex(DefaultLayout(), DefaultFallbacks()) }

func copyComponent(c Component) Component {
	out := c
	if c.ConnectedTo != nil {
		out.ConnectedTo = make(map[string]string, len(c.ConnectedTo))
		for k, v := range c.ConnectedTo {
			out.ConnectedTo[k] = v
		}
	}
	out.Services = slices.Clone(c.Services)
	out.Sensors = slices.Clone(c.Sensors)
	return out
}

// IDs returns all component ids, sorted.
func (x *Index) IDs() []string { return slices.Clone(x.ids) }

// Component looks up a component by id.
func (x *Index) Component(id string) (Component, bool) {
	c, ok := x.layout[id]
	if !ok {
		return Component{}, false
	}
	return copyComponent(c), true
}

// ResolveComponent returns the component owning a sensor id. Exact membership
// in a component's sensor list wins; otherwise the fallbacks are tried in order.
func (x *Index) ResolveComponent(sensor string) (string, bool) {
	for _, id := range x.ids {
		if slices.Contains(x.layout[id].Sensors, sensor) {
			return id, true
		}
	}
	for _, fb := range x.fallbacks {
		if fb.Contains != "" && strings.Contains(sensor, fb.Contains) {
			return fb.Component, true
		}
	}
	return "", false
}

// Services reports whether upstream lists downstream among the components it services.
func (x *Index) Services(upstream, downstream string) bool {
	return slices.Contains(x.layout[upstream].Services, downstream)
}

// AreConnected reports whether downstream is fed by the component owning the
// upstream sensor through relation. Either side may declare the link: the
// downstream's connected_to entry, or the upstream's services list.
func (x *Index) AreConnected(upstream, downstream, relation string) Connection {
	owner, ok := x.ResolveComponent(upstream)
	if !ok {
		return Connection{Reason: fmt.Sprintf(
			"Connection check failed: the upstream PV '%s' does not map to a known component in the lattice model.", upstream)}
	}
	down, ok := x.layout[downstream]
	if !ok {
		return Connection{Reason: fmt.Sprintf(
			"Connection check failed: the downstream component '%s' does not exist in the lattice model.", downstream)}
	}
	if src, ok := down.ConnectedTo[relation]; ok && src == owner {
		return Connection{Connected: true, Reason: fmt.Sprintf(
			"Connection verified: the downstream component '%s' lists '%s' as its '%s' source.", downstream, owner, relation)}
	}
	if x.Services(owner, downstream) {
		return Connection{Connected: true, Reason: fmt.Sprintf(
			"Connection verified: the upstream component '%s' lists '%s' in its services.", owner, downstream)}
	}
	return Connection{Reason: fmt.Sprintf(
		"Connection check failed: no physical '%s' connection was found between the upstream component '%s' and the downstream component '%s'.",
		relation, owner, downstream)}
}

// RelationContext describes the service links among components as a short
// paragraph for the oracle. It returns "" when fewer than two distinct
// components are given or none of them service each other.
func (x *Index) RelationContext(components []string) string {
	var ids []string
	for _, c := range components {
		if c != "" && !slices.Contains(ids, c) {
			ids = append(ids, c)
		}
	}
	if len(ids) < 2 {
		return ""
	}
	lines := []string{"For context, here are the known physical connections which imply causal direction:"}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if x.Services(a, b) {
				lines = append(lines, fmt.Sprintf("- The '%s' component provides a service to the '%s' component.", a, b))
			}
			if x.Services(b, a) {
				lines = append(lines, fmt.Sprintf("- The '%s' component provides a service to the '%s' component.", b, a))
			}
		}
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}
