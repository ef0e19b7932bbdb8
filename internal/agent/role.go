// Package agent implements the per-component monitoring agents. Each agent has
// a fixed role; the role's declarative configuration supplies its initial
// belief model and the process variables it watches.
package agent

import (
	"fmt"

	"plantdiag/internal/kripke"
)

// Role is the closed set of agent kinds.
type Role int

const (
	RoleRF Role = iota
	RoleCooling
	RoleKlystron
	RoleVacuum
	RoleDiagnostics
	RoleLattice
)

// Threshold bounds one monitored process variable. Values are nominal only
// strictly inside (Low, High).
type Threshold struct {
	PV   string  `json:"pv" yaml:"pv"`
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Contains reports whether v lies strictly inside the bounds.
func (t Threshold) Contains(v float64) bool { return t.Low < v && v < t.High }

// RoleConfig is the declarative description of a role.
type RoleConfig struct {
	Role      Role
	Name      string
	Template  kripke.Serialized
	Monitored []Threshold // checked in order; the first breach is reported
}

// Reporter reports whether agents of this role watch process variables.
func (c RoleConfig) Reporter() bool { return len(c.Monitored) > 0 }

var roleConfigs = []RoleConfig{
	{
		Role: RoleRF,
		Name: "RF_Agent",
		Template: kripke.Serialized{
			Worlds:       []string{"w0", "w1", "w2"},
			Relations:    [][]string{{"w0", "w1"}, {"w0", "w2"}},
			Valuations:   map[string][]string{"w0": {"rf_ok"}, "w1": {"rf_temp_high"}, "w2": {"rf_power_low"}},
			CurrentWorld: "w0",
		},
		Monitored: []Threshold{
			{PV: "RF:cavity_temp", Low: 40, High: 60},
			{PV: "RF:forward_power", Low: 9.5, High: 10.5},
		},
	},
	{
		Role: RoleCooling,
		Name: "Cooling_Agent",
		Template: kripke.Serialized{
			Worlds:       []string{"w0", "w1"},
			Relations:    [][]string{{"w0", "w1"}},
			Valuations:   map[string][]string{"w0": {"cooling_ok"}, "w1": {"pressure_low", "cooling_fault_reported"}},
			CurrentWorld: "w0",
		},
		Monitored: []Threshold{
			{PV: "COOL:water_pressure", Low: 75, High: 85},
			{PV: "COOL:valve_position", Low: 95, High: 105},
		},
	},
	{
		Role: RoleKlystron,
		Name: "Klystron_Agent",
		Template: kripke.Serialized{
			Worlds:       []string{"w0", "w1"},
			Relations:    [][]string{{"w0", "w1"}},
			Valuations:   map[string][]string{"w0": {"klystron_ok"}, "w1": {"output_power_low", "klystron_fault_reported"}},
			CurrentWorld: "w0",
		},
		Monitored: []Threshold{
			{PV: "RF:klystron_output", Low: 90, High: 110},
		},
	},
	{
		Role: RoleVacuum,
		Name: "Vacuum_Agent",
		Template: kripke.Serialized{
			Worlds:       []string{"w0", "w1"},
			Relations:    [][]string{{"w0", "w1"}},
			Valuations:   map[string][]string{"w0": {"vacuum_ok"}, "w1": {"pressure_high", "vacuum_fault_reported"}},
			CurrentWorld: "w0",
		},
		Monitored: []Threshold{
			{PV: "VAC:sector1_pump:pressure", Low: 0, High: 5e-9},
		},
	},
	{
		Role: RoleDiagnostics,
		Name: "AcceleratorDiagnostics",
		Template: kripke.Serialized{
			Worlds:    []string{"w0", "w1", "w2", "w3", "w4"},
			Relations: [][]string{{"w0", "w1"}, {"w0", "w2"}, {"w0", "w3"}, {"w0", "w4"}},
			Valuations: map[string][]string{
				"w0": {"system_nominal"},
				"w1": {"rf_fault_reported"},
				"w2": {"cooling_fault_reported"},
				"w3": {"klystron_fault_reported", "rf_power_fault_reported"},
				"w4": {"vacuum_fault_reported"},
			},
			CurrentWorld: "w0",
		},
	},
	{
		Role:     RoleLattice,
		Name:     "LatticeLayoutAgent",
		Template: kripke.Serialized{},
	},
}

// Roles lists every role in declaration order.
func Roles() []Role {
	out := make([]Role, len(roleConfigs))
	for i, c := range roleConfigs {
		out[i] = c.Role
	}
	return out
}

// Config returns the configuration of r. Templates are deep-copied so callers
// may not alter the shared table.
func (r Role) Config() RoleConfig {
	if r < 0 || int(r) >= len(roleConfigs) {
		panic(fmt.Sprintf("agent: unknown role %d", int(r)))
	}
	c := roleConfigs[r]
	c.Monitored = append([]Threshold(nil), c.Monitored...)
	c.Template = kripke.MustFromSerializable(c.Template).ToSerializable()
	return c
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleConfigs) {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleConfigs[r].Name
}

// ParseRole maps an agent name such as "Cooling_Agent" to its role.
func ParseRole(name string) (Role, error) {
	for _, c := range roleConfigs {
		if c.Name == name {
			return c.Role, nil
		}
	}
	return 0, fmt.Errorf("unknown agent role %q", name)
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(b []byte) error {
	role, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = role
	return nil
}
