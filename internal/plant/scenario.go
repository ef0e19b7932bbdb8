package plant

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"plantdiag/internal/agent"
)

//go:embed scenarios.yaml
var defaultScenarios []byte

// ScheduledFault injects one fault at the start of a tick.
type ScheduledFault struct {
	Tick  int      `yaml:"tick" json:"tick"`
	PV    string   `yaml:"pv" json:"pv"`
	Kind  Kind     `yaml:"kind" json:"kind"`
	Value *float64 `yaml:"value,omitempty" json:"value,omitempty"`
}

// Scenario is a scripted fault chain with the agents taking part in it.
type Scenario struct {
	ID          int              `yaml:"id" json:"id"`
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description" json:"description"`
	Expected    string           `yaml:"expected" json:"expected"`
	Faults      []ScheduledFault `yaml:"faults" json:"faults"`
	Agents      []agent.Role     `yaml:"agents" json:"agents"`
}

// Key is the scenario's display key, e.g. "1_cooling_failure".
func (s Scenario) Key() string { return fmt.Sprintf("%d_%s", s.ID, s.Name) }

// FaultsAt returns the faults scheduled for tick.
func (s Scenario) FaultsAt(tick int) []ScheduledFault {
	var out []ScheduledFault
	for _, f := range s.Faults {
		if f.Tick == tick {
			out = append(out, f)
		}
	}
	return out
}

// HasRole reports whether the scenario includes an agent of role r.
func (s Scenario) HasRole(r agent.Role) bool {
	for _, a := range s.Agents {
		if a == r {
			return true
		}
	}
	return false
}

// DefaultScenarios returns the built-in scenarios, ordered by id.
func DefaultScenarios() []Scenario {
	out, err := ParseScenarios(defaultScenarios)
	if err != nil {
		panic(fmt.Sprintf("built-in scenarios: %v", err))
	}
	return out
}

// LoadScenarios reads a YAML scenario list from path.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	return ParseScenarios(data)
}

// ParseScenarios decodes and checks a YAML scenario list.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var out []Scenario
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	pvs := DefaultPVs()
	seen := make(map[int]bool)
	for _, s := range out {
		if seen[s.ID] {
			return nil, fmt.Errorf("scenario %d: duplicate id", s.ID)
		}
		seen[s.ID] = true
		for _, f := range s.Faults {
			if _, ok := pvs[f.PV]; !ok {
				return nil, fmt.Errorf("scenario %s: unknown process variable %q", s.Key(), f.PV)
			}
			switch f.Kind {
			case KindLow, KindHigh, KindStuck:
			default:
				return nil, fmt.Errorf("scenario %s: unknown fault kind %q", s.Key(), f.Kind)
			}
			if f.Tick < 1 {
				return nil, fmt.Errorf("scenario %s: fault on %s has tick %d, want >= 1", s.Key(), f.PV, f.Tick)
			}
		}
	}
	return out, nil
}

// FindScenario selects a scenario by id ("1"), name ("cooling_failure") or
// key ("1_cooling_failure").
func FindScenario(scenarios []Scenario, ref string) (Scenario, error) {
	ref = strings.TrimSpace(ref)
	id, idErr := strconv.Atoi(ref)
	for _, s := range scenarios {
		if (idErr == nil && s.ID == id) || s.Name == ref || s.Key() == ref {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("unknown scenario %q", ref)
}
