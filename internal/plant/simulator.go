// Package plant simulates the process variables of an accelerator sector,
// injects scheduled faults and runs the monitoring and diagnosis loop over
// them.
package plant

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
)

// Nominal describes a process variable at rest: its base value and the
// amplitude of uniform noise around it.
type Nominal struct {
	Base  float64 `json:"base" yaml:"base"`
	Noise float64 `json:"noise" yaml:"noise"`
}

// Kind is a fault kind applied to a single process variable.
type Kind string

const (
	KindLow   Kind = "low"   // value scaled to 10%
	KindHigh  Kind = "high"  // value scaled to 115%
	KindStuck Kind = "stuck" // value pinned
)

// DefaultPVs is the sector's process variable table.
func DefaultPVs() map[string]Nominal {
	return map[string]Nominal{
		"BPM:1A:x":                  {0, 0.05},
		"BPM:1A:y":                  {0, 0.05},
		"RF:cavity_temp":            {50, 1.5},
		"RF:forward_power":          {10, 0.01},
		"RF:klystron_output":        {100, 2},
		"CM:1A:hcorr":               {0, 0.5},
		"CM:1A:vcorr":               {0, 0.5},
		"VAC:sector1_pump:pressure": {1e-9, 5e-10},
		"COOL:water_pressure":       {80, 1},
		"COOL:water_temp":           {22, 0.5},
		"COOL:valve_position":       {100, 0},
	}
}

type fault struct {
	kind  Kind
	value float64
	fixed bool
}

// Simulator produces noisy readings with sustained faults and the physical
// coupling between them: a klystron fault scales the RF forward power, and a
// cooling fault heats the RF cavity by 5 degrees per tick it has been active.
type Simulator struct {
	mu           sync.Mutex
	rng          *rand.Rand
	pvs          map[string]Nominal
	faults       map[string]fault
	coolingTicks int
}

// NewSimulator creates a simulator over pvs (DefaultPVs when nil) with a
// deterministic noise source.
func NewSimulator(pvs map[string]Nominal, seed uint64) *Simulator {
	if pvs == nil {
		pvs = DefaultPVs()
	}
	cp := make(map[string]Nominal, len(pvs))
	for k, v := range pvs {
		cp[k] = v
	}
	return &Simulator{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		pvs:    cp,
		faults: make(map[string]fault),
	}
}

// PVs returns the simulated process variable names, sorted.
func (s *Simulator) PVs() []string {
	out := make([]string, 0, len(s.pvs))
	for k := range s.pvs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Inject starts a sustained fault on pv. value is used by KindStuck; nil pins
// the variable at its base value.
func (s *Simulator) Inject(pv string, kind Kind, value *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pvs[pv]; !ok {
		return fmt.Errorf("inject %s: unknown process variable", pv)
	}
	switch kind {
	case KindLow, KindHigh, KindStuck:
	default:
		return fmt.Errorf("inject %s: unknown fault kind %q", pv, kind)
	}
	f := fault{kind: kind}
	if value != nil {
		f.value, f.fixed = *value, true
	}
	s.faults[pv] = f
	if strings.HasPrefix(pv, "COOL") {
		s.coolingTicks = 1
	}
	return nil
}

// Faults returns the process variables with an active fault, sorted.
func (s *Simulator) Faults() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.faults))
	for k := range s.faults {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Read advances the simulation by one tick and returns every reading.
func (s *Simulator) Read() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coolingTicks > 0 {
		s.coolingTicks++
	}
	out := make(map[string]float64, len(s.pvs))
	for _, pv := range s.PVs() {
		out[pv] = s.value(pv)
	}
	return out
}

func (s *Simulator) value(pv string) float64 {
	n := s.pvs[pv]
	v := n.Base + (s.rng.Float64()*2-1)*n.Noise

	if f, ok := s.faults[pv]; ok {
		switch f.kind {
		case KindLow:
			v *= 0.1
		case KindHigh:
			v *= 1.15
		case KindStuck:
			v = n.Base
			if f.fixed {
				v = f.value
			}
		}
	}

	switch pv {
	case "RF:forward_power":
		if _, ok := s.faults["RF:klystron_output"]; ok {
			if base := s.pvs["RF:klystron_output"].Base; base != 0 {
				v *= s.value("RF:klystron_output") / base
			}
		}
	case "RF:cavity_temp":
		if _, ok := s.faults["COOL:valve_position"]; ok {
			v += float64(s.coolingTicks) * 5
		}
	}
	return v
}
