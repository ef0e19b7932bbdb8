package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"plantdiag/internal/agent"
	"plantdiag/internal/kripke"
)

// readModel loads a Kripke model from a YAML or JSON file. An empty path
// yields the diagnostics agent's initial model.
func readModel(path string) (*kripke.Model, error) {
	s := agent.RoleDiagnostics.Config().Template
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read model: %w", err)
		}
		s = kripke.Serialized{}
		// YAML is a superset of JSON, so one decoder covers both.
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse model %s: %w", path, err)
		}
	}
	m, err := kripke.FromSerializable(s)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
