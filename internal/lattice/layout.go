package lattice

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_layout.yaml
var defaultLayoutYAML []byte

// Component is one node of the connectivity graph. Every field may be absent.
type Component struct {
	Type        string            `json:"type,omitempty" yaml:"type,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	ConnectedTo map[string]string `json:"connected_to,omitempty" yaml:"connected_to,omitempty"` // relation type -> upstream component
	Services    []string          `json:"services,omitempty" yaml:"services,omitempty"`         // downstream components fed by this one
	Sensors     []string          `json:"sensors,omitempty" yaml:"sensors,omitempty"`           // process variables owned by this one
}

// Layout maps component id (its PV prefix, e.g. "RF:cavity") to its description.
type Layout map[string]Component

// DefaultLayout returns the built-in sector 1 layout.
func DefaultLayout() Layout {
	l, err := Load(defaultLayoutYAML, ".yaml")
	if err != nil {
		panic(fmt.Sprintf("lattice: embedded layout: %v", err))
	}
	return l
}

// LoadFile reads a YAML or JSON layout file.
func LoadFile(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses layout bytes. ext is the file extension used as format hint;
// empty means detect from content (a leading '{' is JSON, anything else YAML).
func Load(data []byte, ext string) (Layout, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}
	var l Layout
	if ext == ".json" {
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("parse layout json: %w", err)
		}
		return l, nil
	}
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout yaml: %w", err)
	}
	return l, nil
}
