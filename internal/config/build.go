package config

import (
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"plantdiag/internal/diagnose"
	"plantdiag/internal/lattice"
	"plantdiag/internal/oracle"
	"plantdiag/internal/plant"
	"plantdiag/internal/rules"
	"plantdiag/internal/store"
)

// Rules loads the configured rule file, or the built-in rules.
func (c *Config) Rules() (*rules.Set, error) {
	if c.RulesFile == "" {
		return rules.Default(), nil
	}
	s, err := rules.LoadFile(c.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return s, nil
}

// Index builds the connectivity index from the configured layout and
// fallbacks, or the built-in ones.
func (c *Config) Index() (*lattice.Index, error) {
	layout := lattice.DefaultLayout()
	if c.LayoutFile != "" {
		l, err := lattice.LoadFile(c.LayoutFile)
		if err != nil {
			return nil, fmt.Errorf("load layout: %w", err)
		}
		layout = l
	}
	fallbacks := c.Fallbacks
	if fallbacks == nil {
		fallbacks = lattice.DefaultFallbacks()
	}
	return lattice.NewIndex(layout, fallbacks), nil
}

// SenderMap returns the default sender configuration with the file's entries applied.
func (c *Config) SenderMap() diagnose.SenderMap {
	return diagnose.DefaultSenders().Merge(c.Senders)
}

// Scenarios loads the configured scenario file, or the built-in scenarios.
func (c *Config) Scenarios() ([]plant.Scenario, error) {
	if c.ScenariosFile == "" {
		return plant.DefaultScenarios(), nil
	}
	return plant.LoadScenarios(c.ScenariosFile)
}

// OpenStore opens the configured store; an empty path is in-memory.
func (c *Config) OpenStore() (store.Store, error) {
	if c.Store.Path == "" {
		return store.NewMemStore(), nil
	}
	return store.Open(c.Store.Path)
}

// NewOracle builds the configured oracle backend.
func (c *Config) NewOracle(logger *slog.Logger) (oracle.Oracle, error) {
	o := c.Oracle
	opts := []oracle.Option{
		oracle.WithLogger(logger),
		oracle.WithTimeout(o.Timeout.Std()),
		oracle.WithRateLimit(rate.Limit(o.RatePerSec), o.Burst),
		oracle.WithAPIKey(o.APIKey()),
	}
	var completer oracle.Completer
	switch o.Backend {
	case BackendStub:
		return &oracle.Stub{}, nil
	case BackendOllama:
		url := o.BaseURL
		if url == "" {
			url = DefaultOllamaURL
		}
		cl, err := oracle.NewOllama(url, o.Model, opts...)
		if err != nil {
			return nil, err
		}
		completer = cl
	case BackendOpenAI:
		cl, err := oracle.NewOpenAI(o.BaseURL, o.Model, opts...)
		if err != nil {
			return nil, err
		}
		completer = cl
	default:
		return nil, fmt.Errorf("unknown oracle backend %q", o.Backend)
	}
	return oracle.NewChatOracle(completer, logger), nil
}
