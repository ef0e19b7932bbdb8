package diagnose

import (
	"fmt"
	"sync"

	"plantdiag/internal/kripke"
)

// Belief holds an agent's live Kripke model. The model is only ever replaced
// as a whole; a candidate that fails validation leaves the prior model in place.
type Belief struct {
	mu    sync.RWMutex
	model *kripke.Model
}

// NewBelief wraps an initial model. The model must satisfy Validate.
func NewBelief(m *kripke.Model) (*Belief, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("initial belief: %w", err)
	}
	return &Belief{model: m}, nil
}

// MustBelief is NewBelief for compiled-in templates.
func MustBelief(m *kripke.Model) *Belief {
	b, err := NewBelief(m)
	if err != nil {
		panic(err)
	}
	return b
}

// Model returns the current model. Models have no mutating methods, so the
// value may be shared.
func (b *Belief) Model() *kripke.Model {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// Replace swaps in m after checking its invariants.
func (b *Belief) Replace(m *kripke.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	b.model = m
	b.mu.Unlock()
	return nil
}

// ReplaceSerialized rebuilds a model from its plain form and replaces the
// current one with it.
func (b *Belief) ReplaceSerialized(s kripke.Serialized) error {
	m, err := kripke.FromSerializable(s)
	if err != nil {
		return err
	}
	return b.Replace(m)
}
