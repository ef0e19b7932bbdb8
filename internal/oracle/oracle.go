// Package oracle is the boundary to the external reasoning service that turns
// free-text anomaly reports into hypotheses, synthesizes causal theories and
// rewrites belief models. Backends: Ollama, OpenAI-compatible APIs and a
// deterministic stub.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"plantdiag/internal/kripke"
)

// Suspected systems a hypothesis may name.
const (
	SystemCooling  = "Cooling"
	SystemPower    = "Power"
	SystemVacuum   = "Vacuum"
	SystemKlystron = "Klystron"
	SystemMagnet   = "Magnet"
	SystemBeam     = "Beam Instability"
	SystemUnknown  = "Unknown"
)

// Systems lists every accepted suspected system.
var Systems = []string{SystemCooling, SystemPower, SystemVacuum, SystemKlystron, SystemMagnet, SystemBeam, SystemUnknown}

// Hypothesis is the oracle's guess at the upstream system behind one report.
type Hypothesis struct {
	SuspectedSystem string `json:"suspected_system"`
}

// ReportSummary is what the oracle sees of one pending report.
type ReportSummary struct {
	Report          string `json:"anomaly_report"`
	SuspectedSystem string `json:"suspected_system,omitempty"`
}

// Theory is a proposed causal chain between two report senders.
type Theory struct {
	RootCause   string `json:"root_cause_agent"`
	Symptom     string `json:"symptom_agent"`
	Explanation string `json:"causal_theory"`
}

// Oracle is the external reasoning service. Calls block; any error aborts only
// the caller's current attempt.
type Oracle interface {
	Hypothesize(ctx context.Context, report string) (Hypothesis, error)
	SynthesizeTheory(ctx context.Context, reports map[string]ReportSummary, connectivity string) (Theory, error)
	UpdateBelief(ctx context.Context, current kripke.Serialized, info string) (kripke.Serialized, error)
}

// HypothesisOrUnknown asks for a hypothesis and falls back to Unknown on any error.
func HypothesisOrUnknown(ctx context.Context, o Oracle, report string) (Hypothesis, error) {
	h, err := o.Hypothesize(ctx, report)
	if err != nil {
		return Hypothesis{SuspectedSystem: SystemUnknown}, err
	}
	return h, nil
}

// Result carries either a parsed value or the reason parsing failed.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successfully parsed value.
func Ok[T any](v T) Result[T] { return Result[T]{value: v} }

// Err wraps a failure.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool { return r.err == nil }

// Get returns the value and the failure reason.
func (r Result[T]) Get() (T, error) { return r.value, r.err }

// Or returns the value, or fallback when the result is an error.
func (r Result[T]) Or(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}

// ParseHypothesis decodes a hypothesis answer. Systems outside Systems are rejected.
func ParseHypothesis(raw string) Result[Hypothesis] {
	var h Hypothesis
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return Err[Hypothesis](formatError("hypothesize", err))
	}
	if !slices.Contains(Systems, h.SuspectedSystem) {
		return Err[Hypothesis](formatError("hypothesize", fmt.Errorf("suspected_system %q is not one of %s", h.SuspectedSystem, strings.Join(Systems, ", "))))
	}
	return Ok(h)
}

// ParseTheory decodes a causal theory answer. Root and symptom are required.
func ParseTheory(raw string) Result[Theory] {
	var th Theory
	if err := json.Unmarshal([]byte(raw), &th); err != nil {
		return Err[Theory](formatError("synthesize theory", err))
	}
	if th.RootCause == "" || th.Symptom == "" {
		return Err[Theory](formatError("synthesize theory", fmt.Errorf("missing root_cause_agent or symptom_agent in %s", raw)))
	}
	return Ok(th)
}

// ParseModel decodes an updated belief model. Structural invariants are left
// to the caller (kripke.Model.Validate).
func ParseModel(raw string) Result[kripke.Serialized] {
	var s kripke.Serialized
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Err[kripke.Serialized](formatError("update belief", err))
	}
	if _, err := kripke.FromSerializable(s); err != nil {
		return Err[kripke.Serialized](formatError("update belief", err))
	}
	return Ok(s)
}
