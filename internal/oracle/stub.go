package oracle

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"plantdiag/internal/kripke"
)

// Stub is a deterministic Oracle for offline runs and tests. Each call can be
// scripted through its Func field; unset fields fall back to keyword and
// ordering heuristics. Safe for concurrent use.
type Stub struct {
	HypothesizeFunc func(ctx context.Context, report string) (Hypothesis, error)
	TheoryFunc      func(ctx context.Context, reports map[string]ReportSummary, connectivity string) (Theory, error)
	UpdateFunc      func(ctx context.Context, current kripke.Serialized, info string) (kripke.Serialized, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ Oracle = (*Stub)(nil)

// Calls returns how many times the named call ran: "hypothesize",
// "synthesize theory" or "update belief".
func (s *Stub) Calls(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[call]
}

// TotalCalls sums all calls.
func (s *Stub) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *Stub) count(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[call]++
}

// Hypothesize implements Oracle.
func (s *Stub) Hypothesize(ctx context.Context, report string) (Hypothesis, error) {
	s.count("hypothesize")
	if s.HypothesizeFunc != nil {
		return s.HypothesizeFunc(ctx, report)
	}
	return Hypothesis{SuspectedSystem: GuessSystem(report)}, nil
}

// SynthesizeTheory implements Oracle. Without a script, the first two senders
// in name order become root cause and symptom.
func (s *Stub) SynthesizeTheory(ctx context.Context, reports map[string]ReportSummary, connectivity string) (Theory, error) {
	s.count("synthesize theory")
	if s.TheoryFunc != nil {
		return s.TheoryFunc(ctx, reports, connectivity)
	}
	senders := make([]string, 0, len(reports))
	for sender := range reports {
		senders = append(senders, sender)
	}
	sort.Strings(senders)
	if len(senders) < 2 {
		return Theory{}, formatError("synthesize theory", fmt.Errorf("need two reports, have %d", len(senders)))
	}
	return Theory{
		RootCause:   senders[0],
		Symptom:     senders[1],
		Explanation: fmt.Sprintf("A fault reported by %s propagated to %s.", senders[0], senders[1]),
	}, nil
}

// UpdateBelief implements Oracle. Without a script, the model is returned unchanged.
func (s *Stub) UpdateBelief(ctx context.Context, current kripke.Serialized, info string) (kripke.Serialized, error) {
	s.count("update belief")
	if s.UpdateFunc != nil {
		return s.UpdateFunc(ctx, current, info)
	}
	return current, nil
}

var systemKeywords = []struct {
	keywords []string
	system   string
}{
	{[]string{"cavity", "temperature", "cool", "valve", "water"}, SystemCooling},
	{[]string{"klystron", "forward_power", "forward power"}, SystemKlystron},
	{[]string{"vac:", "vacuum", "pump", "pressure"}, SystemVacuum},
	{[]string{"ps:", "magnet", "quad", "current"}, SystemMagnet},
	{[]string{"beam", "bpm"}, SystemBeam},
	{[]string{"power"}, SystemPower},
}

// GuessSystem maps report text to a suspected system by keyword. The first
// matching group wins; no match yields Unknown.
func GuessSystem(report string) string {
	r := strings.ToLower(report)
	for _, g := range systemKeywords {
		for _, k := range g.keywords {
			if strings.Contains(r, k) {
				return g.system
			}
		}
	}
	return SystemUnknown
}
