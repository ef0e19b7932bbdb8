package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"plantdiag/internal/plant"
)

// SessionState tracks the lifecycle of a scenario run session.
type SessionState string

const (
	StateRunning SessionState = "running"
	StateDone    SessionState = "done"
	StateError   SessionState = "error"
)

// Signal is one event on a session's bus.
type Signal struct {
	Timestamp string            `json:"ts"`
	Event     string            `json:"event"`
	Agent     string            `json:"agent,omitempty"`
	Tick      int               `json:"tick,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// SignalBus is a thread-safe, append-only event log for one run.
type SignalBus struct {
	mu      sync.Mutex
	signals []Signal
}

func (b *SignalBus) Emit(event, agent string, tick int, meta map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = append(b.signals, Signal{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Event:     event,
		Agent:     agent,
		Tick:      tick,
		Meta:      meta,
	})
}

// Since returns the signals from idx onward. A negative idx is treated as 0.
func (b *SignalBus) Since(idx int) []Signal {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b.signals) {
		return nil
	}
	out := make([]Signal, len(b.signals)-idx)
	copy(out, b.signals[idx:])
	return out
}

func (b *SignalBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.signals)
}

// Session is one scenario run started through the run_scenario tool.
type Session struct {
	ID       string
	Scenario string
	Bus      *SignalBus

	state  SessionState
	result *plant.Result
	err    error
	doneCh chan struct{}
	cancel context.CancelFunc

	mu sync.Mutex
}

// NewSession starts cfg in a background goroutine and returns immediately.
// The run is detached from ctx of the tool call that started it; Cancel
// stops it.
func NewSession(cfg plant.RunConfig, logger *slog.Logger) *Session {
	runCtx, runCancel := context.WithCancel(context.Background())
	bus := &SignalBus{}
	sess := &Session{
		ID:       uuid.NewString(),
		Scenario: cfg.Scenario.Key(),
		Bus:      bus,
		state:    StateRunning,
		doneCh:   make(chan struct{}),
		cancel:   runCancel,
	}

	onTick := cfg.OnTick
	cfg.OnTick = func(tr plant.TickReport) {
		sess.emitTick(tr)
		if onTick != nil {
			onTick(tr)
		}
	}

	bus.Emit("session_started", "server", 0, map[string]string{
		"scenario": sess.Scenario,
		"agents":   fmt.Sprintf("%d", len(cfg.Scenario.Agents)),
	})

	go sess.run(runCtx, cfg, logger)
	return sess
}

func (s *Session) emitTick(tr plant.TickReport) {
	for _, f := range tr.Injected {
		s.Bus.Emit("fault_injected", "simulator", tr.Tick, map[string]string{
			"pv":   f.PV,
			"kind": string(f.Kind),
		})
	}
	for _, r := range tr.NewReports {
		s.Bus.Emit("anomaly_reported", r.Sender, tr.Tick, map[string]string{
			"pv":        r.PV,
			"value":     fmt.Sprintf("%g", r.Value),
			"suspected": r.SuspectedSystem,
		})
	}
	if o := tr.Outcome; o != nil {
		meta := map[string]string{"state": string(o.State), "reason": o.Reason()}
		if o.Root != "" {
			meta["root"] = o.Root
			meta["symptom"] = o.Symptom
		}
		s.Bus.Emit("diagnosis", "AcceleratorDiagnostics", tr.Tick, meta)
	}
}

// Cancel stops the run goroutine.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) run(ctx context.Context, cfg plant.RunConfig, logger *slog.Logger) {
	defer close(s.doneCh)
	defer s.cancel()

	res, err := plant.Run(ctx, cfg)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.result = res
	if err != nil {
		s.state = StateError
		s.err = err
		s.Bus.Emit("session_error", "server", 0, map[string]string{"error": err.Error()})
		logger.Warn("scenario run failed", "session", s.ID, "scenario", s.Scenario, "error", err)
		return
	}
	s.state = StateDone
	s.Bus.Emit("session_done", "server", res.Ticks, map[string]string{
		"resolved":   fmt.Sprintf("%d", len(res.Resolved)),
		"unresolved": fmt.Sprintf("%d", len(res.Unresolved)),
	})
	logger.Info("scenario run complete", "session", s.ID, "scenario", s.Scenario, "resolved", len(res.Resolved))
}

// GetState returns the current session state.
func (s *Session) GetState() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the run result, or nil while running. A failed run may
// still carry a partial result.
func (s *Session) Result() *plant.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the run error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done returns a channel closed when the run finishes.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// Wait blocks until the run finishes, ctx is done, or timeout elapses.
// It reports whether the run finished.
func (s *Session) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.doneCh:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
