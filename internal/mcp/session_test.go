package mcp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"plantdiag/internal/diagnose"
	"plantdiag/internal/lattice"
	"plantdiag/internal/logging"
	mcpserver "plantdiag/internal/mcp"
	"plantdiag/internal/oracle"
	"plantdiag/internal/plant"
	"plantdiag/internal/rules"
)

func runConfig(t *testing.T, ref string) plant.RunConfig {
	t.Helper()
	sc, err := plant.FindScenario(plant.DefaultScenarios(), ref)
	if err != nil {
		t.Fatal(err)
	}
	stub := &oracle.Stub{}
	return plant.RunConfig{
		Scenario:  sc,
		Seed:      1,
		Oracle:    stub,
		Diagnoser: diagnose.New(diagnose.Config{Rules: rules.Default(), Index: lattice.Default(), Oracle: stub}),
		Logger:    logging.Discard(),
	}
}

func TestNewSession_CompletesAndEmits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var ticks []int
	cfg := runConfig(t, "klystron_failure")
	cfg.OnTick = func(tr plant.TickReport) { ticks = append(ticks, tr.Tick) }

	sess := mcpserver.NewSession(cfg, logging.Discard())
	if sess.ID == "" {
		t.Fatal("expected non-empty session ID")
	}
	if sess.Scenario != "2_klystron_failure" {
		t.Errorf("scenario = %q", sess.Scenario)
	}

	finished, err := sess.Wait(ctx, 5*time.Second)
	if err != nil || !finished {
		t.Fatalf("Wait = %v, %v", finished, err)
	}
	if sess.GetState() != mcpserver.StateDone {
		t.Fatalf("state = %s, want done", sess.GetState())
	}
	if sess.Err() != nil {
		t.Fatalf("session error: %v", sess.Err())
	}
	res := sess.Result()
	if res == nil || len(res.Resolved) == 0 {
		t.Fatalf("expected a resolution, got %+v", res)
	}
	// The caller's OnTick still runs alongside the bus.
	if len(ticks) != plant.DefaultTicks {
		t.Errorf("OnTick called %d times, want %d", len(ticks), plant.DefaultTicks)
	}

	first := sess.Bus.Since(0)[0]
	if first.Event != "session_started" {
		t.Errorf("first signal = %q, want session_started", first.Event)
	}
}

func TestNewSession_CancelStopsRun(t *testing.T) {
	cfg := runConfig(t, "1")
	cfg.Ticks = 1000
	cfg.Interval = 10 * time.Millisecond

	sess := mcpserver.NewSession(cfg, logging.Discard())
	sess.Cancel()

	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after Cancel")
	}
	if sess.GetState() != mcpserver.StateError {
		t.Errorf("state = %s, want error", sess.GetState())
	}
	if sess.Err() == nil {
		t.Error("expected a cancellation error")
	}
}

func TestSession_WaitTimesOut(t *testing.T) {
	cfg := runConfig(t, "1")
	cfg.Ticks = 1000
	cfg.Interval = 10 * time.Millisecond

	sess := mcpserver.NewSession(cfg, logging.Discard())
	defer sess.Cancel()

	finished, err := sess.Wait(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if finished {
		t.Error("expected the run to still be in progress")
	}
}

func TestSignalBus_Since(t *testing.T) {
	bus := &mcpserver.SignalBus{}
	for i := 0; i < 3; i++ {
		bus.Emit("tick", "simulator", i+1, nil)
	}

	if got := len(bus.Since(0)); got != 3 {
		t.Errorf("Since(0) = %d signals, want 3", got)
	}
	if got := len(bus.Since(-5)); got != 3 {
		t.Errorf("Since(-5) = %d signals, want 3", got)
	}
	tail := bus.Since(2)
	if len(tail) != 1 || tail[0].Tick != 3 {
		t.Errorf("Since(2) = %+v", tail)
	}
	if bus.Since(3) != nil || bus.Since(10) != nil {
		t.Error("expected nil past the end")
	}
}

func TestSignalBus_ConcurrentEmit(t *testing.T) {
	bus := &mcpserver.SignalBus{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Emit("anomaly_reported", "RF_Agent", j, nil)
			}
		}()
	}
	wg.Wait()
	if bus.Len() != 400 {
		t.Errorf("Len = %d, want 400", bus.Len())
	}
}
