package plant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"plantdiag/internal/agent"
	"plantdiag/internal/diagnose"
	"plantdiag/internal/logging"
	"plantdiag/internal/oracle"
	"plantdiag/internal/store"
)

// DefaultTicks is the length of a run when none is configured.
const DefaultTicks = 7

// RunConfig wires one scenario run.
type RunConfig struct {
	Scenario  Scenario
	Ticks     int           // DefaultTicks when zero
	Interval  time.Duration // pause between ticks
	Seed      uint64
	PVs       map[string]Nominal // DefaultPVs when nil
	Oracle    oracle.Oracle
	Diagnoser *diagnose.Diagnoser
	Store     store.Store // in-memory when nil
	RunID     string      // scenario key when empty
	Logger    *slog.Logger

	// OnTick, when set, is called after every tick.
	OnTick func(TickReport)
}

// TickReport summarizes one tick of a run.
type TickReport struct {
	Tick       int
	Readings   map[string]float64
	Injected   []ScheduledFault
	NewReports []diagnose.Report
	Outcome    *diagnose.Outcome
}

// Result is the state at the end of a run.
type Result struct {
	RunID       string
	Scenario    Scenario
	Ticks       int
	Outcomes    []diagnose.Outcome
	Resolved    [][]string
	Unresolved  map[string]diagnose.Report
	Diagnostics *agent.Agent // nil when the scenario has no diagnostics agent
}

// Run plays a scenario: faults are injected on schedule, reporting agents
// check their signals every tick and, when new reports arrive and both the
// diagnostics and lattice agents take part, the pending table is diagnosed.
// Resolved senders leave the table; everything else stays pending.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("run %s: oracle is required", cfg.Scenario.Key())
	}
	if cfg.Diagnoser == nil {
		return nil, fmt.Errorf("run %s: diagnoser is required", cfg.Scenario.Key())
	}
	if cfg.Ticks <= 0 {
		cfg.Ticks = DefaultTicks
	}
	if cfg.RunID == "" {
		cfg.RunID = cfg.Scenario.Key()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New("run")
	}
	logger = logger.With("run", cfg.RunID)

	var (
		reporters   []*agent.Agent
		diagnostics *agent.Agent
	)
	for _, role := range cfg.Scenario.Agents {
		a, err := agent.New(role, cfg.Oracle, logger.With("agent", role.String()))
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", cfg.RunID, err)
		}
		switch {
		case role == agent.RoleDiagnostics:
			diagnostics = a
		case a.Config().Reporter():
			reporters = append(reporters, a)
		}
	}
	canDiagnose := diagnostics != nil && cfg.Scenario.HasRole(agent.RoleLattice)

	sim := NewSimulator(cfg.PVs, cfg.Seed)
	res := &Result{RunID: cfg.RunID, Scenario: cfg.Scenario, Diagnostics: diagnostics}

	for tick := 1; tick <= cfg.Ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		tr := TickReport{Tick: tick}
		for _, f := range cfg.Scenario.FaultsAt(tick) {
			if err := sim.Inject(f.PV, f.Kind, f.Value); err != nil {
				return res, fmt.Errorf("run %s: tick %d: %w", cfg.RunID, tick, err)
			}
			logger.InfoContext(ctx, "fault injected", "tick", tick, "pv", f.PV, "kind", f.Kind)
			tr.Injected = append(tr.Injected, f)
		}
		tr.Readings = sim.Read()

		for _, a := range reporters {
			if r, ok := a.CheckSignals(ctx, tr.Readings, tick); ok {
				tr.NewReports = append(tr.NewReports, r)
			}
		}

		if canDiagnose && len(tr.NewReports) > 0 {
			out, err := diagnoseTick(ctx, cfg, diagnostics, tr.NewReports)
			if err != nil {
				return res, err
			}
			tr.Outcome = &out
			res.Outcomes = append(res.Outcomes, out)
			if pair := out.Resolved(); pair != nil {
				res.Resolved = append(res.Resolved, pair)
			}
		}
		res.Ticks = tick
		if cfg.OnTick != nil {
			cfg.OnTick(tr)
		}

		if cfg.Interval > 0 && tick < cfg.Ticks {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}
	}

	unresolved, err := cfg.Store.PendingReports(cfg.RunID)
	if err != nil {
		return res, fmt.Errorf("run %s: %w", cfg.RunID, err)
	}
	res.Unresolved = unresolved
	if len(unresolved) > 0 {
		logger.InfoContext(ctx, "run finished with unresolved reports", "count", len(unresolved))
	}
	return res, nil
}

func diagnoseTick(ctx context.Context, cfg RunConfig, diagnostics *agent.Agent, reports []diagnose.Report) (diagnose.Outcome, error) {
	for _, r := range reports {
		if err := cfg.Store.PutReport(cfg.RunID, r); err != nil {
			return diagnose.Outcome{}, fmt.Errorf("run %s: %w", cfg.RunID, err)
		}
	}
	pending, err := cfg.Store.PendingReports(cfg.RunID)
	if err != nil {
		return diagnose.Outcome{}, fmt.Errorf("run %s: %w", cfg.RunID, err)
	}
	out := cfg.Diagnoser.Diagnose(ctx, diagnostics.Belief(), pending)
	if _, err := cfg.Store.RecordOutcome(cfg.RunID, out); err != nil {
		return out, fmt.Errorf("run %s: %w", cfg.RunID, err)
	}
	if pair := out.Resolved(); pair != nil {
		if err := cfg.Store.ResolveReports(cfg.RunID, pair...); err != nil {
			return out, fmt.Errorf("run %s: %w", cfg.RunID, err)
		}
	}
	return out, nil
}
