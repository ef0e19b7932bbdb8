package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"plantdiag/internal/config"
	"plantdiag/internal/diagnose"
	"plantdiag/internal/display"
	"plantdiag/internal/format"
	"plantdiag/internal/logging"
	"plantdiag/internal/plant"
)

var runFlags struct {
	all        bool
	oracle     string
	ticks      int
	seed       uint64
	interval   time.Duration
	storePath  string
	verbose    bool
	metricsOut string
}

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Run a fault scenario (or all of them) and diagnose the reports",
	Long: `Run plays a scenario tick by tick: faults are injected on schedule, the
monitoring agents report anomalies and the diagnostics agent resolves pending
reports into root cause / symptom pairs. Reports still pending at the end are
listed as unresolved.

The scenario may be given by id, name or key (1, cooling_failure, 1_cooling_failure).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.all, "all", false, "Run every scenario concurrently (bounded by config parallel)")
	f.StringVar(&runFlags.oracle, "oracle", "", "Oracle backend: stub, ollama, openai (overrides config)")
	f.IntVar(&runFlags.ticks, "ticks", 0, "Number of ticks (overrides config)")
	f.Uint64Var(&runFlags.seed, "seed", 0, "Simulator noise seed (overrides config)")
	f.DurationVar(&runFlags.interval, "interval", 0, "Pause between ticks (overrides config)")
	f.StringVar(&runFlags.storePath, "store", "", "SQLite store path (overrides config; empty keeps the config value)")
	f.BoolVarP(&runFlags.verbose, "verbose", "v", false, "Print every tick and every diagnosis")
	f.StringVar(&runFlags.metricsOut, "metrics-out", "", "Write diagnosis metrics in Prometheus text format to this file")
}

func runRun(cmd *cobra.Command, args []string) error {
	mode, err := outputMode()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("oracle") {
		cfg.Oracle.Backend = runFlags.oracle
	}
	if flags.Changed("ticks") {
		cfg.Ticks = runFlags.ticks
	}
	if flags.Changed("seed") {
		cfg.Seed = runFlags.seed
	}
	if flags.Changed("interval") {
		cfg.TickInterval = config.Duration(runFlags.interval)
	}
	if runFlags.storePath != "" {
		cfg.Store.Path = runFlags.storePath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	all, err := cfg.Scenarios()
	if err != nil {
		return err
	}
	var selected []plant.Scenario
	switch {
	case runFlags.all:
		selected = all
	case len(args) == 1:
		sc, err := plant.FindScenario(all, args[0])
		if err != nil {
			return err
		}
		selected = []plant.Scenario{sc}
	default:
		return fmt.Errorf("a scenario is required (or --all); see 'plantdiag scenarios'")
	}

	o, err := cfg.NewOracle(logging.New("oracle"))
	if err != nil {
		return err
	}
	ruleSet, err := cfg.Rules()
	if err != nil {
		return err
	}
	index, err := cfg.Index()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	diagnoser := diagnose.New(diagnose.Config{
		Rules:   ruleSet,
		Index:   index,
		Oracle:  o,
		Senders: cfg.SenderMap(),
		Logger:  logging.New("AcceleratorDiagnostics"),
		Metrics: diagnose.NewMetrics(reg),
	})

	st, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	var outMu sync.Mutex
	results := make([]*plant.Result, len(selected))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Parallel)
	for i, sc := range selected {
		rc := plant.RunConfig{
			Scenario:  sc,
			Ticks:     cfg.Ticks,
			Interval:  cfg.TickInterval.Std(),
			Seed:      cfg.Seed,
			Oracle:    o,
			Diagnoser: diagnoser,
			Store:     st,
			RunID:     sc.Key() + "-" + uuid.NewString()[:8],
			Logger:    logging.New("run"),
		}
		if runFlags.verbose {
			rc.OnTick = func(tr plant.TickReport) {
				outMu.Lock()
				defer outMu.Unlock()
				printTick(out, sc.Key(), tr)
			}
		}
		g.Go(func() error {
			res, err := plant.Run(ctx, rc)
			results[i] = res
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Key(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintln(out, format.SummaryTable(results, mode))
	for _, res := range results {
		fmt.Fprintf(out, "Run %s\n", res.RunID)
		if len(res.Unresolved) == 0 {
			fmt.Fprintln(out, "All reports resolved.")
			continue
		}
		fmt.Fprintf(out, "Unresolved reports (%d):\n", len(res.Unresolved))
		fmt.Fprintln(out, format.ReportsTable(res.Unresolved, mode))
	}

	if runFlags.metricsOut != "" {
		if err := prometheus.WriteToTextfile(runFlags.metricsOut, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func printTick(w io.Writer, key string, tr plant.TickReport) {
	fmt.Fprintf(w, "[%s] tick %d\n", key, tr.Tick)
	for _, f := range tr.Injected {
		fmt.Fprintf(w, "  fault injected: %s %s\n", f.PV, display.FaultKind(string(f.Kind)))
	}
	for _, r := range tr.NewReports {
		fmt.Fprintf(w, "  %s: %s (suspects %s)\n", display.Agent(r.Sender), r.Text, display.System(r.SuspectedSystem))
	}
	if tr.Outcome != nil {
		fmt.Fprintf(w, "  %s", format.Narrative(*tr.Outcome))
	}
}
