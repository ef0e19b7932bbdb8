package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantdiag/internal/format"
)

var historyFlags struct {
	storePath string
	trail     bool
}

var historyCmd = &cobra.Command{
	Use:   "history run-id",
	Short: "Show recorded diagnosis outcomes and pending reports for a run",
	Long: `History reads a SQLite store written by 'plantdiag run --store' and lists
the outcomes recorded for one run, followed by the reports still pending.
Run ids are printed at the end of every run.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.storePath, "store", "", "SQLite store path (default: config store path)")
	f.BoolVar(&historyFlags.trail, "trail", false, "Print the state transitions of every outcome")
}

func runHistory(cmd *cobra.Command, args []string) error {
	mode, err := outputMode()
	if err != nil {
		return err
	}
	if historyFlags.storePath != "" {
		cfg.Store.Path = historyFlags.storePath
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("no store configured: pass --store or set store.path in the config")
	}
	st, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run := args[0]
	resolutions, err := st.ListResolutions(run)
	if err != nil {
		return err
	}
	pending, err := st.PendingReports(run)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resolutions) == 0 && len(pending) == 0 {
		fmt.Fprintf(out, "No records for run %s\n", run)
		return nil
	}
	fmt.Fprintln(out, format.ResolutionsTable(resolutions, mode))
	if historyFlags.trail {
		for _, r := range resolutions {
			fmt.Fprintf(out, "Outcome %s\n", r.ID)
			fmt.Fprintln(out, format.TrailTable(r.Trail, mode))
		}
	}
	if len(pending) > 0 {
		fmt.Fprintf(out, "Pending reports (%d):\n", len(pending))
		fmt.Fprintln(out, format.ReportsTable(pending, mode))
	}
	return nil
}
