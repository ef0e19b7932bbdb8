package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantdiag/internal/display"
)

var connectFlags struct {
	relation string
}

var connectCmd = &cobra.Command{
	Use:   "connect upstream downstream",
	Short: "Check a physical connection in the lattice layout",
	Long: `Connect resolves the component owning the upstream sensor and reports
whether it feeds the downstream component through the given relation.

Example:
  plantdiag connect COOL:valve_position RF:cavity --type cooling`,
	Args: cobra.ExactArgs(2),
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectFlags.relation, "type", "", "Relation type (cooling, power, vacuum, beamline)")
}

func runConnect(cmd *cobra.Command, args []string) error {
	index, err := cfg.Index()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if owner, ok := index.ResolveComponent(args[0]); ok {
		fmt.Fprintf(out, "%s belongs to %s\n", args[0], owner)
	}
	c := index.AreConnected(args[0], args[1], connectFlags.relation)
	fmt.Fprintf(out, "connected (%s): %v\n%s\n", display.Relation(connectFlags.relation), c.Connected, c.Reason)
	return nil
}
