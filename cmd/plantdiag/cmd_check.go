package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantdiag/internal/format"
	"plantdiag/internal/modal"
)

var checkFlags struct {
	model     string
	world     string
	showModel bool
}

var checkCmd = &cobra.Command{
	Use:   "check 'formula'",
	Short: "Evaluate a modal formula against a Kripke model",
	Long: `Check parses a modal logic formula and evaluates it at a world of a model.

Operators: ~ (not), & (and), | (or), -> (implies), <-> (iff),
[] (necessarily, true in every accessible world) and <> (possibly, true in
some accessible world). [] holds vacuously at a world with no successors.

Without --model the diagnostics agent's initial model is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&checkFlags.model, "model", "", "Model file (YAML or JSON: worlds, relations, valuations, current_world)")
	f.StringVar(&checkFlags.world, "world", "", "World to evaluate at (default: the model's current world)")
	f.BoolVar(&checkFlags.showModel, "show-model", false, "Print the model as a table")
}

func runCheck(cmd *cobra.Command, args []string) error {
	mode, err := outputMode()
	if err != nil {
		return err
	}
	m, err := readModel(checkFlags.model)
	if err != nil {
		return err
	}
	f, err := modal.Parse(args[0])
	if err != nil {
		return err
	}
	world := checkFlags.world
	if world == "" {
		world = m.CurrentWorld()
	}
	if !m.HasWorld(world) {
		return fmt.Errorf("world %q is not in the model", world)
	}

	out := cmd.OutOrStdout()
	if checkFlags.showModel {
		fmt.Fprintln(out, format.ModelTable(m, mode))
	}
	fmt.Fprintf(out, "%s at %s: %v\n", f, world, modal.Evaluate(m, world, f))
	return nil
}
