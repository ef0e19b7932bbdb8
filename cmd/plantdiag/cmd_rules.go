package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantdiag/internal/display"
	"plantdiag/internal/format"
	"plantdiag/internal/rules"
)

var rulesFlags struct {
	model     string
	candidate string
	sender    string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the expert rules and check a candidate against a model",
	Long: `Rules prints the configured modal logic rules and whether each holds at the
current world of the model. With --candidate or --sender, it also checks
whether adding that proposition to the current world keeps every rule true.`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	f := rulesCmd.Flags()
	f.StringVar(&rulesFlags.model, "model", "", "Model file (default: the diagnostics agent's initial model)")
	f.StringVar(&rulesFlags.candidate, "candidate", "", "Proposition to check, e.g. cooling_fault_reported")
	f.StringVar(&rulesFlags.sender, "sender", "", "Agent whose fault proposition to check, e.g. Cooling_Agent")
}

func runRules(cmd *cobra.Command, _ []string) error {
	mode, err := outputMode()
	if err != nil {
		return err
	}
	set, err := cfg.Rules()
	if err != nil {
		return err
	}
	m, err := readModel(rulesFlags.model)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, format.RulesTable(set, m, mode))

	candidate := rulesFlags.candidate
	if candidate == "" && rulesFlags.sender != "" {
		candidate = rules.FaultProposition(rulesFlags.sender)
	}
	if candidate == "" {
		return nil
	}
	v := set.Check(m, candidate)
	fmt.Fprintf(out, "%s: consistent %s\n", display.Proposition(v.Candidate), format.BoolMark(v.Consistent))
	for _, r := range v.Violated {
		fmt.Fprintf(out, "  violates %s\n", r)
	}
	return nil
}
