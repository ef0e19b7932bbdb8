package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantdiag/internal/format"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the available fault scenarios",
	Args:  cobra.NoArgs,
	RunE:  runScenarios,
}

func runScenarios(cmd *cobra.Command, _ []string) error {
	mode, err := outputMode()
	if err != nil {
		return err
	}
	list, err := cfg.Scenarios()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), format.ScenariosTable(list, mode))
	return nil
}
