// plantdiag diagnoses cascading faults in an accelerator sector: simulated
// agents report anomalies, a diagnostics agent proposes a root cause and
// checks it against modal logic rules and the physical lattice layout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"plantdiag/internal/config"
	"plantdiag/internal/format"
	"plantdiag/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string
}

// cfg is loaded once per invocation by the root PersistentPreRunE.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "plantdiag",
	Short: "Modal-logic root-cause diagnosis for accelerator faults",
	Long: `plantdiag runs fault scenarios against a simulated accelerator sector.
Monitoring agents report anomalies; the diagnostics agent asks an oracle for a
root-cause theory and accepts it only if it is consistent with the expert rules
and physically connected in the lattice layout.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "Config file (YAML or JSON); built-in defaults when empty")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json (overrides config)")
	f.StringVarP(&rootFlags.output, "output", "o", "table", "Table format: table, markdown, csv")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	if rootFlags.configPath != "" {
		cfg, err = config.LoadFile(rootFlags.configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
		cfg.ApplyEnv(os.LookupEnv)
	}
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.Log.Format = rootFlags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())
	return nil
}

func outputMode() (format.Mode, error) {
	return format.ParseMode(rootFlags.output)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the plantdiag version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "plantdiag %s\n", version)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
