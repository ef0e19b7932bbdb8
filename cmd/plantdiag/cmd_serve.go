package main

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"plantdiag/internal/logging"
	mcpserver "plantdiag/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing the reasoning tools:
evaluate_formula, check_rules, check_connection, resolve_component, and
run_scenario / get_run / get_signals for background scenario runs.

The server monitors for parent process death. When the client disconnects,
the server terminates instead of lingering.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := logging.New("mcp")
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
	scenarios, err := cfg.Scenarios()
	if err != nil {
		return err
	}

	srv := mcpserver.NewServer(mcpserver.Options{
		Rules:     ruleSet,
		Index:     index,
		Senders:   cfg.SenderMap(),
		Scenarios: scenarios,
		Oracle:    o,
		Ticks:     cfg.Ticks,
		Seed:      cfg.Seed,
		Version:   version,
		Logger:    logger,
	})
	defer srv.Shutdown()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, logger, cancel)

	logger.Info("starting plantdiag MCP server over stdio", "oracle", cfg.Oracle.Backend)
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
