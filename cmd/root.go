package cmd

import (
	"github.com/spf13/cobra"

	"github.com/relaypoint/mcpgw/internal/cmd"
	"github.com/relaypoint/mcpgw/internal/flags"
)

var version = "dev" // Set at build time using -ldflags

// Execute builds the root command and runs it.
func Execute() error {
	rootCmd, err := NewRootCmd()
	if err != nil {
		return err
	}

	return rootCmd.Execute()
}

// NewRootCmd creates the root 'mcpgw' (Cobra) command and registers all
// subcommands on it.
func NewRootCmd() (*cobra.Command, error) {
	baseCmd := &cmd.BaseCmd{}

	rootCmd := &cobra.Command{
		Use:          "mcpgw <command> [args]",
		Short:        "'mcpgw' aggregates MCP servers behind a single gateway endpoint",
		Long:         longDescription(),
		SilenceUsage: true,
		Version:      version,
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	daemonCmd, err := NewDaemonCmd(baseCmd)
	if err != nil {
		return nil, err
	}
	rootCmd.AddCommand(daemonCmd)

	return rootCmd, nil
}

func longDescription() string {
	return `The 'mcpgw' CLI runs the MCP gateway daemon, which aggregates multiple
MCP servers behind a single namespaced catalog and routes tool calls,
resource reads, and prompt requests to the owning backend via HTTP API.`
}
