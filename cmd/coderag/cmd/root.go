// Package cmd provides the CLI commands for coderag.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ossara-labs/coderag/internal/logging"
	"github.com/ossara-labs/coderag/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the coderag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coderag",
		Short: "Hybrid code retrieval over a local repository",
		Long: `coderag indexes a repository's code and documentation and answers
natural-language queries with the most relevant chunks, fusing BM25
keyword search with semantic vector search and expanding results through
a lightweight dependency graph.

This binary is a thin wrapper around the retrieval pipeline for manual
testing; it is not the MCP server surface.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("coderag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRunE = teardownLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func teardownLogging(cmd *cobra.Command, args []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(version.String())
			return nil
		},
	}
}
