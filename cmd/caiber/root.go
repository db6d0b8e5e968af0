package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for caiber.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caiber",
		Short: "Threat intelligence pipeline runner",
		Long: `caiber runs a threat intelligence pipeline against a backend service.

Each run goes through four stages in order:
  1. generate_requirements  priority intelligence requirements from a document
  2. collect_threats        vulnerabilities, indicators and advisories from feeds
  3. correlate_threats      risk assessment against the organisation's assets
  4. build_threat_model     attack paths with ATT&CK and STRIDE mapping

A failing stage stops the run; later stages are never attempted.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewStagesCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
