package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/caiber/internal/pipeline"
	"github.com/nao1215/caiber/internal/remote"
	"github.com/nao1215/caiber/internal/report"
)

// NewStagesCmd creates the stages command.
func NewStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages [STAGE]",
		Short: "Show the pipeline stages in execution order",
		Long: `Stages prints every stage in the order it runs, with its dependencies
and the default backend endpoint. Given a stage id, it prints that stage only.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := pipeline.NewGraph(pipeline.DefaultDefinitions()...)
			if err != nil {
				return err
			}
			endpoints := remote.DefaultEndpoints()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				def, ok := graph.Definition(pipeline.StageID(args[0]))
				if !ok {
					return fmt.Errorf("unknown stage %q", args[0])
				}
				ep := endpoints[def.ID]
				fmt.Fprintf(out, "%s (%s)\n", report.StageTitle(def.ID), def.ID)
				fmt.Fprintf(out, "  endpoint:   %s %s\n", ep.Method, ep.Path)
				fmt.Fprintf(out, "  depends on: %s\n", dependsOn(def))
				return nil
			}

			fmt.Fprintf(out, "  %-3s %-24s %-28s %s\n", "#", "STAGE", "ENDPOINT", "DEPENDS ON")
			fmt.Fprintln(out, "  "+strings.Repeat("-", 80))
			for i, def := range graph.Resolve() {
				ep := endpoints[def.ID]
				fmt.Fprintf(out, "  %-3d %-24s %-28s %s\n", i+1, def.ID, ep.Method+" "+ep.Path, dependsOn(def))
				fmt.Fprintf(out, "      %s\n", report.StageTitle(def.ID))
			}
			fmt.Fprintf(out, "\n  %d stages\n", graph.Len())
			return nil
		},
	}
}

// dependsOn lists the dependencies of def, or "-" when it has none.
func dependsOn(def pipeline.Definition) string {
	if len(def.DependsOn) == 0 {
		return "-"
	}
	names := make([]string, len(def.DependsOn))
	for i, d := range def.DependsOn {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}
