package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/caiber/internal/database"
	"github.com/nao1215/caiber/internal/model"
	"github.com/nao1215/caiber/internal/pipeline"
)

// defaultHistoryLimit is how many runs `history` lists.
const defaultHistoryLimit = 20

// runSummary is one row of `history --json`.
type runSummary struct {
	RunID        string `json:"run_id"`
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	StartTime    string `json:"start_time"`
	ElapsedMS    int64  `json:"elapsed_ms"`
	FailingStage string `json:"failing_stage,omitempty"`
	Error        string `json:"error,omitempty"`
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List archived runs or show one of them",
		Long: `History reads the run archive written by 'caiber run' and 'caiber serve'.

Without arguments it lists the most recent runs. With a run id it prints
the full report of that run.

Examples:
  # List the last 20 runs
  caiber history

  # Show one run as Markdown
  caiber history --markdown 0b7f5a3e-6a0c-4c9e-9a55-1d2f5e1b8c21`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .caiber in current or home directory)")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Number of runs to list (0 lists all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report of a run (mutually exclusive with --json)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return errors.New("--json and --markdown cannot be used together")
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	cfg.SaveToDB = true
	db, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		rep, err := loadArchivedReport(ctx, db, args[0])
		if err != nil {
			if errors.Is(err, database.ErrRunNotFound) {
				return fmt.Errorf("no archived run with id %s (use 'caiber history' to list runs)", args[0])
			}
			return fmt.Errorf("failed to load run: %w", err)
		}
		_, err = newReportWriter(cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, out).Write(rep)
		return err
	}
	return listRuns(ctx, db, out, limit, cfg.JSONReport)
}

func listRuns(ctx context.Context, db *database.HistoryDB, out io.Writer, limit int, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if jsonOutput {
		rows := make([]runSummary, len(runs))
		for i, r := range runs {
			rows[i] = runSummary{
				RunID:        r.RunID,
				SessionID:    r.SessionID,
				Status:       string(r.Status),
				StartTime:    r.StartTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
				ElapsedMS:    r.Elapsed.Milliseconds(),
				FailingStage: string(r.FailingStage),
				Error:        r.Error,
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No archived runs found.")
		fmt.Fprintln(out, "\nUse 'caiber run <session-id>' to run the pipeline.")
		return nil
	}

	fmt.Fprintf(out, "Archived runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %-8s  %s\n", "RUN ID", "STARTED", "STATUS", "ELAPSED", "RESULT")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %-8s  %s\n",
			r.RunID,
			r.StartTime.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			r.Elapsed.Round(100*time.Millisecond).String(),
			runResult(ctx, db, r),
		)
	}
	fmt.Fprintln(out, "\nUse 'caiber history <run-id>' to show a run.")
	return nil
}

// runResult summarises a run for the list: the failure for failed runs,
// risk counts otherwise.
func runResult(ctx context.Context, db *database.HistoryDB, r database.RunRecord) string {
	if r.Error != "" {
		return fmt.Sprintf("%s: %s", r.FailingStage, r.Error)
	}
	res, err := db.GetStageResult(ctx, r.RunID, pipeline.StageCorrelation)
	if err != nil {
		return "-"
	}
	out, err := res.Decode()
	if err != nil {
		return "corrupt"
	}
	assessments, ok := out.([]model.RiskAssessment)
	if !ok {
		return "-"
	}
	return formatRiskCounts(model.CountByLevel(assessments))
}

// formatRiskCounts renders counts as "C:1 H:2 M:0 L:3".
func formatRiskCounts(counts map[model.RiskLevel]int) string {
	parts := make([]string, 0, len(model.RiskLevels))
	for i := len(model.RiskLevels) - 1; i >= 0; i-- {
		level := model.RiskLevels[i]
		parts = append(parts, fmt.Sprintf("%c:%d", level.String()[0], counts[level]))
	}
	return strings.Join(parts, " ")
}
