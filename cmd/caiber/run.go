package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/caiber/internal/config"
	"github.com/nao1215/caiber/internal/database"
	"github.com/nao1215/caiber/internal/pipeline"
	"github.com/nao1215/caiber/internal/report"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <session-id>",
		Short: "Run the threat intelligence pipeline once",
		Long: `Run executes the four pipeline stages for an uploaded document and
prints a report.

The session id identifies a document already uploaded to the backend. Each
stage is a call to the backend; a failing stage stops the run and the
command exits with a non-zero status.

Examples:
  # Run against the default backend (http://localhost:8000)
  caiber run 3f2b9c

  # Use another backend and a shorter per-stage timeout
  caiber run --base-url https://intel.example.com --stage-timeout 2m 3f2b9c

  # Write a Markdown report
  caiber run --markdown -o reports/latest.md 3f2b9c

  # Demo mode: substitute bundled data when the backend is unreachable
  caiber run --fallback demo 3f2b9c`,
		Args: cobra.ExactArgs(1),
		RunE: runRunCmd,
	}

	addBackendFlags(cmd)

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.SessionID = args[0]
	if err := cfg.ValidateForRun(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runPipeline(ctx, cfg, cmd.OutOrStdout(), logger)
}

// runPipeline runs one pipeline, archives it and writes the report. It
// returns the run error so the process exits non-zero on failure.
func runPipeline(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	exec, err := newExecutor(ctx, cfg, logger)
	if err != nil {
		return err
	}

	db, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	events, closeEvents, err := eventSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	// A JSON or Markdown report on stdout must stay machine readable.
	progressOut := out
	if cfg.ReportFile == "" && (cfg.JSONReport || cfg.MarkdownReport) {
		progressOut = io.Discard
	}
	progress := newProgressSink(progressOut, pipeline.SystemClock{}, pipeline.MustDefaultGraph().Resolve())

	ctrl, err := newController(cfg, exec, logger, progress, events)
	if err != nil {
		return err
	}

	logger.Info("starting pipeline", "session_id", cfg.SessionID, "base_url", cfg.BaseURL, "fallback", cfg.Fallback)
	fmt.Fprintf(progressOut, "Running pipeline for session %s against %s\n\n", cfg.SessionID, cfg.BaseURL)

	snap, runErr := ctrl.Run(ctx, cfg.SessionID)
	results := ctrl.Results()

	if db != nil && snap.Status.Terminal() {
		// The run context may already be cancelled.
		if err := db.SaveRun(context.WithoutCancel(ctx), cfg.SessionID, snap, results); err != nil {
			logger.Error("failed to archive run", "run_id", snap.RunID, "error", err)
		} else {
			logger.Info("run archived", "run_id", snap.RunID, "path", db.Path())
		}
	}

	rep := report.NewRunReport(cfg.SessionID, snap, results, ctrl.Now())
	if err := outputReport(cfg, out, rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		if snap.FailingStage != "" {
			return fmt.Errorf("pipeline failed at %s: %w", snap.FailingStage, runErr)
		}
		return fmt.Errorf("pipeline failed: %w", runErr)
	}
	return nil
}

// outputReport writes rep in the requested format to cfg.ReportFile or out.
func outputReport(cfg *config.Config, out io.Writer, rep *report.RunReport) error {
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		// Reports describe the organisation's exposure; keep them owner-only.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	_, err := newReportWriter(cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, out).Write(rep)
	return err
}

func newReportWriter(jsonReport, markdownReport, verbose bool, out io.Writer) report.Writer {
	switch {
	case jsonReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case markdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(verbose))
	}
}

// loadArchivedReport rebuilds the report of an archived run.
func loadArchivedReport(ctx context.Context, db *database.HistoryDB, runID string) (*report.RunReport, error) {
	rec, err := db.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	results, err := db.LoadResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	return report.NewRunReport(rec.SessionID, rec.Snapshot, results, rec.EndTime), nil
}
