package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/caiber/internal/config"
	"github.com/nao1215/caiber/internal/event"
	"github.com/nao1215/caiber/internal/server"
)

// NewServeCmd creates the serve command. It shares the backend flags with
// run and adds --listen.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline control API over HTTP",
		Long: `Serve exposes one pipeline over HTTP so a dashboard can start, reset
and watch runs.

Routes:
  GET  /healthz                          status, open streams, dropped events
  GET  /api/v1/pipeline                  current state with elapsed_ms
  POST /api/v1/pipeline/start            {"session_id": "..."}
  POST /api/v1/pipeline/reset
  GET  /api/v1/pipeline/results          outputs of the current run
  GET  /api/v1/pipeline/results/{stage}
  GET  /api/v1/pipeline/events           Server-Sent Events stream
  GET  /api/v1/pipeline/events?run=ID    stream that ends with run ID

Only one run is active at a time; starting another while one is running
returns 409.

Examples:
  caiber serve
  caiber serve --listen :9090 --base-url http://backend:8000`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addBackendFlags(cmd)
	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress,
		"Address the control API listens on")

	return cmd
}

// runServeCmd serves the control API until SIGINT or SIGTERM. Every run
// that finishes is archived unless --no-save is set. On shutdown the run in
// progress is discarded and pending archive writes complete before the
// database closes.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	// The broker feeds the SSE route; Valkey, when configured, receives the
	// same events.
	broker := event.NewBroker(event.DefaultBufferSize)
	events, closeEvents, err := eventSinks(ctx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer closeEvents()

	ctrl, err := newController(cfg, exec, logger, events)
	if err != nil {
		return err
	}

	opts := []server.Option{server.WithLogger(logger)}
	if db != nil {
		opts = append(opts, server.WithArchiver(db))
	}
	srv := server.New(ctrl, broker, opts...)

	fmt.Fprintf(cmd.OutOrStdout(), "Control API listening on http://%s (backend %s)\n", cfg.ListenAddress, cfg.BaseURL)
	return srv.ListenAndServe(ctx, cfg.ListenAddress)
}
