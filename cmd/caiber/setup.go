package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/caiber/internal/config"
	"github.com/nao1215/caiber/internal/database"
	"github.com/nao1215/caiber/internal/event"
	caiberlog "github.com/nao1215/caiber/internal/log"
	"github.com/nao1215/caiber/internal/pipeline"
	"github.com/nao1215/caiber/internal/remote"
)

// addBackendFlags registers the flags shared by commands that talk to the
// backend: run and serve. Every flag only overrides the configuration when
// the user sets it explicitly, see applyFlags.
func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("base-url", "u", config.DefaultBaseURL,
		"Backend base URL (env "+config.EnvBaseURL+")")
	cmd.Flags().DurationP("stage-timeout", "t", config.DefaultStageTimeout,
		"Timeout for each stage (0 disables)")
	cmd.Flags().StringP("proxy", "x", "",
		"Route backend traffic through a SOCKS5 proxy (host:port)")
	cmd.Flags().String("fallback", config.FallbackNone,
		"Policy when a stage fails with a network or server error: none or demo")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Largest accepted stage response in bytes")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .caiber in current or home directory)")
	cmd.Flags().String("env-file", "",
		"File with "+config.EnvAPIToken+" (default: .env when present)")
	cmd.Flags().String("valkey", "",
		"Publish pipeline events to the Valkey server at host:port")
	cmd.Flags().Bool("no-save", false,
		"Do not archive runs in the history database")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
// It returns false when neither defines the flag.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the secure logger used by every command. It writes
// text records to w, redacts bearer tokens and API keys, and logs at debug
// level when verbose is set.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return caiberlog.NewSecureLogger(w, verbose)
}

// buildConfig resolves the configuration in order: defaults, config file,
// environment, then flags the user actually set.
//
// The env file is loaded first so that its variables are visible to the
// environment step. An explicit --config path that does not exist is an
// error; a missing default config file is not.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()
	if flags.Lookup("env-file") != nil {
		envFile, err := flags.GetString("env-file")
		if err != nil {
			return nil, err
		}
		if err := config.LoadEnv(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
		cfg.EnvFile = envFile
	}

	if flags.Lookup("config") != nil {
		configPath, err := flags.GetString("config")
		if err != nil {
			return nil, err
		}
		cfg.ConfigFilePath = configPath
	}
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg.ApplyFile(file)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.ApplyEnv()

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies changed flags into cfg. Flags a command does not
// define are skipped, so run and serve can share it.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	var err error
	if changed("base-url") {
		if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
			return err
		}
	}
	if changed("stage-timeout") {
		if cfg.StageTimeout, err = flags.GetDuration("stage-timeout"); err != nil {
			return err
		}
	}
	if changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return err
		}
	}
	if changed("fallback") {
		if cfg.Fallback, err = flags.GetString("fallback"); err != nil {
			return err
		}
	}
	if changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return err
		}
	}
	if changed("valkey") {
		if cfg.ValkeyAddress, err = flags.GetString("valkey"); err != nil {
			return err
		}
	}
	if changed("no-save") {
		noSave, err := flags.GetBool("no-save")
		if err != nil {
			return err
		}
		cfg.SaveToDB = !noSave
	}
	if changed("listen") {
		if cfg.ListenAddress, err = flags.GetString("listen"); err != nil {
			return err
		}
	}
	if changed("json") {
		if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
			return err
		}
	}
	if changed("markdown") {
		if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
			return err
		}
	}
	if changed("output") {
		if cfg.ReportFile, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	return nil
}

// newExecutor builds the remote executor described by cfg, wrapped in the
// configured fallback policy. When a proxy is configured it must answer
// before any stage runs.
//
// Endpoint overrides from the config file replace the default method and
// path of their stage only.
func newExecutor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Executor, error) {
	opts := []remote.Option{
		remote.WithLogger(logger),
		remote.WithMaxBodySize(cfg.MaxBodySize),
	}
	if cfg.APIToken != "" {
		opts = append(opts, remote.WithToken(cfg.APIToken))
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, remote.WithProxy(cfg.ProxyAddress))
	}
	for stage, ep := range cfg.Endpoints {
		opts = append(opts, remote.WithEndpoint(pipeline.StageID(stage), remote.Endpoint{
			Method: ep.Method,
			Path:   ep.Path,
		}))
	}

	client, err := remote.NewClient(cfg.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	if cfg.ProxyAddress != "" {
		if status := client.CheckProxy(ctx); status != remote.ProxyStatusOK {
			return nil, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s)",
				status, cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	policy, err := remote.ParseFallbackPolicy(cfg.Fallback)
	if err != nil {
		return nil, err
	}
	return remote.NewFallbackExecutor(client, policy, logger)
}

// eventSinks builds the event sink for the Valkey publisher, if any, and
// the extra emitters. The returned cleanup flushes and closes publishers
// and is safe to call even when an error is returned.
//
// Without any emitter the result is a NopSink.
func eventSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger, emitters ...event.Emitter) (pipeline.NotificationSink, func(), error) {
	cleanup := func() {}
	if cfg.ValkeyAddress != "" {
		pub, err := event.NewValkeyPublisher(ctx, cfg.ValkeyAddress, cfg.ValkeyChannel, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect to valkey: %w", err)
		}
		logger.Info("publishing events to valkey", "address", cfg.ValkeyAddress, "channel", pub.Channel())
		emitters = append(emitters, pub)
		cleanup = pub.Close
	}
	if len(emitters) == 0 {
		return pipeline.NopSink{}, cleanup, nil
	}
	return event.NewSink(pipeline.SystemClock{}, emitters...), cleanup, nil
}

// openHistory opens the run archive in cfg.DBDir, or returns nil when
// saving is off. The caller closes a non-nil database.
func openHistory(cfg *config.Config, logger *slog.Logger) (*database.HistoryDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", db.Path())
	return db, nil
}

// newController wires the pipeline with the default stages. Stage
// transitions are always logged; sinks receive them as well, in order.
// cfg.StageTimeout bounds every stage.
func newController(cfg *config.Config, exec pipeline.Executor, logger *slog.Logger, sinks ...pipeline.NotificationSink) (*pipeline.Controller, error) {
	all := append(pipeline.MultiSink{pipeline.NewLogSink(logger)}, sinks...)
	ctrl, err := pipeline.NewController(pipeline.MustDefaultGraph(), exec,
		pipeline.WithSink(all),
		pipeline.WithLogger(logger),
		pipeline.WithStageTimeout(cfg.StageTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return ctrl, nil
}
