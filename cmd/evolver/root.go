package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/easeaico/bytebeat-evolver/internal/config"
	"github.com/easeaico/bytebeat-evolver/internal/memory"
	"github.com/easeaico/bytebeat-evolver/internal/render"
)

// rootOptions holds global flags and the state they produce.
type rootOptions struct {
	ConfigPath string
	Verbose    bool

	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "evolver",
		Short: "Evolve bytebeat formulas with a language model and an aesthetic scorer",
		Long: `evolver asks a language model for short bytebeat formulas, renders each
one to 10 seconds of 16 kHz audio, scores it with an aesthetic model and
feeds the best results back into the next request.

Configuration is read from an optional YAML file and the environment
(DB_TYPE, DATABASE_URL, GOOGLE_API_KEY, SCORER_URL, OUTPUT_DIR, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newRenderCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}

func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// openStore connects the configured history backend and returns a cleanup
// function that closes it.
func openStore(ctx context.Context, cfg config.Config) (memory.Store, func(), error) {
	var store memory.Store
	switch cfg.DBType {
	case "memory":
		store = memory.NewMemoryStore()
	case "sqlite":
		s, err := memory.NewSQLiteStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		store = s
	case "postgres":
		s, err := memory.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		store = s
	default:
		return nil, nil, fmt.Errorf("unsupported DB_TYPE: %s", cfg.DBType)
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}
	return store, cleanup, nil
}

func renderOptions(cfg config.Config) render.Options {
	return render.Options{
		SampleRate: cfg.SampleRate,
		Duration:   cfg.Duration,
		Workers:    cfg.RenderWorkers,
	}
}
