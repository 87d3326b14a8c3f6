package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/easeaico/bytebeat-evolver/internal/config"
	"github.com/easeaico/bytebeat-evolver/internal/llm"
	"github.com/easeaico/bytebeat-evolver/internal/scorer"
	"github.com/easeaico/bytebeat-evolver/internal/service"
)

type runOptions struct {
	*rootOptions
	Bots        int
	Generations int
	Resume      bool
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the evolutionary loop",
		Long: `Run one or more bots. Each generation asks the oracle for a formula,
renders and scores it, records it in the history store and saves the
waveform whenever the bot beats its own high score.

Example:
  evolver run --bots 4 --generations 200
  DB_TYPE=postgres DATABASE_URL=postgres://... evolver run --resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("bots") {
				cfg.Bots = opts.Bots
			}
			if cmd.Flags().Changed("generations") {
				cfg.Generations = opts.Generations
			}
			if cmd.Flags().Changed("resume") {
				cfg.Resume = opts.Resume
			}
			return runEvolver(cmd.Context(), cfg, opts.logger, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Bots, "bots", 1, "number of bots running side by side")
	cmd.Flags().IntVar(&opts.Generations, "generations", 0, "generations per bot (0 runs until interrupted)")
	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "continue each bot's latest run")

	return cmd
}

func runEvolver(ctx context.Context, cfg config.Config, logger *slog.Logger, cmd *cobra.Command) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateRun(); err != nil {
		return err
	}

	fleet, cleanup, err := initializeFleet(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	fleet.OnStep = func(run *service.Run, res service.StepResult) {
		if res.Outcome == service.OutcomeNewHighScore {
			fmt.Fprintf(cmd.OutOrStdout(), "BOT %d NEW HIGH SCORE %.1f %s\n", run.BotID, res.Score, res.Formula)
		}
	}

	logger.Info("evolver starting", "bots", cfg.Bots, "generations", cfg.Generations, "db", cfg.DBType, "oracle", cfg.OracleProvider)
	err = fleet.Run(ctx, cfg.Bots, cfg.Generations)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("evolver stopped")
	return nil
}

// initializeFleet creates all components and returns a cleanup function
// releasing them.
func initializeFleet(ctx context.Context, cfg config.Config, logger *slog.Logger) (*service.Fleet, func(), error) {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	systemPrompt, err := llm.SystemPrompt(llm.PromptData{
		MaxLength:  cfg.MaxFormulaLength,
		MaxScore:   cfg.MaxScore,
		Seconds:    int(cfg.Duration / time.Second),
		SampleRate: cfg.SampleRate,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	oracle, err := llm.New(ctx, llm.Config{
		Provider:     cfg.OracleProvider,
		Model:        cfg.OracleModel,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.OracleBaseURL,
		SystemPrompt: systemPrompt,
		Temperature:  cfg.Temperature,
		Timeout:      cfg.OracleTimeout,
	})
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to create oracle: %w", err)
	}

	sink, err := service.NewDirSink(cfg.OutputDir)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)
	stopMetrics := serveMetrics(cfg.MetricsAddr, reg, logger)

	evolver := service.NewEvolver(oracle, scorer.NewHTTP(cfg.ScorerURL, cfg.ScorerTimeout), sink, service.Options{
		ContextProbability: cfg.ContextProbability,
		TopN:               cfg.TopN,
		RandN:              cfg.RandN,
		MaxFormulaLength:   cfg.MaxFormulaLength,
		Render:             renderOptions(cfg),
		OracleTimeout:      cfg.OracleTimeout,
		ScorerTimeout:      cfg.ScorerTimeout,
	}, logger, metrics)

	fleet := &service.Fleet{
		Evolver: evolver,
		Store:   store,
		Logger:  logger,
		Seed:    cfg.Seed,
		Resume:  cfg.Resume,
	}
	cleanup := func() {
		stopMetrics()
		closeStore()
	}
	return fleet, cleanup, nil
}

// serveMetrics exposes reg on addr until the returned function is called.
// An empty addr serves nothing.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
