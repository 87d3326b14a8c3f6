package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/easeaico/bytebeat-evolver/internal/memory"
	"github.com/easeaico/bytebeat-evolver/internal/selection"
	"github.com/easeaico/bytebeat-evolver/internal/service"
)

type historyOptions struct {
	*rootOptions
	Bot   int
	RunID string
}

func newHistoryCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &historyOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs and candidates",
		Long: `Without flags, list every run with its record count and best score.
With --bot, print the latest run of that bot; with --run, print the given run.
Records are printed as "<score>: <formula>" in generation order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			runID := opts.RunID
			if runID == "" && cmd.Flags().Changed("bot") {
				runID, err = service.LatestRun(ctx, store, opts.Bot)
				if err != nil {
					return fmt.Errorf("failed to find runs: %w", err)
				}
				if runID == "" {
					return fmt.Errorf("bot %d has no recorded runs", opts.Bot)
				}
			}
			if runID == "" {
				return listRuns(ctx, cmd.OutOrStdout(), store)
			}

			records, err := store.List(ctx, runID)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}
			if len(records) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), selection.Format(records))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Bot, "bot", 0, "show the latest run of this bot")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show this run")

	return cmd
}

func listRuns(ctx context.Context, w io.Writer, store memory.Store) error {
	runs, err := store.Runs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tRECORDS\tBEST")
	for _, id := range runs {
		records, err := store.List(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load run %s: %w", id, err)
		}
		var best float64
		for i, c := range records {
			if i == 0 || c.Score > best {
				best = c.Score
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%.1f\n", id, len(records), best)
	}
	return tw.Flush()
}
