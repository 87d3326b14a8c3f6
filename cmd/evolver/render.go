package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/easeaico/bytebeat-evolver/internal/render"
)

func newRenderCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render <formula> <out.wav>",
		Short: "Render a formula to a WAV file",
		Example: `  evolver render "t>>4 | (t&t>>5)" output.wav
  SAMPLE_RATE=8000 DURATION=30s evolver render "t*(42&t>>10)" long.wav`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := renderOptions(rootOpts.cfg)
			wf, err := render.Render(cmd.Context(), args[0], opts)
			if err != nil {
				return fmt.Errorf("failed to render %q: %w", args[0], err)
			}
			if err := render.WriteFile(args[1], wf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s, %d Hz mono)\n", args[1], wf.Duration().Round(time.Millisecond), wf.SampleRate)
			return nil
		},
	}
}
