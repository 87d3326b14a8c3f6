package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/easeaico/bytebeat-evolver/internal/memory"
)

// Fleet runs several bots side by side. Each bot owns its Run; the
// evolver, store and metrics are shared.
type Fleet struct {
	Evolver *Evolver
	Store   memory.Store
	Logger  *slog.Logger
	// Seed is offset by the bot number to seed each run's rng.
	Seed int64
	// Resume continues each bot's latest run instead of starting fresh.
	Resume bool
	// OnStep, when set, is called after every step that did not fail.
	OnStep func(run *Run, res StepResult)
}

// Run steps every bot generations times, or until ctx is done when
// generations is zero or negative. The first fatal error cancels the other
// bots and is returned. A *PersistError is logged and the bot carries on.
func (f *Fleet) Run(ctx context.Context, bots, generations int) error {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runs := make([]*Run, bots)
	for id := range runs {
		run, err := f.openRun(ctx, id)
		if err != nil {
			return err
		}
		runs[id] = run
		logger.Info("bot started", "bot", id, "run", run.ID, "high_score", run.HighScore())
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, run := range runs {
		p.Go(func(ctx context.Context) error {
			for gen := 0; generations <= 0 || gen < generations; gen++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := f.Evolver.Step(ctx, run)
				var persistErr *PersistError
				if errors.As(err, &persistErr) {
					logger.Error("failed to save artifact", "bot", run.BotID, "error", err)
				} else if err != nil {
					return err
				}
				if f.OnStep != nil {
					f.OnStep(run, res)
				}
			}
			return nil
		})
	}
	return p.Wait()
}

func (f *Fleet) openRun(ctx context.Context, botID int) (*Run, error) {
	seed := f.Seed + int64(botID)
	if !f.Resume {
		return NewRun(f.Store, botID, seed), nil
	}
	id, err := LatestRun(ctx, f.Store, botID)
	if err != nil {
		return nil, &HistoryError{RunID: "", Err: err}
	}
	if id == "" {
		return NewRun(f.Store, botID, seed), nil
	}
	return ResumeRun(ctx, f.Store, id, botID, seed)
}
