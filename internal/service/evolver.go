package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/easeaico/bytebeat-evolver/internal/llm"
	"github.com/easeaico/bytebeat-evolver/internal/memory"
	"github.com/easeaico/bytebeat-evolver/internal/render"
	"github.com/easeaico/bytebeat-evolver/internal/sandbox"
	"github.com/easeaico/bytebeat-evolver/internal/scorer"
	"github.com/easeaico/bytebeat-evolver/internal/selection"
)

const (
	coldStartPrompt = "No history, this is the first. Your Bytebeat:"

	DefaultContextProbability = 0.6
	DefaultMaxFormulaLength   = 20
)

// Outcome is how a step ended when it did not fail.
type Outcome int

const (
	// OutcomeDiscarded: the candidate did not compile or render and was
	// not recorded.
	OutcomeDiscarded Outcome = iota
	// OutcomeRecorded: the candidate was scored and appended to history.
	OutcomeRecorded
	// OutcomeNewHighScore: recorded and it beat the previous high score.
	OutcomeNewHighScore
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeRecorded:
		return "recorded"
	case OutcomeNewHighScore:
		return "new_high_score"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// StepResult describes one generation step.
type StepResult struct {
	Prompt      string
	WithHistory bool
	Reply       string
	Formula     string
	Outcome     Outcome
	// Cause is the compile or evaluation fault of a discarded candidate.
	Cause     error
	Score     float64
	Metrics   map[string]float64
	HighScore float64
	// Artifact is the saved waveform path of a new high score.
	Artifact string
}

// Options tune the evolver. ContextProbability, TopN and RandN are used as
// given, so TopN = RandN = 0 never shows history. A zero MaxFormulaLength
// takes the default and zero timeouts mean no bound.
type Options struct {
	ContextProbability float64
	TopN               int
	RandN              int
	MaxFormulaLength   int
	Render             render.Options
	OracleTimeout      time.Duration
	ScorerTimeout      time.Duration
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		ContextProbability: DefaultContextProbability,
		TopN:               selection.DefaultTopN,
		RandN:              selection.DefaultRandN,
		MaxFormulaLength:   DefaultMaxFormulaLength,
		Render:             render.DefaultOptions(),
		OracleTimeout:      2 * time.Minute,
		ScorerTimeout:      2 * time.Minute,
	}
}

// Evolver runs generation steps against oracle, scorer and artifact sink.
// It holds no per-run state and may step many runs concurrently.
type Evolver struct {
	oracle  llm.Oracle
	scorer  scorer.Scorer
	sink    ArtifactSink
	opts    Options
	logger  *slog.Logger
	metrics *Metrics
}

// NewEvolver creates an evolver. logger and metrics may be nil.
func NewEvolver(oracle llm.Oracle, sc scorer.Scorer, sink ArtifactSink, opts Options, logger *slog.Logger, metrics *Metrics) *Evolver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ContextProbability < 0 {
		opts.ContextProbability = 0
	}
	if opts.MaxFormulaLength <= 0 {
		opts.MaxFormulaLength = DefaultMaxFormulaLength
	}
	return &Evolver{
		oracle:  oracle,
		scorer:  sc,
		sink:    sink,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Step runs one generation for run. Compile and evaluation faults discard
// the candidate and are reported in the result, not as an error. Oracle,
// scorer and history failures are returned as *OracleError, *ScorerError
// and *HistoryError. A *PersistError comes with a valid result: the
// candidate was recorded and the high score raised before saving failed.
func (e *Evolver) Step(ctx context.Context, run *Run) (StepResult, error) {
	run.mu.Lock()
	defer run.mu.Unlock()

	log := e.logger.With("bot", run.BotID, "run", run.ID)

	prompt, withHistory, err := e.buildPrompt(ctx, run)
	if err != nil {
		e.metrics.stepFailed("history")
		return StepResult{}, &HistoryError{RunID: run.ID, Err: err}
	}
	res := StepResult{Prompt: prompt, WithHistory: withHistory, HighScore: run.highScore}

	reply, err := e.generate(ctx, prompt)
	if err != nil {
		e.metrics.stepFailed("oracle")
		return res, &OracleError{Err: err}
	}
	res.Reply = reply
	res.Formula = llm.CleanReply(reply)
	log = log.With("formula", res.Formula)
	if len(res.Formula) > e.opts.MaxFormulaLength {
		log.Warn("formula exceeds length limit", "length", len(res.Formula), "limit", e.opts.MaxFormulaLength)
	}

	start := time.Now()
	wf, err := render.Render(ctx, res.Formula, e.opts.Render)
	e.metrics.observeRender(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, sandbox.ErrCompile) || errors.Is(err, sandbox.ErrEval) {
			log.Info("candidate discarded", "cause", err)
			res.Outcome = OutcomeDiscarded
			res.Cause = err
			e.metrics.observeStep(res.Outcome)
			return res, nil
		}
		return res, err
	}

	metrics, err := e.score(ctx, wf)
	if err != nil {
		e.metrics.stepFailed("scorer")
		return res, &ScorerError{Formula: res.Formula, Err: err}
	}
	score, err := scorer.Total(metrics)
	if err != nil {
		e.metrics.stepFailed("scorer")
		return res, &ScorerError{Formula: res.Formula, Err: err}
	}
	res.Score = score
	res.Metrics = metrics
	log = log.With("score", score)

	c := memory.Candidate{Formula: res.Formula, Score: score, Metrics: metrics, CreatedAt: time.Now().UTC()}
	if err := run.store.Append(ctx, run.ID, c); err != nil {
		e.metrics.stepFailed("history")
		return res, &HistoryError{RunID: run.ID, Err: err}
	}
	res.Outcome = OutcomeRecorded

	if score <= run.highScore {
		log.Debug("candidate recorded")
		e.metrics.observeStep(res.Outcome)
		return res, nil
	}

	run.highScore = score
	res.HighScore = score
	res.Outcome = OutcomeNewHighScore
	e.metrics.observeStep(res.Outcome)
	e.metrics.setHighScore(run.BotID, score)
	log.Info("new high score")

	if e.sink == nil {
		return res, nil
	}
	name := ArtifactName(run.BotID, score)
	path, err := e.sink.Save(ctx, name, wf)
	if err != nil {
		e.metrics.stepFailed("persist")
		return res, &PersistError{Name: name, Err: err}
	}
	res.Artifact = path
	return res, nil
}

// buildPrompt draws from the run's rng whether to show history. An empty
// history or an empty subset gets the cold-start prompt.
func (e *Evolver) buildPrompt(ctx context.Context, run *Run) (string, bool, error) {
	if run.rng.Float64() >= e.opts.ContextProbability {
		return coldStartPrompt, false, nil
	}
	history, err := run.store.List(ctx, run.ID)
	if err != nil {
		return "", false, err
	}
	if len(history) == 0 {
		return coldStartPrompt, false, nil
	}
	subset, err := selection.PickSubset(run.rng, history, e.opts.TopN, e.opts.RandN)
	if err != nil {
		return "", false, err
	}
	if len(subset) == 0 {
		return coldStartPrompt, false, nil
	}
	return "History:\n" + selection.Format(subset) + "\n\nYour Bytebeat:", true, nil
}

func (e *Evolver) generate(ctx context.Context, prompt string) (string, error) {
	if e.opts.OracleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.OracleTimeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := e.oracle.Generate(ctx, prompt)
	e.metrics.observeOracle(time.Since(start).Seconds())
	return reply, err
}

func (e *Evolver) score(ctx context.Context, wf render.Waveform) (map[string]float64, error) {
	if e.opts.ScorerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.ScorerTimeout)
		defer cancel()
	}
	start := time.Now()
	metrics, err := e.scorer.Score(ctx, wf.Float32(), wf.SampleRate)
	e.metrics.observeScorer(time.Since(start).Seconds())
	return metrics, err
}
