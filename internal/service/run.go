// Package service drives the evolutionary loop: prompting the oracle,
// evaluating candidates and recording them per run.
package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/easeaico/bytebeat-evolver/internal/memory"
)

// Run is the state of one bot: its history and high score. Steps on the
// same Run are serialized; separate Runs share nothing mutable.
type Run struct {
	ID    string
	BotID int

	mu        sync.Mutex
	store     memory.Store
	highScore float64
	rng       *rand.Rand
}

// NewRun starts an empty run for botID with a fresh identifier.
func NewRun(store memory.Store, botID int, seed int64) *Run {
	return &Run{
		ID:    fmt.Sprintf("%s%s", runPrefix(botID), uuid.NewString()),
		BotID: botID,
		store: store,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// ResumeRun reopens an existing run and restores its high score from the
// stored history.
func ResumeRun(ctx context.Context, store memory.Store, runID string, botID int, seed int64) (*Run, error) {
	r := &Run{
		ID:    runID,
		BotID: botID,
		store: store,
		rng:   rand.New(rand.NewSource(seed)),
	}
	if err := r.Resume(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Resume recomputes the high score as the best stored score, never below 0.
func (r *Run) Resume(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	history, err := r.store.List(ctx, r.ID)
	if err != nil {
		return &HistoryError{RunID: r.ID, Err: err}
	}
	r.highScore = 0
	for _, c := range history {
		r.highScore = max(r.highScore, c.Score)
	}
	return nil
}

// HighScore returns the best score recorded so far.
func (r *Run) HighScore() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.highScore
}

// History returns the run's records in generation order.
func (r *Run) History(ctx context.Context) ([]memory.Candidate, error) {
	return r.store.List(ctx, r.ID)
}

func runPrefix(botID int) string {
	return fmt.Sprintf("bot%d-", botID)
}

// LatestRun returns the most recently started run of botID, or "" when the
// bot has none.
func LatestRun(ctx context.Context, store memory.Store, botID int) (string, error) {
	runs, err := store.Runs(ctx)
	if err != nil {
		return "", err
	}
	prefix := runPrefix(botID)
	for i := len(runs) - 1; i >= 0; i-- {
		if strings.HasPrefix(runs[i], prefix) {
			return runs[i], nil
		}
	}
	return "", nil
}

// BotRuns returns the runs of botID in start order.
func BotRuns(ctx context.Context, store memory.Store, botID int) ([]string, error) {
	runs, err := store.Runs(ctx)
	if err != nil {
		return nil, err
	}
	prefix := runPrefix(botID)
	var out []string
	for _, id := range runs {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out, nil
}
