package memory

import "context"

// Store is the candidate history. Records are scoped to a run identifier;
// one run is the history of one bot.
type Store interface {
	// Append adds c at the end of the run's history.
	Append(ctx context.Context, runID string, c Candidate) error

	// List returns the run's history in insertion order. An unknown run
	// has an empty history.
	List(ctx context.Context, runID string) ([]Candidate, error)

	// Runs returns every run identifier that has at least one record,
	// ordered by first insertion.
	Runs(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
