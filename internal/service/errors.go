package service

import "fmt"

// OracleError reports that the oracle could not produce a reply.
type OracleError struct {
	Err error
}

func (e *OracleError) Error() string { return fmt.Sprintf("oracle failed: %v", e.Err) }
func (e *OracleError) Unwrap() error { return e.Err }

// ScorerError reports a scorer failure or a metric map that could not be
// reduced to a score.
type ScorerError struct {
	Formula string
	Err     error
}

func (e *ScorerError) Error() string {
	return fmt.Sprintf("scorer failed for %q: %v", e.Formula, e.Err)
}
func (e *ScorerError) Unwrap() error { return e.Err }

// HistoryError reports a history store failure.
type HistoryError struct {
	RunID string
	Err   error
}

func (e *HistoryError) Error() string {
	return fmt.Sprintf("history of run %s: %v", e.RunID, e.Err)
}
func (e *HistoryError) Unwrap() error { return e.Err }

// PersistError reports that a new high-score waveform could not be saved.
// History and high score were already updated when it is returned.
type PersistError struct {
	Name string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Name, e.Err)
}
func (e *PersistError) Unwrap() error { return e.Err }
