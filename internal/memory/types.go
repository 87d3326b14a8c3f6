// Package memory stores the candidate history of evolver runs.
package memory

import (
	"sort"
	"time"
)

// Candidate is one evaluated formula. Records are appended in generation
// order and never modified afterwards.
type Candidate struct {
	Formula string
	// Score is the summed metric value rounded to one decimal.
	Score float64
	// Metrics holds the raw scorer output the score was derived from.
	// It is informational and plays no part in selection.
	Metrics   map[string]float64
	CreatedAt time.Time
}

// splitMetrics flattens m into parallel name/value slices ordered by name.
func splitMetrics(m map[string]float64) ([]string, []float32) {
	if len(m) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	values := make([]float32, len(names))
	for i, k := range names {
		values[i] = float32(m[k])
	}
	return names, values
}

// joinMetrics is the inverse of splitMetrics. Mismatched lengths yield nil.
func joinMetrics(names []string, values []float32) map[string]float64 {
	if len(names) == 0 || len(names) != len(values) {
		return nil
	}
	m := make(map[string]float64, len(names))
	for i, k := range names {
		m[k] = float64(values[i])
	}
	return m
}
