// Package selection picks the slice of history shown to the oracle.
package selection

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/easeaico/bytebeat-evolver/internal/memory"
)

const (
	DefaultTopN  = 3
	DefaultRandN = 3
)

// PickSubset returns up to topN of the highest-scoring records plus up to
// randN records drawn uniformly without replacement from the rest, shuffled
// together. Ties in score keep insertion order. Records are identified by
// position, so repeated formulas remain distinct.
func PickSubset(rng *rand.Rand, history []memory.Candidate, topN, randN int) ([]memory.Candidate, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if topN < 0 || randN < 0 {
		return nil, fmt.Errorf("invalid subset size: top=%d random=%d", topN, randN)
	}
	if len(history) == 0 {
		return []memory.Candidate{}, nil
	}

	idx := make([]int, len(history))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return history[idx[a]].Score > history[idx[b]].Score
	})

	top := min(topN, len(idx))
	chosen := make([]memory.Candidate, 0, top+randN)
	for _, i := range idx[:top] {
		chosen = append(chosen, history[i])
	}

	// The remainder keeps insertion order so draws depend only on the rng.
	rest := append([]int(nil), idx[top:]...)
	sort.Ints(rest)
	for k := 0; k < randN && len(rest) > 0; k++ {
		j := rng.Intn(len(rest))
		chosen = append(chosen, history[rest[j]])
		rest[j] = rest[len(rest)-1]
		rest = rest[:len(rest)-1]
	}

	rng.Shuffle(len(chosen), func(i, j int) {
		chosen[i], chosen[j] = chosen[j], chosen[i]
	})
	return chosen, nil
}

// Format renders records one per line as "<score>: <formula>" with the
// score printed to one decimal.
func Format(records []memory.Candidate) string {
	var b strings.Builder
	for i, c := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.FormatFloat(c.Score, 'f', 1, 64))
		b.WriteString(": ")
		b.WriteString(c.Formula)
	}
	return b.String()
}
