package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/easeaico/bytebeat-evolver/internal/render"
)

// ArtifactSink stores the waveform of a new high score.
type ArtifactSink interface {
	Save(ctx context.Context, name string, wf render.Waveform) (string, error)
}

// ArtifactName encodes bot identity and score, e.g. bot3_7.9.wav.
func ArtifactName(botID int, score float64) string {
	return fmt.Sprintf("bot%d_%s.wav", botID, strconv.FormatFloat(score, 'f', 1, 64))
}

// DirSink writes WAV files into a directory, retrying failed writes.
type DirSink struct {
	Dir      string
	Backoffs []time.Duration
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &DirSink{
		Dir:      dir,
		Backoffs: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second},
	}, nil
}

// Save writes wf to Dir/name and returns the path.
func (s *DirSink) Save(ctx context.Context, name string, wf render.Waveform) (string, error) {
	path := filepath.Join(s.Dir, name)

	var lastErr error
	for attempt := 0; attempt <= len(s.Backoffs); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.Backoffs[attempt-1]):
			}
		}
		if lastErr = render.WriteFile(path, wf); lastErr == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("all retries failed: %w", lastErr)
}

var _ ArtifactSink = (*DirSink)(nil)
