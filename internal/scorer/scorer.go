// Package scorer talks to the aesthetic scoring service and reduces its
// metrics to a single score.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/easeaico/bytebeat-evolver/internal/httpjson"
)

// Scorer rates a waveform. Samples are normalised to [-1, 1].
type Scorer interface {
	Score(ctx context.Context, samples []float32, sampleRate int) (map[string]float64, error)
}

// ErrMalformed reports a metric map that cannot be summed.
var ErrMalformed = errors.New("malformed score")

// Validate rejects empty maps and non-finite values.
func Validate(metrics map[string]float64) error {
	if len(metrics) == 0 {
		return fmt.Errorf("%w: no metrics", ErrMalformed)
	}
	for k, v := range metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: metric %s is %v", ErrMalformed, k, v)
		}
	}
	return nil
}

// Sum adds every metric value.
func Sum(metrics map[string]float64) float64 {
	var total float64
	for _, v := range metrics {
		total += v
	}
	return total
}

// Round rounds to one decimal place, halves away from zero.
func Round(v float64) float64 {
	return math.Round(v*10) / 10
}

// Total validates metrics and returns their rounded sum.
func Total(metrics map[string]float64) (float64, error) {
	if err := Validate(metrics); err != nil {
		return 0, err
	}
	return Round(Sum(metrics)), nil
}

// HTTP posts waveforms to a scoring service. The service receives
// {"sample_rate": n, "samples": [...]} and answers with a flat JSON object
// of metric name to number.
type HTTP struct {
	url    string
	client *httpjson.Client
}

type scoreRequest struct {
	SampleRate int       `json:"sample_rate"`
	Samples    []float32 `json:"samples"`
}

// NewHTTP creates a scorer for the service at url.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTP{url: strings.TrimRight(url, "/"), client: httpjson.New(timeout)}
}

// Score posts the samples and returns the metrics as reported. Callers
// check them with Validate or Total.
func (s *HTTP) Score(ctx context.Context, samples []float32, sampleRate int) (map[string]float64, error) {
	var metrics map[string]float64
	req := scoreRequest{SampleRate: sampleRate, Samples: samples}
	if err := s.client.Post(ctx, s.url, req, nil, &metrics); err != nil {
		return nil, fmt.Errorf("failed to score waveform: %w", err)
	}
	return metrics, nil
}

var _ Scorer = (*HTTP)(nil)
