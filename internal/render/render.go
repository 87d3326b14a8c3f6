// Package render turns bytebeat formulas into fixed-length 16-bit waveforms.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/easeaico/bytebeat-evolver/internal/sandbox"
)

const (
	DefaultSampleRate = 16_000
	DefaultDuration   = 10 * time.Second
	DefaultChunkSize  = 4096
)

// Options controls the time domain and how it is evaluated. Zero fields take
// the defaults.
type Options struct {
	SampleRate int
	Duration   time.Duration
	// Workers is the number of chunks evaluated concurrently.
	Workers int
	// ChunkSize is the number of time indices per batch.
	ChunkSize int
}

// DefaultOptions returns 16 kHz, 10 s, single worker.
func DefaultOptions() Options {
	return Options{
		SampleRate: DefaultSampleRate,
		Duration:   DefaultDuration,
		Workers:    1,
		ChunkSize:  DefaultChunkSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleRate <= 0 {
		o.SampleRate = d.SampleRate
	}
	if o.Duration <= 0 {
		o.Duration = d.Duration
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	return o
}

// NumSamples is sampleRate × duration, the length of every rendered waveform.
func (o Options) NumSamples() int {
	o = o.withDefaults()
	return int(int64(o.SampleRate) * int64(o.Duration) / int64(time.Second))
}

// Waveform is mono signed 16-bit PCM.
type Waveform struct {
	SampleRate int
	Samples    []int16
}

// Len returns the number of samples.
func (w Waveform) Len() int { return len(w.Samples) }

// Duration returns the playing time of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(len(w.Samples)) * int64(time.Second) / int64(w.SampleRate))
}

// Float32 returns the samples scaled to [-1, 1).
func (w Waveform) Float32() []float32 {
	out := make([]float32, len(w.Samples))
	for i, s := range w.Samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Quantize keeps the low 8 bits of r as an unsigned byte and centres it in
// a 16-bit sample: 0 maps to -32768 and 255 to 32512.
func Quantize(r int64) int16 {
	return int16(((r & 0xFF) - 128) << 8)
}

// Render compiles formula and renders it. Compile failures are returned
// unchanged (they match sandbox.ErrCompile); runtime faults are
// *sandbox.EvalError.
func Render(ctx context.Context, formula string, opts Options) (Waveform, error) {
	prog, err := sandbox.Compile(formula)
	if err != nil {
		return Waveform{}, err
	}
	return RenderProgram(ctx, prog, opts)
}

// RenderProgram evaluates prog over t = 0 … NumSamples-1. Either every
// sample is produced or an error is returned; partial waveforms are never
// returned. The output does not depend on Workers or ChunkSize.
func RenderProgram(ctx context.Context, prog *sandbox.Program, opts Options) (Waveform, error) {
	if prog == nil {
		return Waveform{}, errors.New("program is required")
	}
	opts = opts.withDefaults()
	n := opts.NumSamples()
	samples := make([]int16, n)

	chunks := (n + opts.ChunkSize - 1) / opts.ChunkSize
	errs := make([]error, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for c := 0; c < chunks; c++ {
		if gctx.Err() != nil {
			break
		}
		start := c * opts.ChunkSize
		end := min(start+opts.ChunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := renderChunk(prog, start, samples[start:end]); err != nil {
				errs[c] = err
				return err
			}
			return nil
		})
	}
	waitErr := g.Wait()

	// A formula fault wins over the cancellation it caused in other chunks.
	for _, err := range errs {
		if err != nil {
			return Waveform{}, err
		}
	}
	if waitErr != nil {
		return Waveform{}, fmt.Errorf("render interrupted: %w", waitErr)
	}
	if err := ctx.Err(); err != nil {
		return Waveform{}, fmt.Errorf("render interrupted: %w", err)
	}
	return Waveform{SampleRate: opts.SampleRate, Samples: samples}, nil
}

func renderChunk(prog *sandbox.Program, start int, dst []int16) error {
	ts := make([]int64, len(dst))
	for i := range ts {
		ts[i] = int64(start + i)
	}
	vals := make([]int64, len(dst))
	if err := prog.EvalBatch(ts, vals); err != nil {
		return err
	}
	for i, v := range vals {
		dst[i] = Quantize(v)
	}
	return nil
}
