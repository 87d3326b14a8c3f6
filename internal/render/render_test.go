package render

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easeaico/bytebeat-evolver/internal/sandbox"
)

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   int64
		want int16
	}{
		{0, -32768},
		{255, 32512},
		{128, 0},
		{127, -256},
		{256, -32768},
		{-1, 32512},
		{0x1234, int16((0x34 - 128) << 8)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quantize(tt.in), "Quantize(%d)", tt.in)
	}
}

func TestRender_DefaultLengthAndRange(t *testing.T) {
	wf, err := Render(context.Background(), "t&t>>5", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 160_000, wf.Len())
	assert.Equal(t, 16_000, wf.SampleRate)
	assert.Equal(t, 10*time.Second, wf.Duration())
	for i, s := range wf.Samples {
		if s > 32512 {
			t.Fatalf("sample %d out of range: %d", i, s)
		}
		if s&0xFF != 0 {
			t.Fatalf("sample %d has non-zero low byte: %d", i, s)
		}
	}
}

func TestRender_SamplesMatchFormula(t *testing.T) {
	wf, err := Render(context.Background(), "t&t>>5", Options{SampleRate: 8000, Duration: time.Second})
	require.NoError(t, err)
	require.Equal(t, 8000, wf.Len())

	for _, i := range []int{0, 1, 31, 255, 1000, 7999} {
		r := int64(i) & (int64(i) >> 5)
		assert.Equal(t, int16(((r&0xFF)-128)<<8), wf.Samples[i], "t=%d", i)
	}
}

func TestRender_Deterministic(t *testing.T) {
	ctx := context.Background()
	a, err := Render(ctx, "t*(t>>8|t>>9)&46&t>>8^(t&t>>13|t>>6)", DefaultOptions())
	require.NoError(t, err)
	b, err := Render(ctx, "t*(t>>8|t>>9)&46&t>>8^(t&t>>13|t>>6)", DefaultOptions())
	require.NoError(t, err)

	ea, err := EncodeWAV(a)
	require.NoError(t, err)
	eb, err := EncodeWAV(b)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(ea, eb))
}

func TestRender_WorkersDoNotChangeOutput(t *testing.T) {
	ctx := context.Background()
	single, err := Render(ctx, "sin(t/20)*100+t>>3", Options{Workers: 1, ChunkSize: 1000})
	require.NoError(t, err)
	parallel, err := Render(ctx, "sin(t/20)*100+t>>3", Options{Workers: 8, ChunkSize: 777})
	require.NoError(t, err)
	assert.Equal(t, single.Samples, parallel.Samples)
}

func TestRender_CompileErrorPassesThrough(t *testing.T) {
	_, err := Render(context.Background(), "os.system(t)", DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sandbox.ErrCompile))
	assert.False(t, errors.Is(err, sandbox.ErrEval))
}

func TestRender_FaultFailsWholeRender(t *testing.T) {
	for _, workers := range []int{1, 4} {
		wf, err := Render(context.Background(), "t/(t-90000)", Options{Workers: workers})
		require.Error(t, err)
		assert.True(t, errors.Is(err, sandbox.ErrEval))
		assert.True(t, errors.Is(err, sandbox.ErrDivisionByZero))
		assert.Nil(t, wf.Samples)
		assert.Zero(t, wf.Len())
	}
}

func TestRender_IntermediatesAreExact(t *testing.T) {
	wf, err := Render(context.Background(), "(t<<70)&255|t>>3", Options{SampleRate: 8000, Duration: time.Second})
	require.NoError(t, err)
	for _, i := range []int{0, 8, 4000, 7999} {
		assert.Equal(t, Quantize(int64(i)>>3), wf.Samples[i], "t=%d", i)
	}

	_, err = Render(context.Background(), "t*t*t*t*t", DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sandbox.ErrOverflow))
}

func TestRender_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Render(ctx, "t", DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRenderProgram_NilProgram(t *testing.T) {
	_, err := RenderProgram(context.Background(), nil, DefaultOptions())
	assert.Error(t, err)
}

func TestOptions_NumSamples(t *testing.T) {
	assert.Equal(t, 160_000, Options{}.NumSamples())
	assert.Equal(t, 4000, Options{SampleRate: 8000, Duration: 500 * time.Millisecond}.NumSamples())
}

func TestWaveform_Float32(t *testing.T) {
	wf := Waveform{SampleRate: 16000, Samples: []int16{-32768, 0, 32512, 16384}}
	got := wf.Float32()
	assert.Equal(t, []float32{-1, 0, 0.9921875, 0.5}, got)
}
