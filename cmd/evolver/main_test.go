package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easeaico/bytebeat-evolver/internal/memory"
	"github.com/easeaico/bytebeat-evolver/internal/render"
)

// isolateEnv clears the configuration environment for one test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DB_TYPE", "DATABASE_URL", "ORACLE_PROVIDER", "ORACLE_MODEL", "OPENAI_BASE_URL",
		"GOOGLE_API_KEY", "OPENAI_API_KEY", "SCORER_URL", "OUTPUT_DIR", "WORK_DIR",
		"BOTS", "GENERATIONS", "SEED", "RESUME", "CONTEXT_PROBABILITY", "SAMPLE_RATE",
		"DURATION", "RENDER_WORKERS", "METRICS_ADDR", "LOG_LEVEL", "TOP_N", "RAND_N",
		"MAX_FORMULA_LENGTH", "MAX_SCORE", "ORACLE_TEMPERATURE", "ORACLE_TIMEOUT", "SCORER_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"run", "render", "history"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, "command %s should exist", name)
		assert.Equal(t, name, sub.Name())
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestRenderCommand(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DB_TYPE", "memory")
	path := filepath.Join(t.TempDir(), "out.wav")

	out, err := execute(t, "render", "t>>4 | (t&t>>5)", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved "+path+" (10s, 16000 Hz mono)")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	wf, err := render.ReadWAV(f)
	require.NoError(t, err)
	assert.Equal(t, 160_000, wf.Len())
}

func TestRenderCommand_RejectsUnsafeFormula(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DB_TYPE", "memory")
	path := filepath.Join(t.TempDir(), "out.wav")

	_, err := execute(t, "render", "__import__('os').system('ls')", path)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestHistoryCommand(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DATABASE_URL", dbPath)

	ctx := context.Background()
	store, err := memory.NewSQLiteStore(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.InitSchema(ctx))
	require.NoError(t, store.Append(ctx, "bot0-a", memory.Candidate{Formula: "t*2", Score: 3.2}))
	require.NoError(t, store.Append(ctx, "bot0-a", memory.Candidate{Formula: "t^t>>3", Score: 7.9}))
	require.NoError(t, store.Append(ctx, "bot1-b", memory.Candidate{Formula: "t>>4", Score: 1}))
	require.NoError(t, store.Close())

	out, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Regexp(t, `bot0-a\s+2\s+7\.9`, out)
	assert.Regexp(t, `bot1-b\s+1\s+1\.0`, out)

	out, err = execute(t, "history", "--bot", "0")
	require.NoError(t, err)
	assert.Equal(t, "3.2: t*2\n7.9: t^t>>3\n", out)

	out, err = execute(t, "history", "--run", "bot1-b")
	require.NoError(t, err)
	assert.Equal(t, "1.0: t>>4\n", out)

	_, err = execute(t, "history", "--bot", "5")
	assert.Error(t, err)
}

func TestRunCommand_RequiresScorer(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DB_TYPE", "memory")
	t.Setenv("GOOGLE_API_KEY", "k")

	_, err := execute(t, "run", "--generations", "1")
	assert.ErrorContains(t, err, "SCORER_URL")
}

// TestRunCommand_EndToEnd drives the whole loop against local oracle and
// scorer servers.
func TestRunCommand_EndToEnd(t *testing.T) {
	isolateEnv(t)

	oracle := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "`t&t>>5`" + `"}}]}`))
	}))
	defer oracle.Close()

	var scored atomic.Int32
	scorerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SampleRate int       `json:"sample_rate"`
			Samples    []float32 `json:"samples"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 8000, req.SampleRate)
		assert.Len(t, req.Samples, 8000)
		scored.Add(1)
		_, _ = w.Write([]byte(`{"CE": 1.5, "PQ": 1.5}`))
	}))
	defer scorerSrv.Close()

	outDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DATABASE_URL", dbPath)
	t.Setenv("ORACLE_PROVIDER", "openai")
	t.Setenv("OPENAI_BASE_URL", oracle.URL)
	t.Setenv("SCORER_URL", scorerSrv.URL)
	t.Setenv("OUTPUT_DIR", outDir)
	t.Setenv("SAMPLE_RATE", "8000")
	t.Setenv("DURATION", "1s")
	t.Setenv("SEED", "1")

	out, err := execute(t, "run", "--generations", "3")
	require.NoError(t, err)
	assert.Equal(t, int32(3), scored.Load())
	assert.Equal(t, "BOT 0 NEW HIGH SCORE 3.0 t&t>>5\n", out)
	assert.FileExists(t, filepath.Join(outDir, "bot0_3.0.wav"))

	out, err = execute(t, "history", "--bot", "0")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "3.0: t&t>>5"))
}
