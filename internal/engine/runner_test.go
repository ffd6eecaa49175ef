package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// writeScript writes an executable shell script and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestRunnerSeedArgs(t *testing.T) {
	tmpDir := t.TempDir()
	argsFile := filepath.Join(tmpDir, "args.txt")
	script := writeScript(t, tmpDir, "fake-engine", `echo "$@" > `+argsFile+`
echo "seed complete"`)

	runner := NewRunner(RunnerConfig{
		Command:    script,
		ProjectDir: tmpDir,
		Target:     "dev",
		Threads:    4,
	}, nil)

	result, err := runner.LoadReferenceData(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "seed complete")

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.TrimSpace(string(recorded))
	assert.Contains(t, args, "seed")
	assert.Contains(t, args, "--full-refresh")
	assert.Contains(t, args, "--target dev")
	assert.NotContains(t, args, "--threads", "seed must not pass threads")
}

func TestRunnerRunJobsArgs(t *testing.T) {
	tmpDir := t.TempDir()
	argsFile := filepath.Join(tmpDir, "args.txt")
	script := writeScript(t, tmpDir, "fake-engine", `echo "$@" > `+argsFile)

	runner := NewRunner(RunnerConfig{
		Command:    script,
		ProjectDir: tmpDir,
		Threads:    8,
	}, nil)

	vars := map[string]any{"simulation_year": 2026}
	result, err := runner.RunJobs(context.Background(), "tag:event_generation", vars)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.TrimSpace(string(recorded))
	assert.Contains(t, args, "run --select tag:event_generation")
	assert.Contains(t, args, "--threads 8")
	assert.Contains(t, args, `{"simulation_year":2026}`)
}

func TestRunnerExecutionFailure(t *testing.T) {
	tmpDir := t.TempDir()
	script := writeScript(t, tmpDir, "fake-engine", `echo "compilation error in model fct_yearly_events" >&2
exit 3`)

	runner := NewRunner(RunnerConfig{Command: script, ProjectDir: tmpDir}, nil)

	result, err := runner.RunJobs(context.Background(), "tag:event_generation", nil)
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Stderr, "compilation error")

	code, ok := types.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, types.ENGINE_EXECUTION_FAILED, code)
	assert.Contains(t, err.Error(), "exited with code 3")
	assert.Contains(t, err.Error(), "compilation error", "stderr tail must reach the error message")

	var ne *types.NavigatorError
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Retryable)
}

func TestRunnerTimeout(t *testing.T) {
	tmpDir := t.TempDir()
	script := writeScript(t, tmpDir, "fake-engine", `sleep 10`)

	runner := NewRunner(RunnerConfig{
		Command:    script,
		ProjectDir: tmpDir,
		Timeout:    100 * time.Millisecond,
	}, nil)

	start := time.Now()
	_, err := runner.LoadReferenceData(context.Background(), false)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 5*time.Second, "timeout must kill the subprocess")

	code, ok := types.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, types.ENGINE_TIMEOUT, code)
}

func TestRunnerSpawnFailure(t *testing.T) {
	runner := NewRunner(RunnerConfig{
		Command: "/nonexistent/path/to/engine",
	}, nil)

	result, err := runner.LoadReferenceData(context.Background(), false)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, -1, result.ExitCode)

	code, ok := types.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, types.ENGINE_SPAWN_FAILED, code)

	var ne *types.NavigatorError
	require.ErrorAs(t, err, &ne)
	assert.False(t, ne.Retryable, "a missing binary will not appear by retrying")
}

func TestRunnerCancellation(t *testing.T) {
	tmpDir := t.TempDir()
	script := writeScript(t, tmpDir, "fake-engine", `sleep 10`)

	runner := NewRunner(RunnerConfig{Command: script, ProjectDir: tmpDir}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := runner.RunJobs(ctx, "tag:foundation", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStderrTail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "(no stderr output)"},
		{"single line", "an error\n", "an error"},
		{"collapses lines", "one\ntwo\nthree", "one | two | three"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stderrTail(tt.input))
		})
	}

	// Only the final lines survive
	long := strings.Repeat("noise\n", 50) + "actual failure"
	assert.Contains(t, stderrTail(long), "actual failure")
	assert.NotContains(t, stderrTail(long), strings.Repeat("noise | ", 10))
}
