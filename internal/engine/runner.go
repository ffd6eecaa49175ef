package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// RunnerConfig contains configuration for invoking the engine subprocess.
type RunnerConfig struct {
	// Command is the engine binary, e.g. "dbt"
	Command string
	// ProjectDir is the working directory the engine runs in
	ProjectDir string
	// ProfilesDir overrides the engine's profiles directory when set
	ProfilesDir string
	// Target selects the engine's connection profile target when set
	Target string
	// Threads is the engine-internal parallelism for run jobs
	Threads int
	// MaxStartsPerMinute bounds subprocess launches; zero or negative
	// disables the limit
	MaxStartsPerMinute int
	// Timeout is the per-invocation wall-clock ceiling; zero disables it
	Timeout time.Duration
}

// Runner executes the engine as a subprocess.
type Runner struct {
	cfg     RunnerConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ TransformationEngine = (*Runner)(nil)

// NewRunner creates a subprocess runner for the configured engine.
func NewRunner(cfg RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.MaxStartsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MaxStartsPerMinute)), 1)
	}

	return &Runner{
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
	}
}

// LoadReferenceData runs the engine's seed command.
func (r *Runner) LoadReferenceData(ctx context.Context, fullRefresh bool) (*Result, error) {
	args := []string{"seed"}
	if fullRefresh {
		args = append(args, "--full-refresh")
	}
	args = r.appendCommonArgs(args)

	return r.run(ctx, args)
}

// RunJobs runs the engine's run command for the jobs matched by the selector.
func (r *Runner) RunJobs(ctx context.Context, selector string, vars map[string]any) (*Result, error) {
	args := []string{"run", "--select", selector}
	if r.cfg.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(r.cfg.Threads))
	}
	if len(vars) > 0 {
		encoded, err := json.Marshal(vars)
		if err != nil {
			return nil, fmt.Errorf("failed to encode engine vars: %w", err)
		}
		args = append(args, "--vars", string(encoded))
	}
	args = r.appendCommonArgs(args)

	return r.run(ctx, args)
}

// appendCommonArgs appends the profile and target flags shared by every
// engine command.
func (r *Runner) appendCommonArgs(args []string) []string {
	if r.cfg.ProfilesDir != "" {
		args = append(args, "--profiles-dir", r.cfg.ProfilesDir)
	}
	if r.cfg.Target != "" {
		args = append(args, "--target", r.cfg.Target)
	}
	return args
}

// run launches one engine subprocess and waits for it to finish.
func (r *Runner) run(ctx context.Context, args []string) (*Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	runCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.cfg.Command, args...)
	if r.cfg.ProjectDir != "" {
		cmd.Dir = r.cfg.ProjectDir
	}
	cmd.Env = os.Environ()
	if r.cfg.ProfilesDir != "" {
		cmd.Env = append(cmd.Env, fmt.Sprintf("DBT_PROFILES_DIR=%s", r.cfg.ProfilesDir))
	}

	// Capture stdout and stderr
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("invoking transformation engine",
		slog.String("command", r.cfg.Command),
		slog.String("args", strings.Join(args, " ")),
		slog.String("dir", cmd.Dir))

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		Command:  r.cfg.Command,
		Args:     args,
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if err == nil {
		r.logger.Debug("transformation engine completed",
			slog.String("args", strings.Join(args, " ")),
			slog.Duration("duration", duration))
		return result, nil
	}

	// Caller-initiated cancellation passes through untyped so the pipeline
	// can distinguish it from engine failure
	if ctx.Err() == context.Canceled {
		result.ExitCode = -1
		return result, ctx.Err()
	}

	// Per-invocation timeout
	if runCtx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		return result, types.WrapRetryableError(types.ENGINE_TIMEOUT,
			fmt.Sprintf("engine run exceeded %s", r.cfg.Timeout), err)
	}

	// Engine ran and failed
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, types.WrapRetryableError(types.ENGINE_EXECUTION_FAILED,
			fmt.Sprintf("engine exited with code %d: %s", result.ExitCode, stderrTail(stderr.String())), err)
	}

	// Engine never started
	result.ExitCode = -1
	return result, types.WrapError(types.ENGINE_SPAWN_FAILED,
		fmt.Sprintf("failed to start engine command %q", r.cfg.Command), err)
}

// stderrTail returns the last few lines of engine stderr for error messages,
// collapsed to a single line.
func stderrTail(s string) string {
	const maxLines = 5
	const maxBytes = 512

	s = strings.TrimSpace(s)
	if s == "" {
		return "(no stderr output)"
	}

	lines := strings.Split(s, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	tail := strings.Join(lines, " | ")
	tail = strings.Join(strings.Fields(tail), " ")
	if len(tail) > maxBytes {
		tail = tail[len(tail)-maxBytes:]
	}
	return tail
}
