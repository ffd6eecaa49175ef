// Package engine invokes the external SQL transformation engine that owns
// every table inside the simulation database. The navigator never generates
// SQL; it only decides which engine commands run, in what order, against
// which year.
package engine

import (
	"context"
	"time"
)

// Result captures one engine invocation for logging and diagnostics.
type Result struct {
	// Command is the binary that was invoked
	Command string
	// Args are the full arguments passed to the command
	Args []string
	// ExitCode is the subprocess exit code (0 on success, -1 if it never ran)
	ExitCode int
	// Stdout contains the captured standard output
	Stdout string
	// Stderr contains the captured standard error
	Stderr string
	// Duration is how long the invocation took
	Duration time.Duration
}

// TransformationEngine is the pipeline's view of the external engine. Both
// operations are opaque, blocking, pass/fail: the navigator interprets
// nothing about what SQL ran, only whether the invocation succeeded.
type TransformationEngine interface {
	// LoadReferenceData loads the seed tables, optionally rebuilding them
	// from scratch.
	LoadReferenceData(ctx context.Context, fullRefresh bool) (*Result, error)

	// RunJobs runs the transformation jobs matched by the selector. Vars are
	// passed through to the engine to scope the run, e.g. the simulation year.
	RunJobs(ctx context.Context, selector string, vars map[string]any) (*Result, error)
}
