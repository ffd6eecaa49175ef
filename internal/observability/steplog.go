package observability

import (
	"context"
	"log/slog"
	"time"
)

// Step event names used across the pipeline.
const (
	// EventInitialization marks one discrete step of database initialization.
	EventInitialization = "initialization"
	// EventStage marks one stage execution within a simulated year.
	EventStage = "stage"
)

// StepLogger emits one structured record per pipeline step. Each record
// carries the same field set regardless of outcome:
//
//	{event, step_name, started_at, completed_at, duration_seconds, success, error?}
//
// This record stream is the sole observability surface the core produces;
// external log aggregation consumes it.
type StepLogger struct {
	logger *slog.Logger
}

// NewStepLogger creates a StepLogger writing through the given logger.
// A nil logger falls back to slog.Default().
func NewStepLogger(logger *slog.Logger) *StepLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StepLogger{logger: logger}
}

// Run executes fn and emits exactly one step record describing it. The
// record is written whether fn succeeds or fails; fn's error is returned
// unchanged so callers keep their error-handling flow. Extra attributes
// (year, operation) are appended after the fixed field set.
func (sl *StepLogger) Run(ctx context.Context, event, stepName string, fn func(context.Context) error, extra ...slog.Attr) error {
	startedAt := time.Now().UTC()
	err := fn(ctx)
	completedAt := time.Now().UTC()

	attrs := []slog.Attr{
		slog.String("event", event),
		slog.String("step_name", stepName),
		slog.Time("started_at", startedAt),
		slog.Time("completed_at", completedAt),
		slog.Float64("duration_seconds", completedAt.Sub(startedAt).Seconds()),
		slog.Bool("success", err == nil),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	attrs = append(attrs, extra...)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	sl.logger.LogAttrs(ctx, level, stepName, attrs...)

	return err
}
