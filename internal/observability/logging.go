package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Log output formats supported by NewHandler.
const (
	// FormatJSON emits one JSON object per record, for log aggregation.
	FormatJSON = "json"
	// FormatText emits logfmt-style records.
	FormatText = "text"
	// FormatConsole emits colorized human-readable records for local runs.
	FormatConsole = "console"
)

// NewJSONHandler creates a new JSON log handler with the specified output and level.
// JSON format is ideal for structured logging in production environments.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// NewTextHandler creates a new text log handler with the specified output and level.
// Text format is human-readable and useful for development and debugging.
func NewTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// NewConsoleHandler creates a colorized console handler for interactive use.
func NewConsoleHandler(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}

// NewHandler selects a handler by format name. Unknown formats fall back to JSON.
func NewHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	switch strings.ToLower(format) {
	case FormatText:
		return NewTextHandler(w, level)
	case FormatConsole:
		return NewConsoleHandler(w, level)
	case FormatJSON:
		return NewJSONHandler(w, level)
	default:
		return NewJSONHandler(w, level)
	}
}

// NewLogger builds a *slog.Logger writing to stderr with the given format and
// level name. It is the single construction point used by the CLI so every
// component logs through the same handler.
func NewLogger(format, level string) *slog.Logger {
	return slog.New(NewHandler(format, os.Stderr, ParseLevel(level)))
}

// ParseLevel maps a config-file level name to a slog.Level.
// Unknown names default to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
