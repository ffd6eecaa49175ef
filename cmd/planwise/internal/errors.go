package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitConfigError indicates a configuration error
	ExitConfigError = 10
	// ExitDatabaseError indicates a database error
	ExitDatabaseError = 12
	// ExitInitError indicates database initialization failed
	ExitInitError = 13
	// ExitValidationError indicates a stage validation failure
	ExitValidationError = 14
	// ExitLocked indicates another process holds the initialization lock
	ExitLocked = 15
)

// CLIError represents a CLI-specific error with an exit code
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a new CLIError wrapping an existing error
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewCLIError creates a new CLIError with the given code and message
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
	}
}

// HandleError handles an error and returns the appropriate exit code.
// It also prints the error message to the command's error output.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil && isVerboseFlagSet(cmd) {
			cmd.PrintErrln("Cause:", cliErr.Cause)
		}
		return cliErr.Code
	}

	var navErr *types.NavigatorError
	if errors.As(err, &navErr) {
		cmd.PrintErrln("Error:", navErr.Error())
		if isVerboseFlagSet(cmd) && len(navErr.Context) > 0 {
			cmd.PrintErrln("Context:")
			for k, v := range navErr.Context {
				cmd.PrintErrf("  %s: %v\n", k, v)
			}
		}
		return mapNavigatorErrorToExitCode(navErr)
	}

	cmd.PrintErrln("Error:", err)
	return ExitError
}

// mapNavigatorErrorToExitCode maps typed error codes to CLI exit codes.
func mapNavigatorErrorToExitCode(err *types.NavigatorError) int {
	switch err.Code {
	case types.CONFIG_LOAD_FAILED, types.CONFIG_VALIDATION_FAILED:
		return ExitConfigError
	case types.DB_OPEN_FAILED, types.DB_QUERY_FAILED, types.DB_LOCKED, types.DB_CORRUPT:
		return ExitDatabaseError
	case types.INIT_TIMEOUT, types.ENGINE_TIMEOUT:
		return ExitTimeout
	case types.INIT_LOCKED:
		return ExitLocked
	case types.INIT_INCOMPLETE:
		return ExitInitError
	case types.STAGE_VALIDATION_FAILED:
		return ExitValidationError
	default:
		return ExitError
	}
}

func isVerboseFlagSet(cmd *cobra.Command) bool {
	flag := cmd.Flag("verbose")
	return flag != nil && flag.Changed
}

// IsVerbose checks if verbose mode is enabled via environment variable or flag.
// This is used for panic recovery to determine if stack traces should be shown.
func IsVerbose() bool {
	if os.Getenv("PLANWISE_VERBOSE") != "" {
		return true
	}
	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}
	return false
}
