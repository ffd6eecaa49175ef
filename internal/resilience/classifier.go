// Package resilience provides failure handling for pipeline operations.
//
// It classifies errors by severity, category, and retryability, retries
// transient failures with exponential backoff, and isolates repeatedly
// failing operations behind per-operation circuit breakers.
package resilience

import (
	"errors"
	"strings"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// Classification describes how a failure should be treated.
type Classification struct {
	Severity  types.Severity
	Category  types.Category
	Retryable bool
}

// messagePattern maps an error message substring to a classification. Used
// for errors that arrive untyped from drivers and subprocesses.
type messagePattern struct {
	substring string
	class     Classification
}

// Classifier assigns a severity, category, and retryability to any error.
// Typed errors are classified by code; untyped errors fall back to message
// patterns, then to a conservative default.
type Classifier struct {
	byCode   map[types.ErrorCode]Classification
	patterns []messagePattern
	fallback Classification
}

// NewClassifier creates a classifier with the built-in rules.
func NewClassifier() *Classifier {
	return &Classifier{
		byCode: map[types.ErrorCode]Classification{
			types.CONFIG_LOAD_FAILED:       {types.SeverityError, types.CategoryConfiguration, false},
			types.CONFIG_VALIDATION_FAILED: {types.SeverityError, types.CategoryConfiguration, false},

			types.DB_OPEN_FAILED:  {types.SeverityError, types.CategoryDatabase, false},
			types.DB_QUERY_FAILED: {types.SeverityError, types.CategoryDatabase, false},
			types.DB_LOCKED:       {types.SeverityRecoverable, types.CategoryDatabase, true},
			types.DB_CORRUPT:      {types.SeverityCritical, types.CategoryDatabase, false},

			types.ENGINE_SPAWN_FAILED:     {types.SeverityError, types.CategoryConfiguration, false},
			types.ENGINE_EXECUTION_FAILED: {types.SeverityRecoverable, types.CategoryDependency, true},
			types.ENGINE_TIMEOUT:          {types.SeverityRecoverable, types.CategoryDependency, true},

			types.INIT_INCOMPLETE: {types.SeverityCritical, types.CategoryDependency, false},
			types.INIT_TIMEOUT:    {types.SeverityCritical, types.CategoryDependency, false},
			types.INIT_LOCKED:     {types.SeverityError, types.CategoryState, false},

			types.CHECKPOINT_WRITE_FAILED: {types.SeverityRecoverable, types.CategoryResource, true},
			types.CHECKPOINT_READ_FAILED:  {types.SeverityError, types.CategoryState, false},
			types.CHECKPOINT_CORRUPT:      {types.SeverityError, types.CategoryState, false},

			types.STAGE_EXECUTION_FAILED:  {types.SeverityError, types.CategoryDependency, false},
			types.STAGE_VALIDATION_FAILED: {types.SeverityError, types.CategoryDataQuality, false},
			types.STAGE_GRAPH_INVALID:     {types.SeverityCritical, types.CategoryConfiguration, false},
			types.YEAR_RANGE_INVALID:      {types.SeverityError, types.CategoryConfiguration, false},

			types.CIRCUIT_OPEN:       {types.SeverityError, types.CategoryDependency, false},
			types.RETRY_EXHAUSTED:    {types.SeverityError, types.CategoryDependency, false},
			types.RESOURCE_EXHAUSTED: {types.SeverityRecoverable, types.CategoryResource, true},
		},
		// Order matters: first match wins.
		patterns: []messagePattern{
			{"database is locked", Classification{types.SeverityRecoverable, types.CategoryDatabase, true}},
			{"database table is locked", Classification{types.SeverityRecoverable, types.CategoryDatabase, true}},
			{"database disk image is malformed", Classification{types.SeverityCritical, types.CategoryDatabase, false}},
			{"file is not a database", Classification{types.SeverityCritical, types.CategoryDatabase, false}},
			{"connection refused", Classification{types.SeverityRecoverable, types.CategoryNetwork, true}},
			{"connection reset", Classification{types.SeverityRecoverable, types.CategoryNetwork, true}},
			{"timed out", Classification{types.SeverityRecoverable, types.CategoryNetwork, true}},
			{"timeout", Classification{types.SeverityRecoverable, types.CategoryNetwork, true}},
			{"no space left on device", Classification{types.SeverityRecoverable, types.CategoryResource, true}},
			{"out of memory", Classification{types.SeverityRecoverable, types.CategoryResource, true}},
			{"resource temporarily unavailable", Classification{types.SeverityRecoverable, types.CategoryResource, true}},
			{"too many open files", Classification{types.SeverityRecoverable, types.CategoryResource, true}},
			{"permission denied", Classification{types.SeverityError, types.CategoryConfiguration, false}},
			{"no such file or directory", Classification{types.SeverityError, types.CategoryConfiguration, false}},
			{"executable file not found", Classification{types.SeverityError, types.CategoryConfiguration, false}},
		},
		fallback: Classification{types.SeverityError, types.CategoryDependency, false},
	}
}

// Classify returns the classification for an error. Codes win over message
// patterns so a deliberately typed error is never reinterpreted from the
// text of its cause.
func (c *Classifier) Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}

	if code, ok := types.CodeOf(err); ok {
		if class, found := c.byCode[code]; found {
			return class
		}
		// Unknown code: trust the error's own retryable flag
		var ne *types.NavigatorError
		if errors.As(err, &ne) {
			return Classification{types.SeverityError, types.CategoryDependency, ne.Retryable}
		}
	}

	msg := strings.ToLower(err.Error())
	for _, p := range c.patterns {
		if strings.Contains(msg, p.substring) {
			return p.class
		}
	}

	return c.fallback
}

// Retryable reports whether the error classifies as transient.
func (c *Classifier) Retryable(err error) bool {
	return c.Classify(err).Retryable
}
