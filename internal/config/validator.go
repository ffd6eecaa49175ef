package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ConfigValidator validates configuration values.
type ConfigValidator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements ConfigValidator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a new ConfigValidator instance.
func NewValidator() ConfigValidator {
	return &validatorImpl{
		validate: validator.New(),
	}
}

// Validate validates the configuration and returns detailed error messages.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	// Perform struct tag validation first
	err := v.validate.Struct(cfg)
	if err != nil {
		// Convert validation errors to detailed messages
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validation error: %w", err)
		}

		var errorMessages []string
		for _, e := range validationErrs {
			errorMessages = append(errorMessages, formatValidationError(e))
		}

		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}

	// Custom validation for RetryConfig
	if cfg.Resilience.Retry.MaxDelay < cfg.Resilience.Retry.BaseDelay {
		return fmt.Errorf("configuration validation failed:\n  - resilience.retry.max_delay must be at least base_delay (got: %s < %s)",
			cfg.Resilience.Retry.MaxDelay, cfg.Resilience.Retry.BaseDelay)
	}

	// Custom validation for BreakerConfig windowed mode
	if cfg.Resilience.Breaker.FailureRateThreshold > 0 {
		if cfg.Resilience.Breaker.MinRequests < 1 {
			return fmt.Errorf("configuration validation failed:\n  - resilience.breaker.min_requests must be at least 1 when failure_rate_threshold is set")
		}
		if cfg.Resilience.Breaker.WindowDuration <= 0 {
			return fmt.Errorf("configuration validation failed:\n  - resilience.breaker.window_duration must be positive when failure_rate_threshold is set")
		}
	}

	return nil
}

// formatValidationError formats a single validation error with field path and details.
func formatValidationError(e validator.FieldError) string {
	fieldPath := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldPath)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fieldPath, e.Param(), e.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got: %v)", fieldPath, e.Value())
	case "filepath":
		return fmt.Sprintf("%s must be a valid file path (got: %v)", fieldPath, e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", fieldPath, e.Tag(), e.Value())
	}
}

// formatFieldPath converts validator namespace to a more readable field path.
// Example: "Config.Engine.MaxStartsPerMinute" -> "engine.max_starts_per_minute"
func formatFieldPath(namespace string) string {
	// Remove the root struct name
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}

	// Skip the first part (struct name) and convert to lowercase with underscores
	result := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		result = append(result, camelToSnake(parts[i]))
	}

	return strings.Join(result, ".")
}

// camelToSnake converts CamelCase to snake_case.
func camelToSnake(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
