package config

import (
	"time"
)

// Config is the root configuration for the navigator.
type Config struct {
	Core        CoreConfig       `mapstructure:"core" yaml:"core" validate:"required"`
	Database    DBConfig         `mapstructure:"database" yaml:"database" validate:"required"`
	Engine      EngineConfig     `mapstructure:"engine" yaml:"engine" validate:"required"`
	Simulation  SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
	Checkpoints CheckpointConfig `mapstructure:"checkpoints" yaml:"checkpoints"`
	Resilience  ResilienceConfig `mapstructure:"resilience" yaml:"resilience"`
	Logging     LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	HomeDir string `mapstructure:"home_dir" yaml:"home_dir"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	Debug   bool   `mapstructure:"debug" yaml:"debug"`
}

// DBConfig contains settings for the embedded simulation database.
type DBConfig struct {
	Path           string        `mapstructure:"path" yaml:"path"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1,max=100"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	WALMode        bool          `mapstructure:"wal_mode" yaml:"wal_mode"`
}

// EngineConfig describes how to invoke the external SQL transformation
// engine. The engine is an opaque subprocess; the navigator only knows its
// two commands ("seed" and "run") and the project directory they operate in.
type EngineConfig struct {
	Command     string `mapstructure:"command" yaml:"command" validate:"required"`
	ProjectDir  string `mapstructure:"project_dir" yaml:"project_dir"`
	ProfilesDir string `mapstructure:"profiles_dir" yaml:"profiles_dir,omitempty"`
	Target      string `mapstructure:"target" yaml:"target"`
	Threads     int    `mapstructure:"threads" yaml:"threads" validate:"min=1,max=64"`

	// MaxStartsPerMinute bounds how often engine subprocesses may be
	// launched, so a crash-retry loop cannot hammer the host.
	MaxStartsPerMinute int `mapstructure:"max_starts_per_minute" yaml:"max_starts_per_minute" validate:"min=1"`
}

// SimulationConfig contains simulation run behavior settings.
type SimulationConfig struct {
	// FailOnValidationError makes stage validation findings abort the year
	// instead of logging warnings and continuing.
	FailOnValidationError bool `mapstructure:"fail_on_validation_error" yaml:"fail_on_validation_error"`
}

// CheckpointConfig contains checkpoint persistence settings.
type CheckpointConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`

	// Retention is the age past which checkpoints become eligible for
	// pruning. The latest resume-eligible checkpoint is always kept.
	Retention time.Duration `mapstructure:"retention" yaml:"retention" validate:"min=0"`
}

// RetryConfig contains exponential backoff settings for transient failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1,max=20"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay" validate:"min=1ms"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay" validate:"min=1ms"`
	Multiplier  float64       `mapstructure:"multiplier" yaml:"multiplier" validate:"min=1"`
	JitterBound time.Duration `mapstructure:"jitter_bound" yaml:"jitter_bound" validate:"min=0"`
}

// BreakerConfig contains circuit breaker thresholds shared by all
// per-operation breakers.
type BreakerConfig struct {
	FailureThreshold  int           `mapstructure:"failure_threshold" yaml:"failure_threshold" validate:"min=1"`
	SuccessThreshold  int           `mapstructure:"success_threshold" yaml:"success_threshold" validate:"min=1"`
	RecoveryTimeout   time.Duration `mapstructure:"recovery_timeout" yaml:"recovery_timeout" validate:"min=1ms"`
	HalfOpenMaxProbes int           `mapstructure:"half_open_max_probes" yaml:"half_open_max_probes" validate:"min=1"`

	// MinRequests and FailureRateThreshold enable the windowed mode: once at
	// least MinRequests calls were observed in the current window, a failure
	// rate at or above the threshold opens the breaker even without
	// FailureThreshold consecutive failures. A zero rate threshold disables
	// windowed tracking.
	MinRequests          int           `mapstructure:"min_requests" yaml:"min_requests" validate:"min=0"`
	FailureRateThreshold float64       `mapstructure:"failure_rate_threshold" yaml:"failure_rate_threshold" validate:"min=0,max=1"`
	WindowDuration       time.Duration `mapstructure:"window_duration" yaml:"window_duration" validate:"min=0"`
}

// ResilienceConfig groups retry, breaker, and initialization timeout settings.
type ResilienceConfig struct {
	Retry   RetryConfig   `mapstructure:"retry" yaml:"retry"`
	Breaker BreakerConfig `mapstructure:"breaker" yaml:"breaker"`

	// InitTimeout is the hard wall-clock ceiling over the entire
	// auto-initialization sequence, not per sub-step.
	InitTimeout time.Duration `mapstructure:"init_timeout" yaml:"init_timeout" validate:"min=1s"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=json text console"`
}
