package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := DefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir: homeDir,
			DataDir: filepath.Join(homeDir, "data"),
			Debug:   false,
		},
		Database: DBConfig{
			Path:           filepath.Join(homeDir, "data", "simulation.db"),
			MaxConnections: 4,
			Timeout:        30 * time.Second,
			WALMode:        true,
		},
		Engine: EngineConfig{
			Command:            "dbt",
			ProjectDir:         "dbt",
			ProfilesDir:        "",
			Target:             "dev",
			Threads:            4,
			MaxStartsPerMinute: 30,
		},
		Simulation: SimulationConfig{
			FailOnValidationError: false,
		},
		Checkpoints: CheckpointConfig{
			Dir:       filepath.Join(homeDir, "data", "checkpoints"),
			Retention: 30 * 24 * time.Hour,
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   1 * time.Second,
				MaxDelay:    60 * time.Second,
				Multiplier:  2.0,
				JitterBound: 500 * time.Millisecond,
			},
			Breaker: BreakerConfig{
				FailureThreshold:     5,
				SuccessThreshold:     2,
				RecoveryTimeout:      30 * time.Second,
				HalfOpenMaxProbes:    1,
				MinRequests:          10,
				FailureRateThreshold: 0,
				WindowDuration:       1 * time.Minute,
			},
			InitTimeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultHomeDir returns the default navigator home directory (~/.planwise).
func DefaultHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp directory if home cannot be determined
		return filepath.Join(os.TempDir(), ".planwise")
	}
	return filepath.Join(homeDir, ".planwise")
}

// DefaultConfigPath returns the default configuration file path inside the
// given home directory.
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}
