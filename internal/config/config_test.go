package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test Core defaults
	assert.NotEmpty(t, cfg.Core.HomeDir, "HomeDir should not be empty")
	assert.Contains(t, cfg.Core.HomeDir, ".planwise", "HomeDir should contain .planwise")
	assert.Equal(t, filepath.Join(cfg.Core.HomeDir, "data"), cfg.Core.DataDir)
	assert.False(t, cfg.Core.Debug)

	// Test Database defaults
	assert.Equal(t, filepath.Join(cfg.Core.HomeDir, "data", "simulation.db"), cfg.Database.Path)
	assert.Equal(t, 4, cfg.Database.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.Database.Timeout)
	assert.True(t, cfg.Database.WALMode)

	// Test Engine defaults
	assert.Equal(t, "dbt", cfg.Engine.Command)
	assert.Equal(t, "dbt", cfg.Engine.ProjectDir)
	assert.Equal(t, "dev", cfg.Engine.Target)
	assert.Equal(t, 4, cfg.Engine.Threads)
	assert.Equal(t, 30, cfg.Engine.MaxStartsPerMinute)

	// Test Checkpoint defaults
	assert.Equal(t, filepath.Join(cfg.Core.HomeDir, "data", "checkpoints"), cfg.Checkpoints.Dir)
	assert.Equal(t, 30*24*time.Hour, cfg.Checkpoints.Retention)

	// Test Resilience defaults
	assert.Equal(t, 3, cfg.Resilience.Retry.MaxAttempts)
	assert.Equal(t, 1*time.Second, cfg.Resilience.Retry.BaseDelay)
	assert.Equal(t, 60*time.Second, cfg.Resilience.Retry.MaxDelay)
	assert.Equal(t, 2.0, cfg.Resilience.Retry.Multiplier)
	assert.Equal(t, 5, cfg.Resilience.Breaker.FailureThreshold)
	assert.Equal(t, 2, cfg.Resilience.Breaker.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cfg.Resilience.Breaker.RecoveryTimeout)
	assert.Equal(t, 60*time.Second, cfg.Resilience.InitTimeout)

	// Test Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Defaults must pass their own validation
	require.NoError(t, NewValidator().Validate(cfg))
}

func TestLoadValidConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
core:
  home_dir: /tmp/planwise-test
  data_dir: /tmp/planwise-test/data
  debug: true

database:
  path: /tmp/planwise-test/simulation.db
  max_connections: 8
  timeout: 1m
  wal_mode: true

engine:
  command: dbt
  project_dir: /tmp/planwise-test/dbt
  target: ci
  threads: 8
  max_starts_per_minute: 10

simulation:
  fail_on_validation_error: true

checkpoints:
  dir: /tmp/planwise-test/checkpoints
  retention: 168h

resilience:
  retry:
    max_attempts: 5
    base_delay: 2s
    max_delay: 30s
    multiplier: 2.0
    jitter_bound: 250ms
  breaker:
    failure_threshold: 3
    success_threshold: 1
    recovery_timeout: 10s
    half_open_max_probes: 1
  init_timeout: 90s

logging:
  level: debug
  format: text
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Load the config
	validator := NewValidator()
	loader := NewConfigLoader(validator)
	cfg, err := loader.Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify loaded values
	assert.Equal(t, "/tmp/planwise-test", cfg.Core.HomeDir)
	assert.Equal(t, "/tmp/planwise-test/data", cfg.Core.DataDir)
	assert.True(t, cfg.Core.Debug)

	assert.Equal(t, "/tmp/planwise-test/simulation.db", cfg.Database.Path)
	assert.Equal(t, 8, cfg.Database.MaxConnections)
	assert.Equal(t, 1*time.Minute, cfg.Database.Timeout)

	assert.Equal(t, "dbt", cfg.Engine.Command)
	assert.Equal(t, "/tmp/planwise-test/dbt", cfg.Engine.ProjectDir)
	assert.Equal(t, "ci", cfg.Engine.Target)
	assert.Equal(t, 8, cfg.Engine.Threads)
	assert.Equal(t, 10, cfg.Engine.MaxStartsPerMinute)

	assert.True(t, cfg.Simulation.FailOnValidationError)

	assert.Equal(t, "/tmp/planwise-test/checkpoints", cfg.Checkpoints.Dir)
	assert.Equal(t, 168*time.Hour, cfg.Checkpoints.Retention)

	assert.Equal(t, 5, cfg.Resilience.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Resilience.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Resilience.Retry.MaxDelay)
	assert.Equal(t, 3, cfg.Resilience.Breaker.FailureThreshold)
	assert.Equal(t, 90*time.Second, cfg.Resilience.InitTimeout)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadWithEnvironmentVariableInterpolation(t *testing.T) {
	// Set test environment variables
	os.Setenv("PLANWISE_TEST_HOME", "/custom/planwise")
	os.Setenv("PLANWISE_TEST_DB", "/custom/planwise/sim.db")
	os.Setenv("PLANWISE_TEST_ENGINE", "/opt/dbt/bin/dbt")
	defer func() {
		os.Unsetenv("PLANWISE_TEST_HOME")
		os.Unsetenv("PLANWISE_TEST_DB")
		os.Unsetenv("PLANWISE_TEST_ENGINE")
	}()

	// Create a temporary config file with environment variables
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
core:
  home_dir: ${PLANWISE_TEST_HOME}
  data_dir: ${PLANWISE_TEST_HOME}/data

database:
  path: ${PLANWISE_TEST_DB}
  max_connections: 4
  timeout: 30s
  wal_mode: true

engine:
  command: ${PLANWISE_TEST_ENGINE}
  project_dir: ${PLANWISE_TEST_HOME}/dbt
  target: dev
  threads: 4
  max_starts_per_minute: 30

resilience:
  retry:
    max_attempts: 3
    base_delay: 1s
    max_delay: 60s
    multiplier: 2.0
  breaker:
    failure_threshold: 5
    success_threshold: 2
    recovery_timeout: 30s
    half_open_max_probes: 1
  init_timeout: 60s

logging:
  level: info
  format: json
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Load the config
	validator := NewValidator()
	loader := NewConfigLoader(validator)
	cfg, err := loader.Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify environment variable interpolation
	assert.Equal(t, "/custom/planwise", cfg.Core.HomeDir)
	assert.Equal(t, "/custom/planwise/data", cfg.Core.DataDir)
	assert.Equal(t, "/custom/planwise/sim.db", cfg.Database.Path)
	assert.Equal(t, "/opt/dbt/bin/dbt", cfg.Engine.Command)
	assert.Equal(t, "/custom/planwise/dbt", cfg.Engine.ProjectDir)
}

func TestLoadWithMissingEnvironmentVariables(t *testing.T) {
	// Unresolvable ${VAR} references stay literal rather than becoming empty
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
core:
  home_dir: ${PLANWISE_NONEXISTENT_VAR}

database:
  path: /tmp/sim.db
  max_connections: 4
  timeout: 30s

engine:
  command: dbt
  threads: 4
  max_starts_per_minute: 30

resilience:
  retry:
    max_attempts: 3
    base_delay: 1s
    max_delay: 60s
    multiplier: 2.0
  breaker:
    failure_threshold: 5
    success_threshold: 2
    recovery_timeout: 30s
    half_open_max_probes: 1
  init_timeout: 60s
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	validator := NewValidator()
	loader := NewConfigLoader(validator)
	cfg, err := loader.Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "${PLANWISE_NONEXISTENT_VAR}", cfg.Core.HomeDir)
}

func TestLoadMissingFile(t *testing.T) {
	validator := NewValidator()
	loader := NewConfigLoader(validator)

	_, err := loader.Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadWithDefaultsMissingFile(t *testing.T) {
	validator := NewValidator()
	loader := NewConfigLoader(validator)

	cfg, err := loader.LoadWithDefaults(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "dbt", cfg.Engine.Command)
	assert.Equal(t, 3, cfg.Resilience.Retry.MaxAttempts)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantMsg string
	}{
		{
			name:    "zero engine threads",
			mutate:  func(cfg *Config) { cfg.Engine.Threads = 0 },
			wantMsg: "engine.threads",
		},
		{
			name:    "empty engine command",
			mutate:  func(cfg *Config) { cfg.Engine.Command = "" },
			wantMsg: "engine.command",
		},
		{
			name:    "retry attempts over cap",
			mutate:  func(cfg *Config) { cfg.Resilience.Retry.MaxAttempts = 100 },
			wantMsg: "resilience.retry.max_attempts",
		},
		{
			name:    "multiplier below one",
			mutate:  func(cfg *Config) { cfg.Resilience.Retry.Multiplier = 0.5 },
			wantMsg: "resilience.retry.multiplier",
		},
		{
			name:    "unknown log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantMsg: "logging.level",
		},
		{
			name:    "max delay below base delay",
			mutate:  func(cfg *Config) { cfg.Resilience.Retry.MaxDelay = 500 * time.Millisecond },
			wantMsg: "max_delay",
		},
		{
			name: "windowed breaker without min requests",
			mutate: func(cfg *Config) {
				cfg.Resilience.Breaker.FailureRateThreshold = 0.5
				cfg.Resilience.Breaker.MinRequests = 0
			},
			wantMsg: "min_requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := NewValidator().Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDigest(t *testing.T) {
	cfg := DefaultConfig()

	d1, err := Digest(cfg)
	require.NoError(t, err)
	assert.Len(t, d1, 64, "digest should be a sha256 hex string")

	// Same config, same digest
	d2, err := Digest(cfg)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	// Changed config, different digest
	cfg.Engine.Threads = cfg.Engine.Threads + 1
	d3, err := Digest(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestDigestNilConfig(t *testing.T) {
	_, err := Digest(nil)
	assert.Error(t, err)
}
