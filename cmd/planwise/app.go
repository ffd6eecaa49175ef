package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/crzyc98/planwise-navigator-sub019/cmd/planwise/internal"
	"github.com/crzyc98/planwise-navigator-sub019/internal/bootstrap"
	"github.com/crzyc98/planwise-navigator-sub019/internal/checkpoint"
	"github.com/crzyc98/planwise-navigator-sub019/internal/config"
	"github.com/crzyc98/planwise-navigator-sub019/internal/database"
	"github.com/crzyc98/planwise-navigator-sub019/internal/engine"
	"github.com/crzyc98/planwise-navigator-sub019/internal/resilience"
)

// parseYearRange parses a "<start>-<end>" argument like "2025-2029". A bare
// year runs a single-year simulation.
func parseYearRange(arg string) (int, int, error) {
	parse := func(s string) (int, error) {
		year, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("invalid year %q", s)
		}
		if year < 1900 || year > 9999 {
			return 0, fmt.Errorf("year %d out of range", year)
		}
		return year, nil
	}

	start, end, found := strings.Cut(arg, "-")
	startYear, err := parse(start)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return startYear, startYear, nil
	}

	endYear, err := parse(end)
	if err != nil {
		return 0, 0, err
	}
	if startYear > endYear {
		return 0, 0, fmt.Errorf("start year %d is after end year %d", startYear, endYear)
	}
	return startYear, endYear, nil
}

// openDatabase opens the configured simulation database.
func openDatabase() (*database.DB, error) {
	cfg := database.DefaultConfig(appConfig.Database.Path)
	cfg.MaxOpenConns = appConfig.Database.MaxConnections
	cfg.BusyTimeout = appConfig.Database.Timeout
	db, err := database.OpenWithConfig(cfg)
	if err != nil {
		return nil, internal.WrapError(internal.ExitDatabaseError, "failed to open simulation database", err)
	}
	return db, nil
}

// newEngineRunner builds the transformation engine subprocess runner.
// threads > 0 overrides the configured engine parallelism.
func newEngineRunner(threads int) *engine.Runner {
	if threads <= 0 {
		threads = appConfig.Engine.Threads
	}
	return engine.NewRunner(engine.RunnerConfig{
		Command:            appConfig.Engine.Command,
		ProjectDir:         appConfig.Engine.ProjectDir,
		ProfilesDir:        appConfig.Engine.ProfilesDir,
		Target:             appConfig.Engine.Target,
		Threads:            threads,
		MaxStartsPerMinute: appConfig.Engine.MaxStartsPerMinute,
	}, appLogger)
}

// newCheckpointManager opens the configured checkpoint directory.
func newCheckpointManager() (*checkpoint.Manager, error) {
	mgr, err := checkpoint.NewManager(appConfig.Checkpoints.Dir, appLogger)
	if err != nil {
		return nil, internal.WrapError(internal.ExitError, "failed to open checkpoint directory", err)
	}
	return mgr, nil
}

// newRetrier builds the retry handler from the configured policy.
func newRetrier() *resilience.Retrier {
	r := appConfig.Resilience.Retry
	return resilience.NewRetrier(resilience.RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		Multiplier:  r.Multiplier,
		JitterBound: r.JitterBound,
	}, nil, appLogger)
}

// newBreaker builds the shared per-operation circuit breaker.
func newBreaker() *resilience.CircuitBreaker {
	b := appConfig.Resilience.Breaker
	return resilience.NewCircuitBreaker(resilience.BreakerConfig{
		FailureThreshold:     b.FailureThreshold,
		SuccessThreshold:     b.SuccessThreshold,
		RecoveryTimeout:      b.RecoveryTimeout,
		HalfOpenMaxProbes:    b.HalfOpenMaxProbes,
		MinRequests:          b.MinRequests,
		FailureRateThreshold: b.FailureRateThreshold,
		WindowDuration:       b.WindowDuration,
	})
}

// newInitializer builds the auto initializer over the given database.
func newInitializer(db *database.DB, eng engine.TransformationEngine) *bootstrap.Initializer {
	timeout := appConfig.Resilience.InitTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return bootstrap.NewInitializer(db, eng, newRetrier(), newBreaker(), bootstrap.InitializerConfig{
		LockDir: appConfig.Core.DataDir,
		Timeout: timeout,
	}, appLogger)
}

// configDigest returns the digest of the active configuration, or empty when
// it cannot be computed.
func configDigest() string {
	digest, err := config.Digest(appConfig)
	if err != nil {
		return ""
	}
	return digest
}
