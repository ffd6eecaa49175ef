package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/crzyc98/planwise-navigator-sub019/internal/database"
	"github.com/crzyc98/planwise-navigator-sub019/internal/engine"
	"github.com/crzyc98/planwise-navigator-sub019/internal/observability"
	"github.com/crzyc98/planwise-navigator-sub019/internal/resilience"
	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// Initialization lifecycle states.
type initState string

const (
	StateNotStarted initState = "NOT_STARTED"
	StateInProgress initState = "IN_PROGRESS"
	StateCompleted  initState = "COMPLETED"
	StateFailed     initState = "FAILED"
)

type initTrigger string

const (
	triggerBegin    initTrigger = "Begin"
	triggerComplete initTrigger = "Complete"
	triggerFail     initTrigger = "Fail"
)

// Engine operation keys used for retry and breaker accounting.
const (
	opSeedLoad        = "engine.seed_load"
	opFoundationBuild = "engine.foundation_build"
)

// InitializerConfig contains initialization settings.
type InitializerConfig struct {
	// LockDir is the directory guarded by the initialization lock,
	// normally the data directory holding the database file.
	LockDir string

	// Timeout is the wall-clock ceiling over the entire sequence, not per
	// sub-step. Zero means 60 seconds.
	Timeout time.Duration
}

// Status reports what the database currently has and lacks.
type Status struct {
	Initialized       bool     `json:"initialized"`
	MissingSeeds      []string `json:"missing_seeds,omitempty"`
	MissingFoundation []string `json:"missing_foundation,omitempty"`
}

// Result reports what EnsureInitialized did.
type Result struct {
	AlreadyInitialized bool
	SeedLoaded         bool
	FoundationBuilt    bool
	Duration           time.Duration
}

// Initializer drives the database to the initialized state. It is safe to
// call from concurrent processes: a directory flock serializes builders, and
// a completed database short-circuits without taking the lock.
type Initializer struct {
	db      *database.DB
	catalog *database.Catalog
	eng     engine.TransformationEngine
	retrier *resilience.Retrier
	breaker *resilience.CircuitBreaker
	steps   *observability.StepLogger
	logger  *slog.Logger
	cfg     InitializerConfig
	fsm     *stateless.StateMachine
}

// NewInitializer creates an initializer. A nil retrier or breaker falls back
// to package defaults.
func NewInitializer(db *database.DB, eng engine.TransformationEngine, retrier *resilience.Retrier, breaker *resilience.CircuitBreaker, cfg InitializerConfig, logger *slog.Logger) *Initializer {
	if retrier == nil {
		retrier = resilience.NewRetrier(resilience.DefaultRetryPolicy(), nil, logger)
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.DefaultBreakerConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	fsm := stateless.NewStateMachine(StateNotStarted)
	fsm.Configure(StateNotStarted).
		Permit(triggerBegin, StateInProgress)
	fsm.Configure(StateInProgress).
		Permit(triggerComplete, StateCompleted).
		Permit(triggerFail, StateFailed)
	fsm.Configure(StateCompleted).
		Permit(triggerBegin, StateInProgress)
	fsm.Configure(StateFailed).
		Permit(triggerBegin, StateInProgress)

	return &Initializer{
		db:      db,
		catalog: database.NewCatalog(db),
		eng:     eng,
		retrier: retrier,
		breaker: breaker,
		steps:   observability.NewStepLogger(logger),
		logger:  logger,
		cfg:     cfg,
		fsm:     fsm,
	}
}

// State returns the current lifecycle state.
func (i *Initializer) State() initState {
	return i.fsm.MustState().(initState)
}

// CheckOnly inspects the database without taking the lock or running any
// engine command. Used by dry-run and status reporting.
func (i *Initializer) CheckOnly(ctx context.Context) (*Status, error) {
	if err := i.db.ProbeCorruption(ctx); err != nil {
		return nil, err
	}

	missingSeeds, err := i.catalog.MissingByTier(ctx, database.TierSeed)
	if err != nil {
		return nil, err
	}
	missingFoundation, err := i.catalog.MissingByTier(ctx, database.TierFoundation)
	if err != nil {
		return nil, err
	}

	return &Status{
		Initialized:       len(missingSeeds) == 0 && len(missingFoundation) == 0,
		MissingSeeds:      missingSeeds,
		MissingFoundation: missingFoundation,
	}, nil
}

// EnsureInitialized brings the database to the initialized state, doing only
// the work that is actually missing. Completed databases return immediately.
func (i *Initializer) EnsureInitialized(ctx context.Context) (*Result, error) {
	start := time.Now()

	initCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	// Fast path: a complete healthy database needs no lock
	status, err := i.CheckOnly(initCtx)
	if err != nil {
		return nil, i.fail(initCtx, err)
	}
	if status.Initialized {
		return &Result{AlreadyInitialized: true, Duration: time.Since(start)}, nil
	}

	if err := i.fsm.Fire(triggerBegin); err != nil {
		return nil, fmt.Errorf("initialization already running: %w", err)
	}

	lock, err := AcquireDirLock(i.cfg.LockDir)
	if err != nil {
		return nil, i.fail(initCtx, err)
	}
	defer lock.Release()

	result, err := i.build(initCtx)
	if err != nil {
		return nil, i.fail(initCtx, err)
	}

	if err := i.fsm.Fire(triggerComplete); err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// build runs the initialization sequence under the lock.
func (i *Initializer) build(ctx context.Context) (*Result, error) {
	result := &Result{}

	// Re-check under the lock: another process may have finished the build
	// between our fast-path check and lock acquisition
	status, err := i.CheckOnly(ctx)
	if err != nil {
		return nil, err
	}
	if status.Initialized {
		result.AlreadyInitialized = true
		return result, nil
	}

	if len(status.MissingSeeds) > 0 {
		err := i.steps.Run(ctx, observability.EventInitialization, "seed_load", func(ctx context.Context) error {
			return i.runEngineOp(ctx, opSeedLoad, func(ctx context.Context) error {
				_, err := i.eng.LoadReferenceData(ctx, true)
				return err
			})
		}, slog.Any("missing_tables", status.MissingSeeds))
		if err != nil {
			return nil, err
		}
		result.SeedLoaded = true
	}

	missingFoundation, err := i.catalog.MissingByTier(ctx, database.TierFoundation)
	if err != nil {
		return nil, err
	}
	if len(missingFoundation) > 0 {
		err := i.steps.Run(ctx, observability.EventInitialization, "foundation_build", func(ctx context.Context) error {
			return i.runEngineOp(ctx, opFoundationBuild, func(ctx context.Context) error {
				_, err := i.eng.RunJobs(ctx, database.SelectorFoundation, nil)
				return err
			})
		}, slog.Any("missing_tables", missingFoundation))
		if err != nil {
			return nil, err
		}
		result.FoundationBuilt = true
	}

	// The engine reported success; verify it actually materialized
	// everything the registry requires
	missing, err := i.catalog.MissingTables(ctx)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for n, rt := range missing {
			names[n] = rt.Name
		}
		return nil, types.NewError(types.INIT_INCOMPLETE,
			fmt.Sprintf("initialization ran but tables are still missing: %s", strings.Join(names, ", ")))
	}

	return result, nil
}

// runEngineOp executes one engine operation with retry wrapping the circuit
// breaker, so retry attempts are visible to breaker accounting.
func (i *Initializer) runEngineOp(ctx context.Context, key string, fn func(context.Context) error) error {
	return i.retrier.Execute(ctx, key, func(ctx context.Context) error {
		return i.breaker.Do(ctx, key, fn)
	})
}

// fail records the failed state and maps a deadline overrun to INIT_TIMEOUT.
func (i *Initializer) fail(ctx context.Context, err error) error {
	if i.State() == StateInProgress {
		_ = i.fsm.Fire(triggerFail)
	}

	if ctx.Err() == context.DeadlineExceeded {
		return types.WrapError(types.INIT_TIMEOUT,
			fmt.Sprintf("initialization exceeded %s", i.cfg.Timeout), err)
	}
	return err
}
