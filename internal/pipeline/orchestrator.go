package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crzyc98/planwise-navigator-sub019/internal/bootstrap"
	"github.com/crzyc98/planwise-navigator-sub019/internal/checkpoint"
	"github.com/crzyc98/planwise-navigator-sub019/internal/database"
	"github.com/crzyc98/planwise-navigator-sub019/internal/engine"
	"github.com/crzyc98/planwise-navigator-sub019/internal/observability"
	"github.com/crzyc98/planwise-navigator-sub019/internal/resilience"
	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// varSimulationYear is the engine variable scoping a stage run to one year.
const varSimulationYear = "simulation_year"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDryRun makes Run validation-only: no engine calls, no checkpoint
// writes, no initialization builds. Missing tables are reported, not built,
// and validators run in advisory mode.
func WithDryRun(dryRun bool) Option {
	return func(o *Orchestrator) { o.dryRun = dryRun }
}

// WithResume makes Run consult the checkpoint manager for the latest
// completed year boundary inside the requested range before starting.
func WithResume(resume bool) Option {
	return func(o *Orchestrator) { o.resume = resume }
}

// WithFailOnValidationError makes stage validation findings abort the year
// instead of logging warnings and continuing.
func WithFailOnValidationError(fail bool) Option {
	return func(o *Orchestrator) { o.failOnValidation = fail }
}

// WithConfigDigest records the run's configuration digest in checkpoint
// metadata. On resume a digest mismatch logs a drift warning but does not
// block the run.
func WithConfigDigest(digest string) Option {
	return func(o *Orchestrator) { o.configDigest = digest }
}

// WithPopulationVerifier installs the caller's population-verification hook,
// invoked by the STATE_ACCUMULATION validator.
func WithPopulationVerifier(fn PopulationVerifier) Option {
	return func(o *Orchestrator) { o.verifier = fn }
}

// YearResult summarizes one year's execution inside a run.
type YearResult struct {
	Year     int            `json:"year"`
	Status   WorkflowStatus `json:"status"`
	Stages   []Stage        `json:"stages_completed,omitempty"`
	Findings []Finding      `json:"findings,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// RunSummary is the result of one multi-year simulation run.
type RunSummary struct {
	RunID              string        `json:"run_id"`
	StartYear          int           `json:"start_year"`
	EndYear            int           `json:"end_year"`
	EffectiveStartYear int           `json:"effective_start_year"`
	Resumed            bool          `json:"resumed"`
	AlreadyComplete    bool          `json:"already_complete"`
	DryRun             bool          `json:"dry_run"`
	Cancelled          bool          `json:"cancelled"`
	Years              []YearResult  `json:"years,omitempty"`
	FinalCheckpointID  string        `json:"final_checkpoint_id,omitempty"`
	Duration           time.Duration `json:"duration"`
}

// CompletedYears returns the years that reached YEAR_COMPLETE.
func (s *RunSummary) CompletedYears() []int {
	var years []int
	for _, yr := range s.Years {
		if yr.Status == StatusCompleted {
			years = append(years, yr.Year)
		}
	}
	return years
}

// Orchestrator drives a multi-year simulation: initialization once, then for
// each year the three stages in dependency order, each gated by validation
// and recorded as checkpoints. All engine work passes through the named
// circuit breaker and retry handler. A single Orchestrator runs one
// simulation at a time on one goroutine; the breaker and checkpoint manager
// it holds may be read concurrently from monitoring paths.
type Orchestrator struct {
	db          *database.DB
	eng         engine.TransformationEngine
	initializer *bootstrap.Initializer
	checkpoints *checkpoint.Manager
	retrier     *resilience.Retrier
	breaker     *resilience.CircuitBreaker
	recovery    *resilience.RecoveryRegistry
	steps       *observability.StepLogger
	logger      *slog.Logger

	dryRun           bool
	resume           bool
	failOnValidation bool
	configDigest     string
	verifier         PopulationVerifier
}

// NewOrchestrator wires an orchestrator from its collaborators. A nil
// retrier, breaker, or recovery registry falls back to package defaults.
func NewOrchestrator(db *database.DB, eng engine.TransformationEngine, initializer *bootstrap.Initializer, checkpoints *checkpoint.Manager, retrier *resilience.Retrier, breaker *resilience.CircuitBreaker, logger *slog.Logger, opts ...Option) *Orchestrator {
	if retrier == nil {
		retrier = resilience.NewRetrier(resilience.DefaultRetryPolicy(), nil, logger)
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.DefaultBreakerConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		db:          db,
		eng:         eng,
		initializer: initializer,
		checkpoints: checkpoints,
		retrier:     retrier,
		breaker:     breaker,
		recovery:    resilience.NewRecoveryRegistry(nil),
		steps:       observability.NewStepLogger(logger),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the simulation for [startYear, endYear] inclusive. Years run
// strictly ascending; stages within a year run in topological order, each
// followed by its validation gate and a STEP_COMPLETE checkpoint. Any fatal
// error carries the year, stage, and operation it occurred in plus the
// checkpoint available for resume.
func (o *Orchestrator) Run(ctx context.Context, startYear, endYear int) (*RunSummary, error) {
	start := time.Now()

	summary := &RunSummary{
		RunID:              uuid.NewString(),
		StartYear:          startYear,
		EndYear:            endYear,
		EffectiveStartYear: startYear,
		DryRun:             o.dryRun,
	}

	if startYear > endYear {
		return summary, types.NewError(types.YEAR_RANGE_INVALID,
			fmt.Sprintf("start year %d is after end year %d", startYear, endYear))
	}

	// A broken stage graph is a startup error, caught before any engine work
	if err := ValidateGraph(Stages()); err != nil {
		return summary, err
	}
	ordered, err := TopologicalOrder(Stages())
	if err != nil {
		return summary, err
	}

	validator := NewStageValidator(database.NewCatalog(o.db), startYear, o.verifier, o.logger)

	if o.dryRun {
		err := o.runDry(ctx, summary, ordered, validator, startYear, endYear)
		summary.Duration = time.Since(start)
		return summary, err
	}

	initResult, err := o.initializer.EnsureInitialized(ctx)
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}
	if !initResult.AlreadyInitialized {
		o.logger.Info("database initialized",
			slog.Bool("seed_loaded", initResult.SeedLoaded),
			slog.Bool("foundation_built", initResult.FoundationBuilt),
			slog.Duration("duration", initResult.Duration))
	}

	if o.resume {
		done, err := o.applyResume(ctx, summary)
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		if done {
			summary.AlreadyComplete = true
			summary.Duration = time.Since(start)
			return summary, nil
		}
	}

	meta := o.runMetadata(summary)
	runStart, err := o.checkpoints.Create(ctx, checkpoint.TypeRunStart, summary.EffectiveStartYear, nil, meta)
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}
	summary.FinalCheckpointID = runStart.ID

	for year := summary.EffectiveStartYear; year <= endYear; year++ {
		if ctx.Err() != nil {
			summary.Cancelled = true
			summary.Duration = time.Since(start)
			return summary, ctx.Err()
		}

		yr, err := o.runYear(ctx, summary, ordered, validator, year)
		if yr != nil {
			summary.Years = append(summary.Years, *yr)
		}
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		if summary.Cancelled {
			summary.Duration = time.Since(start)
			return summary, ctx.Err()
		}
	}

	runComplete, err := o.checkpoints.Create(ctx, checkpoint.TypeRunComplete, endYear, map[string]any{
		"start_year":      summary.EffectiveStartYear,
		"end_year":        endYear,
		"years_completed": len(summary.CompletedYears()),
	}, meta)
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}
	summary.FinalCheckpointID = runComplete.ID
	summary.Duration = time.Since(start)

	// Fold the WAL into the main file so downstream analysis tools get a
	// self-contained database. Best effort: the run itself succeeded.
	if err := o.db.FlushWAL(ctx); err != nil {
		o.logger.Warn("post-run WAL flush failed", slog.String("error", err.Error()))
	}

	o.logger.Info("simulation run complete",
		slog.String("run_id", summary.RunID),
		slog.Int("start_year", summary.EffectiveStartYear),
		slog.Int("end_year", endYear),
		slog.Duration("duration", summary.Duration))

	return summary, nil
}

// runYear executes one year's workflow: YEAR_START checkpoint, every stage in
// order with its validation gate and STEP_COMPLETE checkpoint, then
// YEAR_COMPLETE. Cancellation is honored at stage boundaries only, so the
// in-flight stage finishes and is checkpointed before the run exits.
func (o *Orchestrator) runYear(ctx context.Context, summary *RunSummary, ordered []Definition, validator *StageValidator, year int) (*YearResult, error) {
	yearStart := time.Now()
	wf := NewYearWorkflow(year, ordered)
	result := &YearResult{Year: year, Status: wf.Status()}

	meta := o.runMetadata(summary)
	cp, err := o.checkpoints.Create(ctx, checkpoint.TypeYearStart, year, nil, meta)
	if err != nil {
		return result, err
	}
	summary.FinalCheckpointID = cp.ID

	if err := wf.Start(); err != nil {
		result.Status = wf.Status()
		return result, err
	}

	for {
		def, ok := wf.CurrentStage()
		if !ok {
			break
		}

		if ctx.Err() != nil {
			_ = wf.Cancel()
			result.Status = wf.Status()
			result.Duration = time.Since(yearStart)
			summary.Cancelled = true
			o.logger.Info("run cancelled at stage boundary",
				slog.Int("year", year),
				slog.String("next_stage", string(def.Name)))
			return result, nil
		}

		vr, err := o.runStage(ctx, validator, def, year)
		if vr != nil {
			result.Findings = append(result.Findings, vr.Findings...)
		}
		if err != nil {
			_ = wf.Fail()
			result.Status = wf.Status()
			result.Duration = time.Since(yearStart)
			return result, o.fatalStageError(ctx, summary, year, def, err)
		}

		if err := wf.Advance(); err != nil {
			result.Status = wf.Status()
			result.Duration = time.Since(yearStart)
			return result, err
		}
		result.Stages = append(result.Stages, def.Name)

		cp, err := o.checkpoints.Create(ctx, checkpoint.TypeStepComplete, year, map[string]any{
			"stage":       string(def.Name),
			"stage_index": wf.StageIndex() - 1,
		}, meta)
		if err != nil {
			_ = wf.Fail()
			result.Status = wf.Status()
			result.Duration = time.Since(yearStart)
			return result, err
		}
		summary.FinalCheckpointID = cp.ID
	}

	if err := wf.Complete(); err != nil {
		result.Status = wf.Status()
		return result, err
	}

	cp, err = o.checkpoints.Create(ctx, checkpoint.TypeYearComplete, year, map[string]any{
		"stages": len(ordered),
	}, meta)
	if err != nil {
		return result, err
	}
	summary.FinalCheckpointID = cp.ID

	result.Status = wf.Status()
	result.Duration = time.Since(yearStart)
	return result, nil
}

// runStage executes one stage's engine work through the named breaker and
// retry handler, then runs its validation gate. The engine call and the gate
// together are logged as one step record. Cancellation is honored at stage
// boundaries only, so the stage runs detached from the caller's cancel
// signal and is allowed to finish once started.
func (o *Orchestrator) runStage(ctx context.Context, validator *StageValidator, def Definition, year int) (*ValidationResult, error) {
	op := def.Name.Operation()
	var vr *ValidationResult
	ctx = context.WithoutCancel(ctx)

	err := o.steps.Run(ctx, observability.EventStage, string(def.Name), func(ctx context.Context) error {
		err := o.retrier.Execute(ctx, op, func(ctx context.Context) error {
			return o.breaker.Do(ctx, op, func(ctx context.Context) error {
				_, err := o.eng.RunJobs(ctx, def.Selector, map[string]any{varSimulationYear: year})
				return err
			})
		})
		if err != nil {
			return err
		}

		vr, err = validator.ValidateStage(ctx, def.Name, year, o.failOnValidation)
		return err
	}, slog.Int("year", year), slog.String("operation", op))

	return vr, err
}

// fatalStageError writes the ERROR checkpoint for an unrecoverable stage
// failure and wraps the error with the year, stage, operation, recovery
// hint, and resume checkpoint context the operator needs.
func (o *Orchestrator) fatalStageError(ctx context.Context, summary *RunSummary, year int, def Definition, cause error) error {
	decision := o.recovery.DecisionFor(cause)

	meta := o.runMetadata(summary)
	meta["year"] = fmt.Sprintf("%d", year)
	meta["stage"] = string(def.Name)
	meta["operation"] = def.Name.Operation()
	meta["error"] = cause.Error()
	meta["recovery_action"] = string(decision.Action)
	meta["recovery_hint"] = decision.Hint

	// The error checkpoint must land even under a cancelled context so the
	// failure context survives the process
	cp, cpErr := o.checkpoints.Create(ctx, checkpoint.TypeError, year, nil, meta)
	if cpErr != nil {
		o.logger.Error("failed to write error checkpoint",
			slog.Int("year", year),
			slog.String("stage", string(def.Name)),
			slog.String("error", cpErr.Error()))
	} else {
		summary.FinalCheckpointID = cp.ID
	}

	wrapped := types.WrapError(types.STAGE_EXECUTION_FAILED,
		fmt.Sprintf("year %d stage %s failed: %s", year, def.Name, decision.Hint), cause).
		WithContext("year", year).
		WithContext("stage", string(def.Name)).
		WithContext("operation", def.Name.Operation()).
		WithContext("recovery_action", string(decision.Action))
	if cp != nil {
		wrapped = wrapped.WithContext("error_checkpoint_id", cp.ID)
	}
	if code, ok := types.CodeOf(cause); ok && code == types.STAGE_VALIDATION_FAILED {
		// Keep the validation code visible to exit-code mapping
		wrapped.Code = types.STAGE_VALIDATION_FAILED
	}
	return wrapped
}

// applyResume moves the effective start year past the latest completed
// boundary inside the requested range. Returns true when the range is
// already complete and no work remains.
func (o *Orchestrator) applyResume(ctx context.Context, summary *RunSummary) (bool, error) {
	year, cp, err := o.checkpoints.ResumeCheckpoint(ctx, summary.StartYear, summary.EndYear)
	if err != nil {
		return false, err
	}
	if cp == nil {
		o.logger.Info("no resume checkpoint found, starting from the beginning",
			slog.Int("start_year", summary.StartYear))
		return false, nil
	}

	summary.Resumed = true
	summary.FinalCheckpointID = cp.ID

	if o.configDigest != "" {
		if prev := cp.Metadata[checkpoint.MetadataConfigDigest]; prev != "" && prev != o.configDigest {
			o.logger.Warn("configuration changed since checkpoint was written",
				slog.String("checkpoint_id", cp.ID),
				slog.String("checkpoint_digest", prev),
				slog.String("current_digest", o.configDigest))
		}
	}

	// A RUN_COMPLETE from an earlier, shorter run still only proves years
	// through cp.Year are done; a wider range continues past it
	if year+1 > summary.EndYear {
		o.logger.Info("requested range already complete",
			slog.Int("start_year", summary.StartYear),
			slog.Int("end_year", summary.EndYear),
			slog.String("checkpoint_id", cp.ID))
		return true, nil
	}

	summary.EffectiveStartYear = year + 1
	o.logger.Info("resuming from checkpoint",
		slog.String("checkpoint_id", cp.ID),
		slog.Int("completed_through", year),
		slog.Int("effective_start_year", summary.EffectiveStartYear))
	return false, nil
}

// runDry walks the range running only the validation gates: no engine calls,
// no checkpoint writes, no initialization builds. Validators run in advisory
// mode so findings are reported without aborting.
func (o *Orchestrator) runDry(ctx context.Context, summary *RunSummary, ordered []Definition, validator *StageValidator, startYear, endYear int) error {
	status, err := o.initializer.CheckOnly(ctx)
	if err != nil {
		return err
	}
	if !status.Initialized {
		o.logger.Warn("database is not initialized; dry run reports what is missing",
			slog.Any("missing_seeds", status.MissingSeeds),
			slog.Any("missing_foundation", status.MissingFoundation))
	}

	for year := startYear; year <= endYear; year++ {
		if err := ctx.Err(); err != nil {
			summary.Cancelled = true
			return err
		}

		result := YearResult{Year: year, Status: StatusCompleted}
		for _, def := range ordered {
			vr, err := validator.ValidateStage(ctx, def.Name, year, false)
			if err != nil {
				return err
			}
			result.Findings = append(result.Findings, vr.Findings...)
			result.Stages = append(result.Stages, def.Name)
		}
		summary.Years = append(summary.Years, result)
	}
	return nil
}

// runMetadata returns the metadata map stamped on every checkpoint.
func (o *Orchestrator) runMetadata(summary *RunSummary) map[string]string {
	meta := map[string]string{
		"run_id": summary.RunID,
	}
	if o.configDigest != "" {
		meta[checkpoint.MetadataConfigDigest] = o.configDigest
	}
	return meta
}
