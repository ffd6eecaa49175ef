package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crzyc98/planwise-navigator-sub019/cmd/planwise/internal"
	"github.com/crzyc98/planwise-navigator-sub019/internal/pipeline"
)

var simulateFlags struct {
	dryRun           bool
	resume           bool
	threads          int
	failOnValidation bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <start>-<end>",
	Short: "Run a multi-year workforce simulation",
	Long: `Run the simulation pipeline for the given range of plan years.

Each year passes through the foundation, event-generation, and
state-accumulation stages in order, with a validation gate after each
stage and checkpoints at every boundary. The database is initialized
automatically on first use.

Examples:
  planwise simulate 2025-2029
  planwise simulate 2025 --dry-run
  planwise simulate 2025-2029 --resume`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateFlags.dryRun, "dry-run", false, "Run validation only, without calling the transformation engine")
	simulateCmd.Flags().BoolVar(&simulateFlags.resume, "resume", false, "Resume from the last completed year checkpoint in the range")
	simulateCmd.Flags().IntVarP(&simulateFlags.threads, "threads", "t", 0, "Engine parallelism (default from config)")
	simulateCmd.Flags().BoolVar(&simulateFlags.failOnValidation, "fail-on-validation-error", false, "Abort the year when a validation check fails instead of warning")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	startYear, endYear, err := parseYearRange(args[0])
	if err != nil {
		return internal.WrapError(internal.ExitError, "invalid year range", err)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	mgr, err := newCheckpointManager()
	if err != nil {
		return err
	}

	eng := newEngineRunner(simulateFlags.threads)
	initializer := newInitializer(db, eng)

	failOnValidation := simulateFlags.failOnValidation || appConfig.Simulation.FailOnValidationError
	orch := pipeline.NewOrchestrator(db, eng, initializer, mgr, newRetrier(), newBreaker(), appLogger,
		pipeline.WithDryRun(simulateFlags.dryRun),
		pipeline.WithResume(simulateFlags.resume),
		pipeline.WithFailOnValidationError(failOnValidation),
		pipeline.WithConfigDigest(configDigest()),
	)

	summary, runErr := orch.Run(cmd.Context(), startYear, endYear)

	// Age out old checkpoints after a clean run
	if runErr == nil && !summary.DryRun && appConfig.Checkpoints.Retention > 0 {
		if _, pruneErr := mgr.Prune(cmd.Context(), appConfig.Checkpoints.Retention); pruneErr != nil {
			appLogger.Warn("checkpoint pruning failed", "error", pruneErr)
		}
	}

	printRunSummary(cmd, summary)
	return runErr
}

func printRunSummary(cmd *cobra.Command, summary *pipeline.RunSummary) {
	p := internal.NewPrinter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	if p.JSONMode() {
		_ = p.Document(summary)
		return
	}

	switch {
	case summary.AlreadyComplete:
		_ = p.Success(fmt.Sprintf("Years %d-%d already complete (checkpoint %s)",
			summary.StartYear, summary.EndYear, summary.FinalCheckpointID))
		return
	case summary.DryRun:
		p.Line("Dry run for %d-%d: no engine calls, no checkpoints written",
			summary.StartYear, summary.EndYear)
	}

	rows := make([][]string, 0, len(summary.Years))
	for _, yr := range summary.Years {
		findings := 0
		for _, f := range yr.Findings {
			if f.Level == pipeline.FindingError {
				findings++
			}
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", yr.Year),
			string(yr.Status),
			fmt.Sprintf("%d/3", len(yr.Stages)),
			fmt.Sprintf("%d", findings),
			yr.Duration.Round(time.Millisecond).String(),
		})
	}
	if len(rows) > 0 {
		_ = p.Table([]string{"Year", "Status", "Stages", "Findings", "Duration"}, rows)
	}

	switch {
	case summary.Cancelled:
		_ = p.Failure(fmt.Sprintf("Run cancelled after %s; resume with: planwise simulate %d-%d --resume",
			summary.Duration.Round(time.Millisecond), summary.StartYear, summary.EndYear))
	case len(summary.CompletedYears()) == summary.EndYear-summary.EffectiveStartYear+1 && !summary.DryRun:
		_ = p.Success(fmt.Sprintf("Simulation %d-%d complete in %s",
			summary.EffectiveStartYear, summary.EndYear, summary.Duration.Round(time.Millisecond)))
	}
}
