package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/crzyc98/planwise-navigator-sub019/internal/database"
	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// FindingLevel grades one validator observation.
type FindingLevel string

const (
	FindingWarning FindingLevel = "WARNING"
	FindingError   FindingLevel = "ERROR"
)

// Finding is one validator observation about a stage's output.
type Finding struct {
	Check   string       `json:"check"`
	Level   FindingLevel `json:"level"`
	Message string       `json:"message"`
}

// ValidationResult aggregates one stage gate's findings. Passed means no
// error-level findings; warnings never block progress.
type ValidationResult struct {
	Stage    Stage     `json:"stage"`
	Year     int       `json:"year"`
	Findings []Finding `json:"findings,omitempty"`
	Passed   bool      `json:"passed"`
}

// PopulationVerifier is a caller-provided hook invoked after the built-in
// STATE_ACCUMULATION checks; a non-nil error becomes an error-level finding.
type PopulationVerifier func(ctx context.Context, year int) error

// StageValidator gates stage completion on data-quality checks against the
// simulation database.
type StageValidator struct {
	catalog   *database.Catalog
	startYear int
	verifier  PopulationVerifier
	logger    *slog.Logger
}

// NewStageValidator creates a validator for one run. startYear anchors the
// continuity checks: the first simulated year measures against the baseline
// workforce instead of a prior snapshot.
func NewStageValidator(catalog *database.Catalog, startYear int, verifier PopulationVerifier, logger *slog.Logger) *StageValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StageValidator{
		catalog:   catalog,
		startYear: startYear,
		verifier:  verifier,
		logger:    logger,
	}
}

// ValidateStage runs the named stage's checks for one year. With failOnError
// set, an error-level finding aborts via a typed validation error; otherwise
// every finding is logged as a warning and the run continues. The result
// carries the findings either way.
func (v *StageValidator) ValidateStage(ctx context.Context, stage Stage, year int, failOnError bool) (*ValidationResult, error) {
	var findings []Finding
	var err error

	switch stage {
	case StageFoundation:
		findings, err = v.checkFoundation(ctx, year)
	case StageEventGeneration:
		findings, err = v.checkEventGeneration(ctx, year)
	case StageStateAccumulation:
		findings, err = v.checkStateAccumulation(ctx, year)
	default:
		return nil, types.NewError(types.STAGE_VALIDATION_FAILED,
			fmt.Sprintf("no validator defined for stage %s", stage))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED,
			fmt.Sprintf("validation queries failed for stage %s year %d", stage, year), err)
	}

	result := &ValidationResult{Stage: stage, Year: year, Findings: findings, Passed: true}
	for _, f := range findings {
		if f.Level == FindingError {
			result.Passed = false
			break
		}
	}

	if !result.Passed && failOnError {
		return result, types.NewError(types.STAGE_VALIDATION_FAILED,
			fmt.Sprintf("stage %s validation failed for year %d: %s", stage, year, summarizeFindings(findings))).
			WithContext("year", year).
			WithContext("stage", string(stage))
	}

	for _, f := range findings {
		v.logger.Warn("validation finding",
			slog.String("stage", string(stage)),
			slog.Int("year", year),
			slog.String("check", f.Check),
			slog.String("level", string(f.Level)),
			slog.String("message", f.Message))
	}

	return result, nil
}

func summarizeFindings(findings []Finding) string {
	msgs := make([]string, 0, len(findings))
	for _, f := range findings {
		if f.Level == FindingError {
			msgs = append(msgs, f.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

// checkFoundation confirms the foundation tables carry rows and, past the
// first year, that the prior year's snapshot exists to build on.
func (v *StageValidator) checkFoundation(ctx context.Context, year int) ([]Finding, error) {
	var findings []Finding

	for _, table := range []string{database.TableBaselineWorkforce, database.TableEffectiveParameters} {
		exists, err := v.catalog.TableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if !exists {
			findings = append(findings, Finding{
				Check:   "foundation_tables",
				Level:   FindingError,
				Message: fmt.Sprintf("required table %s does not exist", table),
			})
			continue
		}

		count, err := v.catalog.RowCount(ctx, table)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			findings = append(findings, Finding{
				Check:   "foundation_tables",
				Level:   FindingError,
				Message: fmt.Sprintf("required table %s is empty", table),
			})
		}
	}

	if year > v.startYear {
		exists, err := v.catalog.TableExists(ctx, database.TableWorkforceSnapshot)
		if err != nil {
			return nil, err
		}
		if !exists {
			findings = append(findings, Finding{
				Check:   "prior_year_snapshot",
				Level:   FindingError,
				Message: fmt.Sprintf("%s does not exist but year %d builds on the %d snapshot", database.TableWorkforceSnapshot, year, year-1),
			})
			return findings, nil
		}

		count, err := v.catalog.YearRowCount(ctx, database.TableWorkforceSnapshot, year-1)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			findings = append(findings, Finding{
				Check:   "prior_year_snapshot",
				Level:   FindingError,
				Message: fmt.Sprintf("no %d workforce snapshot rows for year %d to build on", year-1, year),
			})
		}
	}

	return findings, nil
}

// checkEventGeneration confirms every expected event category is present for
// the year and that termination ordering holds.
func (v *StageValidator) checkEventGeneration(ctx context.Context, year int) ([]Finding, error) {
	var findings []Finding

	exists, err := v.catalog.TableExists(ctx, database.TableYearlyEvents)
	if err != nil {
		return nil, err
	}
	if !exists {
		return append(findings, Finding{
			Check:   "events_exist",
			Level:   FindingError,
			Message: fmt.Sprintf("%s does not exist", database.TableYearlyEvents),
		}), nil
	}

	counts, err := v.catalog.EventTypeCounts(ctx, year)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		findings = append(findings, Finding{
			Check:   "events_exist",
			Level:   FindingError,
			Message: fmt.Sprintf("no events generated for year %d", year),
		})
	}

	known := map[string]bool{
		database.EventTypeHire:               true,
		database.EventTypeTermination:        true,
		database.EventTypeNewHireTermination: true,
		database.EventTypePromotion:          true,
		database.EventTypeRaise:              true,
	}
	eventTypes := make([]string, 0, len(counts))
	for et := range counts {
		eventTypes = append(eventTypes, et)
	}
	sort.Strings(eventTypes)
	for _, et := range eventTypes {
		if !known[et] {
			findings = append(findings, Finding{
				Check:   "event_types_known",
				Level:   FindingError,
				Message: fmt.Sprintf("unknown event type %q in year %d", et, year),
			})
		}
	}

	// Hires are expected whenever the hiring plan covers the year
	planned, covered, err := v.catalog.PlannedHires(ctx, year)
	if err != nil {
		return nil, err
	}
	if covered && planned > 0 {
		hires := counts[database.EventTypeHire]
		if hires == 0 {
			findings = append(findings, Finding{
				Check:   "expected_hires",
				Level:   FindingError,
				Message: fmt.Sprintf("hiring plan expects %d hires in %d but no hire events exist", planned, year),
			})
		} else if hires != planned {
			findings = append(findings, Finding{
				Check:   "hires_match_plan",
				Level:   FindingWarning,
				Message: fmt.Sprintf("hire events (%d) differ from planned hires (%d) for year %d", hires, planned, year),
			})
		}
	}

	// Terminations are expected whenever termination rates are seeded
	ratesExist, err := v.catalog.TableExists(ctx, database.TableTerminationRates)
	if err != nil {
		return nil, err
	}
	if ratesExist {
		rateRows, err := v.catalog.RowCount(ctx, database.TableTerminationRates)
		if err != nil {
			return nil, err
		}
		if rateRows > 0 && counts[database.EventTypeTermination] == 0 {
			findings = append(findings, Finding{
				Check:   "expected_terminations",
				Level:   FindingError,
				Message: fmt.Sprintf("termination rates are seeded but year %d has no termination events", year),
			})
		}
	}

	// Experienced-employee terminations must sequence before terminations of
	// the year's own hires
	if counts[database.EventTypeNewHireTermination] > 0 {
		if counts[database.EventTypeTermination] == 0 {
			findings = append(findings, Finding{
				Check:   "termination_ordering",
				Level:   FindingError,
				Message: fmt.Sprintf("year %d has new-hire terminations but no terminations", year),
			})
		} else {
			termMin, _, err := v.catalog.MinEventSequence(ctx, year, database.EventTypeTermination)
			if err != nil {
				return nil, err
			}
			nhtMin, _, err := v.catalog.MinEventSequence(ctx, year, database.EventTypeNewHireTermination)
			if err != nil {
				return nil, err
			}
			if termMin >= nhtMin {
				findings = append(findings, Finding{
					Check:   "termination_ordering",
					Level:   FindingError,
					Message: fmt.Sprintf("termination sequence %d does not precede new-hire termination sequence %d in year %d", termMin, nhtMin, year),
				})
			}
		}
	}

	return findings, nil
}

// checkStateAccumulation confirms the year's snapshot exists and that active
// headcount reconciles with the prior population and the year's events.
func (v *StageValidator) checkStateAccumulation(ctx context.Context, year int) ([]Finding, error) {
	var findings []Finding

	exists, err := v.catalog.TableExists(ctx, database.TableWorkforceSnapshot)
	if err != nil {
		return nil, err
	}
	if !exists {
		return append(findings, Finding{
			Check:   "snapshot_exists",
			Level:   FindingError,
			Message: fmt.Sprintf("%s does not exist", database.TableWorkforceSnapshot),
		}), nil
	}

	rows, err := v.catalog.YearRowCount(ctx, database.TableWorkforceSnapshot, year)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		findings = append(findings, Finding{
			Check:   "snapshot_exists",
			Level:   FindingError,
			Message: fmt.Sprintf("no workforce snapshot rows for year %d", year),
		})
		return findings, nil
	}

	findings, err = v.checkContinuity(ctx, year, findings)
	if err != nil {
		return nil, err
	}

	if v.verifier != nil {
		if err := v.verifier(ctx, year); err != nil {
			findings = append(findings, Finding{
				Check:   "population_verifier",
				Level:   FindingError,
				Message: err.Error(),
			})
		}
	}

	return findings, nil
}

// checkContinuity verifies active headcount equals the prior population plus
// hires minus all terminations, including terminations of the year's own
// hires.
func (v *StageValidator) checkContinuity(ctx context.Context, year int, findings []Finding) ([]Finding, error) {
	var prior int64
	if year == v.startYear {
		exists, err := v.catalog.TableExists(ctx, database.TableBaselineWorkforce)
		if err != nil {
			return nil, err
		}
		if !exists {
			return append(findings, Finding{
				Check:   "headcount_continuity",
				Level:   FindingWarning,
				Message: fmt.Sprintf("%s does not exist; continuity for year %d not checked", database.TableBaselineWorkforce, year),
			}), nil
		}
		prior, err = v.catalog.BaselineHeadcount(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		prior, err = v.catalog.ActiveHeadcount(ctx, year-1)
		if err != nil {
			return nil, err
		}
	}

	eventsExist, err := v.catalog.TableExists(ctx, database.TableYearlyEvents)
	if err != nil {
		return nil, err
	}
	if !eventsExist {
		return append(findings, Finding{
			Check:   "headcount_continuity",
			Level:   FindingWarning,
			Message: fmt.Sprintf("%s does not exist; continuity for year %d not checked", database.TableYearlyEvents, year),
		}), nil
	}

	counts, err := v.catalog.EventTypeCounts(ctx, year)
	if err != nil {
		return nil, err
	}
	hires := counts[database.EventTypeHire]
	terms := counts[database.EventTypeTermination]
	newHireTerms := counts[database.EventTypeNewHireTermination]

	expected := prior + hires - terms - newHireTerms
	actual, err := v.catalog.ActiveHeadcount(ctx, year)
	if err != nil {
		return nil, err
	}

	if actual != expected {
		findings = append(findings, Finding{
			Check: "headcount_continuity",
			Level: FindingError,
			Message: fmt.Sprintf("year %d active headcount is %d, expected %d (prior %d + hires %d - terminations %d - new-hire terminations %d)",
				year, actual, expected, prior, hires, terms, newHireTerms),
		})
	}

	return findings, nil
}
