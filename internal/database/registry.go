package database

// Tier identifies which initialization tier a required table belongs to.
// Seed tables are raw reference data loaded by the engine's seed command;
// foundation tables are derived from seeds by the foundation job selector.
type Tier string

const (
	TierSeed       Tier = "SEED"
	TierFoundation Tier = "FOUNDATION"
)

// Seed tables loaded by "seed --full-refresh".
const (
	TableCensusBaseline   = "seed_census_baseline"
	TableCompensationBand = "seed_compensation_bands"
	TableTerminationRates = "seed_termination_rates"
	TableHiringPlan       = "seed_hiring_plan"
	TableCOLASchedule     = "seed_cola_schedule"
)

// Foundation tables derived from the seeds.
const (
	TableBaselineWorkforce   = "int_baseline_workforce"
	TableEffectiveParameters = "int_effective_parameters"
)

// Per-year output tables produced by the simulation stages.
const (
	TableYearlyEvents      = "fct_yearly_events"
	TableWorkforceSnapshot = "fct_workforce_snapshot"
)

// Job selectors understood by the transformation engine.
const (
	SelectorFoundation        = "tag:foundation"
	SelectorEventGeneration   = "tag:event_generation"
	SelectorStateAccumulation = "tag:state_accumulation"
)

// Event types recorded in fct_yearly_events.
const (
	EventTypeHire               = "hire"
	EventTypeTermination        = "termination"
	EventTypeNewHireTermination = "new_hire_termination"
	EventTypePromotion          = "promotion"
	EventTypeRaise              = "raise"
)

// RequiredTable describes one table the navigator requires before any
// simulation year can run.
type RequiredTable struct {
	Name        string
	Tier        Tier
	Description string
}

// RequiredTables returns the static registry of tables that must exist for
// the database to count as initialized. The registry is fixed at build time;
// it is not configuration.
func RequiredTables() []RequiredTable {
	return []RequiredTable{
		{Name: TableCensusBaseline, Tier: TierSeed, Description: "point-in-time employee census the simulation starts from"},
		{Name: TableCompensationBand, Tier: TierSeed, Description: "salary bands by job level"},
		{Name: TableTerminationRates, Tier: TierSeed, Description: "hazard rates for termination events"},
		{Name: TableHiringPlan, Tier: TierSeed, Description: "planned hire counts per simulation year"},
		{Name: TableCOLASchedule, Tier: TierSeed, Description: "cost-of-living adjustment schedule"},
		{Name: TableBaselineWorkforce, Tier: TierFoundation, Description: "cleaned baseline workforce derived from the census"},
		{Name: TableEffectiveParameters, Tier: TierFoundation, Description: "resolved simulation parameters per year and level"},
	}
}

// RequiredTableNames returns the names of required tables in the given tier,
// in registry order. An empty tier returns all required tables.
func RequiredTableNames(tier Tier) []string {
	var names []string
	for _, rt := range RequiredTables() {
		if tier == "" || rt.Tier == tier {
			names = append(names, rt.Name)
		}
	}
	return names
}
