package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crzyc98/planwise-navigator-sub019/cmd/planwise/internal"
	"github.com/crzyc98/planwise-navigator-sub019/internal/checkpoint"
	"github.com/crzyc98/planwise-navigator-sub019/internal/database"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report database, initialization, and checkpoint state",
	RunE:  runStatus,
}

// statusReport aggregates the health of every subsystem a run depends on.
type statusReport struct {
	Database struct {
		Path      string          `json:"path"`
		Healthy   bool            `json:"healthy"`
		PoolStats *database.Stats `json:"pool_stats,omitempty"`
		Error     string          `json:"error,omitempty"`
	} `json:"database"`
	Initialization struct {
		Initialized       bool     `json:"initialized"`
		MissingSeeds      []string `json:"missing_seeds,omitempty"`
		MissingFoundation []string `json:"missing_foundation,omitempty"`
		Error             string   `json:"error,omitempty"`
	} `json:"initialization"`
	Checkpoints *checkpoint.Summary `json:"checkpoints,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var report statusReport

	db, err := openDatabase()
	if err != nil {
		report.Database.Path = appConfig.Database.Path
		report.Database.Error = err.Error()
	} else {
		defer db.Close()
		report.Database.Path = db.Path()
		if healthErr := db.Health(ctx); healthErr != nil {
			report.Database.Error = healthErr.Error()
		} else {
			report.Database.Healthy = true
			stats := db.Stats()
			report.Database.PoolStats = &stats
		}
	}

	if db != nil && report.Database.Healthy {
		initializer := newInitializer(db, newEngineRunner(0))
		if st, checkErr := initializer.CheckOnly(ctx); checkErr != nil {
			report.Initialization.Error = checkErr.Error()
		} else {
			report.Initialization.Initialized = st.Initialized
			report.Initialization.MissingSeeds = st.MissingSeeds
			report.Initialization.MissingFoundation = st.MissingFoundation
		}
	}

	if mgr, mgrErr := newCheckpointManager(); mgrErr == nil {
		if summary, sumErr := mgr.Summary(ctx); sumErr == nil {
			report.Checkpoints = summary
		}
	}

	p := internal.NewPrinter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	if p.JSONMode() {
		return p.Document(report)
	}
	return printStatusReport(p, &report)
}

func printStatusReport(p *internal.Printer, report *statusReport) error {
	dbDetail := report.Database.Path
	if s := report.Database.PoolStats; s != nil {
		dbDetail = fmt.Sprintf("%s (%d conns open, %d in use)",
			report.Database.Path, s.OpenConnections, s.InUse)
	}
	rows := [][]string{
		{"Database", statusCell(report.Database.Healthy, report.Database.Error), dbDetail},
	}

	initDetail := ""
	switch {
	case report.Initialization.Error != "":
	case !report.Initialization.Initialized:
		missing := append(append([]string{}, report.Initialization.MissingSeeds...),
			report.Initialization.MissingFoundation...)
		initDetail = "missing: " + strings.Join(missing, ", ")
	}
	rows = append(rows, []string{
		"Initialization",
		statusCell(report.Initialization.Initialized, report.Initialization.Error),
		initDetail,
	})

	cpDetail := "no checkpoints"
	cpStatus := "-"
	if report.Checkpoints != nil && report.Checkpoints.Count > 0 {
		cpStatus = fmt.Sprintf("%d", report.Checkpoints.Count)
		if latest := report.Checkpoints.Latest; latest != nil {
			cpDetail = fmt.Sprintf("latest: %s year %d", latest.Type, latest.Year)
		} else {
			cpDetail = "no resumable checkpoint"
		}
	}
	rows = append(rows, []string{"Checkpoints", cpStatus, cpDetail})

	if err := p.Table([]string{"Component", "Status", "Detail"}, rows); err != nil {
		return err
	}

	if report.Database.Error != "" {
		return internal.NewCLIError(internal.ExitDatabaseError, "database unhealthy: "+report.Database.Error)
	}
	if report.Initialization.Error != "" {
		return internal.NewCLIError(internal.ExitInitError, "initialization check failed: "+report.Initialization.Error)
	}
	return nil
}

func statusCell(ok bool, errMsg string) string {
	switch {
	case errMsg != "":
		return "error"
	case ok:
		return "ok"
	default:
		return "incomplete"
	}
}
