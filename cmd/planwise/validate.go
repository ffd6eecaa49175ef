package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crzyc98/planwise-navigator-sub019/cmd/planwise/internal"
	"github.com/crzyc98/planwise-navigator-sub019/internal/database"
	"github.com/crzyc98/planwise-navigator-sub019/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate <start>-<end>",
	Short: "Run stage validation checks without touching the engine",
	Long: `Run every stage's data-integrity checks for the given years in
advisory mode: findings are reported but nothing is built, aborted, or
checkpointed. Useful after hand-editing seeds or engine models.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	startYear, endYear, err := parseYearRange(args[0])
	if err != nil {
		return internal.WrapError(internal.ExitError, "invalid year range", err)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	validator := pipeline.NewStageValidator(database.NewCatalog(db), startYear, nil, appLogger)
	p := internal.NewPrinter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	var rows [][]string
	var results []*pipeline.ValidationResult
	failures := 0

	ordered, err := pipeline.TopologicalOrder(pipeline.Stages())
	if err != nil {
		return err
	}

	for year := startYear; year <= endYear; year++ {
		for _, def := range ordered {
			result, err := validator.ValidateStage(cmd.Context(), def.Name, year, false)
			if err != nil {
				return err
			}
			results = append(results, result)
			if !result.Passed {
				failures++
			}

			status := "pass"
			if !result.Passed {
				status = "FAIL"
			}
			detail := ""
			for _, f := range result.Findings {
				if f.Level == pipeline.FindingError {
					detail = f.Message
					break
				}
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", year),
				string(def.Name),
				status,
				detail,
			})
		}
	}

	if p.JSONMode() {
		return p.Document(results)
	}

	if err := p.Table([]string{"Year", "Stage", "Result", "Detail"}, rows); err != nil {
		return err
	}
	if failures > 0 {
		return internal.NewCLIError(internal.ExitValidationError,
			fmt.Sprintf("%d stage validation(s) failed", failures))
	}
	return p.Success(fmt.Sprintf("All stage validations passed for %d-%d", startYear, endYear))
}
