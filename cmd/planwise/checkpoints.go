package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crzyc98/planwise-navigator-sub019/cmd/planwise/internal"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Inspect and maintain simulation checkpoints",
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints in sequence order",
	RunE:  runCheckpointsList,
}

var checkpointsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Integrity-check every checkpoint file",
	RunE:  runCheckpointsVerify,
}

var checkpointsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove checkpoints older than the retention age",
	RunE:  runCheckpointsPrune,
}

var pruneMaxAge time.Duration

func init() {
	checkpointsPruneCmd.Flags().DurationVar(&pruneMaxAge, "max-age", 0, "Age threshold (default from config retention)")

	checkpointsCmd.AddCommand(checkpointsListCmd)
	checkpointsCmd.AddCommand(checkpointsVerifyCmd)
	checkpointsCmd.AddCommand(checkpointsPruneCmd)
}

func runCheckpointsList(cmd *cobra.Command, args []string) error {
	mgr, err := newCheckpointManager()
	if err != nil {
		return err
	}

	entries, err := mgr.List(cmd.Context())
	if err != nil {
		return err
	}

	p := internal.NewPrinter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	if p.JSONMode() {
		return p.Document(entries)
	}

	if len(entries) == 0 {
		p.Line("No checkpoints found in %s", mgr.Dir())
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.Sequence),
			fmt.Sprintf("%d", e.Year),
			string(e.Type),
			e.Name,
		})
	}
	return p.Table([]string{"Seq", "Year", "Type", "File"}, rows)
}

func runCheckpointsVerify(cmd *cobra.Command, args []string) error {
	mgr, err := newCheckpointManager()
	if err != nil {
		return err
	}

	results, err := mgr.VerifyAll(cmd.Context())
	if err != nil {
		return err
	}

	p := internal.NewPrinter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	if p.JSONMode() {
		return p.Document(results)
	}

	invalid := 0
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "valid"
		if !r.Valid {
			status = "CORRUPT"
			invalid++
		}
		rows = append(rows, []string{r.Name, status, r.Error})
	}
	if err := p.Table([]string{"File", "Status", "Error"}, rows); err != nil {
		return err
	}

	if invalid > 0 {
		return internal.NewCLIError(internal.ExitError,
			fmt.Sprintf("%d of %d checkpoints failed verification", invalid, len(results)))
	}
	return p.Success(fmt.Sprintf("All %d checkpoints verified", len(results)))
}

func runCheckpointsPrune(cmd *cobra.Command, args []string) error {
	mgr, err := newCheckpointManager()
	if err != nil {
		return err
	}

	maxAge := pruneMaxAge
	if maxAge <= 0 {
		maxAge = appConfig.Checkpoints.Retention
	}

	result, err := mgr.Prune(cmd.Context(), maxAge)
	if err != nil {
		return err
	}

	p := internal.NewPrinter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	if p.JSONMode() {
		return p.Document(result)
	}
	return p.Success(fmt.Sprintf("Removed %d checkpoints, kept %d",
		len(result.Removed), result.Kept))
}
