package main

import (
	"github.com/spf13/cobra"

	"github.com/crzyc98/planwise-navigator-sub019/cmd/planwise/internal"
	"github.com/crzyc98/planwise-navigator-sub019/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if globalFlags.GetOutputFormat() == internal.FormatJSON {
			p := internal.NewPrinter(internal.FormatJSON, cmd.OutOrStdout())
			return p.Document(version.Info())
		}
		cmd.Println(version.String())
		return nil
	},
}
