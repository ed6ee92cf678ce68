package cmd

import (
	"github.com/hearth-sh/hearth/internal/system"
	"github.com/hearth-sh/hearth/internal/ui"
	"github.com/hearth-sh/hearth/internal/workflows"

	"github.com/spf13/cobra"
)

var serviceStartCmd = &cobra.Command{
	Use:   "start <unit>",
	Short: "Start a systemd unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, cleanup := startSpinner("Starting "+args[0]+"...", serviceVerbose)
		defer cleanup()

		result, err := workflows.Service(cmd.Context(), workflows.ServiceOptions{
			Action: system.ActionStart,
			Unit:   args[0],
			Runner: vaultRunner,
		})
		if err != nil {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to start " + ui.Highlight.Sprint(args[0])
			return Logger.ErrorfAndReturn("Failed to start %s: %v", args[0], err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Started " + ui.Highlight.Sprint(result.Unit)
		return nil
	},
}
