package cmd

import (
	"github.com/hearth-sh/hearth/internal/system"
	"github.com/hearth-sh/hearth/internal/ui"

	"github.com/spf13/cobra"
)

var serviceStatusCmd = &cobra.Command{
	Use:   "status <unit>",
	Short: "Show whether a systemd unit is active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, cleanup := startSpinner("Querying "+args[0]+"...", serviceVerbose)
		defer cleanup()

		sc := &system.ServiceControl{Runner: runnerOrExec()}
		active, err := sc.IsActive(cmd.Context(), args[0])
		if err != nil {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to query " + ui.Highlight.Sprint(args[0])
			return Logger.ErrorfAndReturn("Failed to query %s: %v", args[0], err)
		}

		if active {
			spinner.FinalMSG = ui.Success.Sprint("✓") + " " + ui.Highlight.Sprint(args[0]) + " is active"
		} else {
			spinner.FinalMSG = ui.Muted.Sprint(args[0]) + " is inactive"
		}
		return nil
	},
}
