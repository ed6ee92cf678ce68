package cmd

import (
	"github.com/hearth-sh/hearth/internal/system"
	"github.com/hearth-sh/hearth/internal/ui"
	"github.com/hearth-sh/hearth/internal/workflows"

	"github.com/spf13/cobra"
)

var serviceRestartCmd = &cobra.Command{
	Use:   "restart <unit>",
	Short: "Restart a systemd unit",
	Long: `Restarts a systemd unit, typically after unlocking the volume it
depends on.

Examples:
  hearth vault unlock media-vault --managed --activate --name media
  hearth service restart jellyfin.service`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, cleanup := startSpinner("Restarting "+args[0]+"...", serviceVerbose)
		defer cleanup()

		result, err := workflows.Service(cmd.Context(), workflows.ServiceOptions{
			Action: system.ActionRestart,
			Unit:   args[0],
			Runner: vaultRunner,
		})
		if err != nil {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to restart " + ui.Highlight.Sprint(args[0])
			return Logger.ErrorfAndReturn("Failed to restart %s: %v", args[0], err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Restarted " + ui.Highlight.Sprint(result.Unit)
		return nil
	},
}
