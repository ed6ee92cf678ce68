package cmd

import (
	"fmt"

	"github.com/hearth-sh/hearth/internal/ui"
	"github.com/hearth-sh/hearth/internal/workflows"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

var statusBanner bool

func init() {
	statusCmd.Flags().BoolVar(&statusBanner, "banner", false, "show the hearth banner")
}

var statusCmd = &cobra.Command{
	Use:   "status <device>",
	Short: "Show the key-slot inventory of an encrypted volume",
	Long: `Probes an encrypted volume and reports its format version and key slots.

The device may be a path, a filesystem label, a configured alias, or an
opened mapper path; mapper paths are followed down to the physical device.

Examples:
  # By device path
  hearth vault status /dev/sda3

  # By label or alias
  hearth vault status media-vault

  # Through the decrypted view
  hearth vault status /dev/mapper/media`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting status command")

		if statusBanner {
			banner := figure.NewColorFigure("Hearth", "alligator2", "red", true)
			banner.Print()
			fmt.Println()
		}

		spinner, cleanup := startSpinner("Probing volume...", verbose)
		defer cleanup()

		result, err := workflows.Status(cmd.Context(), workflows.StatusOptions{
			Device: args[0],
			Runner: vaultRunner,
		})
		if err != nil {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to probe " + ui.Device.Sprint(args[0])
			return Logger.ErrorfAndReturn("Failed to probe %s: %v", args[0], err)
		}

		inv := result.Inventory
		if !inv.IsEncrypted {
			spinner.FinalMSG = ui.Warning.Sprint("!") + " " + ui.Device.Sprint(result.PhysicalDevice) + " carries no encryption header"
			return nil
		}

		msg := ui.Success.Sprint("✓") + " " + ui.Device.Sprint(result.PhysicalDevice) +
			fmt.Sprintf(" is encrypted (LUKS%d, UUID %s)\n", inv.Version, inv.UUID) +
			fmt.Sprintf("  Slots: %d of %d occupied %v\n", len(inv.Used), inv.Capacity, inv.Used) +
			ui.Info.Sprint("→") + " Add a passphrase with " + ui.Code.Sprint("hearth vault add "+args[0])
		spinner.FinalMSG = msg
		return nil
	},
}
