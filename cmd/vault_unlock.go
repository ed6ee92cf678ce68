package cmd

import (
	"errors"
	"fmt"

	herrors "github.com/hearth-sh/hearth/internal/errors"
	"github.com/hearth-sh/hearth/internal/ui"
	"github.com/hearth-sh/hearth/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	unlockActivate bool
	unlockName     string
	unlockManaged  bool
)

func init() {
	unlockCmd.Flags().BoolVar(&unlockActivate, "activate", false, "open the volume under a mapper name after unlocking")
	unlockCmd.Flags().StringVar(&unlockName, "name", "", "mapper name for --activate")
	unlockCmd.Flags().BoolVar(&unlockManaged, "managed", false, "unlock with the appliance-managed passphrase from the keystore")
}

// resetUnlockCommandState resets the unlock command's global state for testing.
func resetUnlockCommandState() {
	unlockActivate = false
	unlockName = ""
	unlockManaged = false
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <device>",
	Short: "Unlock an encrypted volume",
	Long: `Tests a passphrase against the occupied key slots of a volume.

Only slots that actually hold a key are tried, in order, stopping at the
first match. With --activate the volume is then opened under the given
mapper name.

Examples:
  # Verify a passphrase
  hearth vault unlock media-vault

  # Unlock and map as /dev/mapper/media
  hearth vault unlock media-vault --activate --name media

  # Headless unlock with the managed passphrase
  hearth vault unlock media-vault --managed --activate --name media`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting unlock command")

		if unlockActivate && unlockName == "" {
			return fmt.Errorf("--activate requires --name")
		}

		passphrase, err := sourcePassphrase(unlockManaged, "Passphrase: ")
		if err != nil {
			if errors.Is(err, herrors.ErrKeystoreUninitialized) {
				fmt.Println(ui.Error.Sprint("✗") + " The appliance keystore is not initialized\n" +
					ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("hearth vault keystore-init") + " first")
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to read passphrase: %v", err)
		}

		spinner, cleanup := startSpinner("Unlocking volume...", verbose)
		defer cleanup()

		result, err := workflows.Unlock(cmd.Context(), workflows.UnlockOptions{
			Device:     args[0],
			Passphrase: passphrase,
			Activate:   unlockActivate,
			MapperName: unlockName,
			Runner:     vaultRunner,
		})
		if err != nil {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to unlock " + ui.Device.Sprint(args[0])
			return Logger.ErrorfAndReturn("Failed to unlock %s: %v", args[0], err)
		}

		if !result.Unlocked {
			spinner.FinalMSG = ui.Error.Sprint("✗") + fmt.Sprintf(" The passphrase opens none of the %d occupied slots", len(result.Attempted))
			return nil
		}

		msg := ui.Success.Sprint("✓") + fmt.Sprintf(" Passphrase opens slot %d of ", result.Slot) + ui.Device.Sprint(result.PhysicalDevice)
		if result.Activated {
			msg += "\n" + ui.Info.Sprint("→") + " Volume mapped as " + ui.Path.Sprint("/dev/mapper/"+result.MapperName)
		}
		spinner.FinalMSG = msg
		return nil
	},
}
