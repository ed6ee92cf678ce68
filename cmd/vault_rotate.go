package cmd

import (
	"errors"
	"fmt"
	"strings"

	herrors "github.com/hearth-sh/hearth/internal/errors"
	"github.com/hearth-sh/hearth/internal/luks"
	"github.com/hearth-sh/hearth/internal/ui"
	"github.com/hearth-sh/hearth/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	rotatePrimary bool
	rotateForce   bool
	rotateManaged bool
)

func init() {
	rotateCmd.Flags().BoolVar(&rotatePrimary, "primary", false, "replace the primary slot and purge all others")
	rotateCmd.Flags().BoolVar(&rotateForce, "force", false, "skip confirmation prompt")
	rotateCmd.Flags().BoolVar(&rotateManaged, "managed", false, "rotate to the appliance-managed passphrase from the keystore")
}

// resetRotateCommandState resets the rotate command's global state for testing.
func resetRotateCommandState() {
	rotatePrimary = false
	rotateForce = false
	rotateManaged = false
}

// confirmPrimaryRotation prompts the user to confirm a primary replacement.
// Returns true if the user confirms, false otherwise.
func confirmPrimaryRotation() bool {
	fmt.Printf("\n%s This will replace the primary passphrase and purge every other key slot.\n", ui.Warning.Sprint("Warning:"))
	fmt.Println("  Any other passphrase on this volume will stop working.")
	fmt.Println()

	fmt.Print("Do you want to continue? [y/N]: ")
	response, err := pipedReader().ReadString('\n')
	if err != nil {
		Logger.Errorf("Failed to read response: %v", err)
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))

	return response == "y" || response == "yes"
}

var rotateCmd = &cobra.Command{
	Use:   "rotate <device>",
	Short: "Rotate a passphrase on an encrypted volume",
	Long: `Replaces a passphrase on an encrypted volume.

The default rotation is safe: the new passphrase goes into the secondary
slot (slot 1) and the primary slot is never touched, so the existing
passphrase keeps working whatever happens.

With --primary the volume ends up with exactly one key: the new
passphrase in slot 0, every other slot purged. The replacement is staged
so that at every intermediate point at least one known passphrase still
opens the volume. If it fails partway, the error names the passphrase
and slot that still work.

Examples:
  # Safe rotation of the secondary slot
  hearth vault rotate media-vault

  # Full primary replacement (with confirmation prompt)
  hearth vault rotate media-vault --primary

  # Rotate to the appliance-managed passphrase
  hearth vault rotate media-vault --primary --managed --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting rotate command")

		if rotatePrimary && !rotateForce && !confirmPrimaryRotation() {
			fmt.Println(ui.Info.Sprint("→") + " Rotation cancelled")
			return nil
		}

		existing, err := readPassphrase("Current passphrase: ")
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read passphrase: %v", err)
		}
		newPass, err := sourcePassphrase(rotateManaged, "New passphrase: ")
		if err != nil {
			if errors.Is(err, herrors.ErrKeystoreUninitialized) {
				fmt.Println(ui.Error.Sprint("✗") + " The appliance keystore is not initialized\n" +
					ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("hearth vault keystore-init") + " first")
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to read passphrase: %v", err)
		}

		spinner, cleanup := startSpinner("Rotating passphrase...", verbose)
		defer cleanup()

		result, err := workflows.Rotate(cmd.Context(), workflows.RotateOptions{
			Device:   args[0],
			Existing: existing,
			New:      newPass,
			Primary:  rotatePrimary,
			Runner:   vaultRunner,
		})
		if err != nil {
			var rerr *luks.RotationError
			if errors.As(err, &rerr) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Rotation stopped after " + rerr.State.String() + "\n" +
					ui.Info.Sprint("→") + fmt.Sprintf(" The volume still opens with the %s passphrase via slot %d", rerr.ValidWith, rerr.ValidSlot)
				return Logger.ErrorfAndReturn("Rotation failed on %s: %v", args[0], err)
			}
			if errors.Is(err, herrors.ErrAuthenticationFailed) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " The current passphrase does not open " + ui.Device.Sprint(args[0])
				return nil
			}
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Rotation failed"
			return Logger.ErrorfAndReturn("Rotation failed on %s: %v", args[0], err)
		}

		msg := ui.Success.Sprint("✓") + fmt.Sprintf(" Passphrase rotated into slot %d of ", result.Slot) + ui.Device.Sprint(result.PhysicalDevice)
		if result.TempSlotRetained {
			msg += "\n" + ui.Warning.Sprint("!") + " The staging slot 1 also holds the new passphrase\n" +
				ui.Info.Sprint("→") + " Destroy the duplicate at leisure with " + ui.Code.Sprint("cryptsetup luksKillSlot")
		}
		spinner.FinalMSG = msg
		return nil
	},
}
