package cmd

import (
	"errors"
	"fmt"

	herrors "github.com/hearth-sh/hearth/internal/errors"
	"github.com/hearth-sh/hearth/internal/luks"
	"github.com/hearth-sh/hearth/internal/ui"
	"github.com/hearth-sh/hearth/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	addSlot        int
	addEvictSlot   int
	addEvictRandom bool
	addManaged     bool
)

func init() {
	addCmd.Flags().IntVar(&addSlot, "slot", -1, "install into a specific empty slot")
	addCmd.Flags().IntVar(&addEvictSlot, "evict-slot", -1, "evict this slot if the volume is full")
	addCmd.Flags().BoolVar(&addEvictRandom, "evict-random", false, "evict a random non-primary slot if the volume is full")
	addCmd.Flags().BoolVar(&addManaged, "managed", false, "install the appliance-managed passphrase from the keystore")
}

// resetAddCommandState resets the add command's global state for testing.
func resetAddCommandState() {
	addSlot = -1
	addEvictSlot = -1
	addEvictRandom = false
	addManaged = false
}

var addCmd = &cobra.Command{
	Use:   "add <device>",
	Short: "Install a new passphrase on an encrypted volume",
	Long: `Installs a new passphrase into a key slot of an encrypted volume.

On a freshly formatted volume the passphrase becomes the first key in
slot 0. Otherwise the new key lands in the lowest empty slot, or in a
specific slot with --slot. When every slot is occupied, --evict-slot or
--evict-random sacrifices an existing slot; slot 0 is never evicted.

Passphrases are read from the terminal (or piped stdin), never from
arguments. With --managed the new passphrase comes from the appliance
keystore instead.

Examples:
  # Add a passphrase to the lowest empty slot
  hearth vault add media-vault

  # Install the appliance-managed passphrase
  hearth vault add media-vault --managed

  # Full volume: evict slot 5 to make room
  hearth vault add media-vault --evict-slot 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting add command")

		if addEvictSlot >= 0 && addEvictRandom {
			return fmt.Errorf("--evict-slot and --evict-random are mutually exclusive")
		}

		var strategy luks.EvictionStrategy
		if addEvictSlot >= 0 {
			strategy = luks.ManualEviction{Slot: addEvictSlot}
		} else if addEvictRandom {
			strategy = luks.RandomEviction{}
		}

		existing, err := readPassphrase("Existing passphrase (empty on a fresh volume): ")
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read passphrase: %v", err)
		}
		newPass, err := sourcePassphrase(addManaged, "New passphrase: ")
		if err != nil {
			if errors.Is(err, herrors.ErrKeystoreUninitialized) {
				fmt.Println(ui.Error.Sprint("✗") + " The appliance keystore is not initialized\n" +
					ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("hearth vault keystore-init") + " first")
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to read passphrase: %v", err)
		}

		spinner, cleanup := startSpinner("Installing passphrase...", verbose)
		defer cleanup()

		opts := workflows.AddKeyOptions{
			Device:   args[0],
			New:      newPass,
			Existing: existing,
			Strategy: strategy,
			Runner:   vaultRunner,
		}
		if addSlot >= 0 {
			slot := addSlot
			opts.Slot = &slot
		}

		result, err := workflows.AddKey(cmd.Context(), opts)
		if err != nil {
			switch {
			case errors.Is(err, herrors.ErrNoAvailableSlots):
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Every slot on " + ui.Device.Sprint(args[0]) + " is occupied\n" +
					ui.Info.Sprint("→") + " Retry with " + ui.Code.Sprint("--evict-slot <n>") + " or " + ui.Code.Sprint("--evict-random")
				return nil
			case errors.Is(err, herrors.ErrAuthenticationFailed):
				spinner.FinalMSG = ui.Error.Sprint("✗") + " The existing passphrase does not open " + ui.Device.Sprint(args[0])
				return nil
			}
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to install the passphrase"
			return Logger.ErrorfAndReturn("Failed to add key on %s: %v", args[0], err)
		}

		msg := ui.Success.Sprint("✓") + fmt.Sprintf(" Passphrase installed in slot %d of ", result.Slot) + ui.Device.Sprint(result.PhysicalDevice)
		if result.FreshVolume {
			msg += "\n" + ui.Info.Sprint("→") + " This is the volume's first key; keep it safe"
		}
		if result.EvictedSlot >= 0 {
			msg += fmt.Sprintf("\n"+ui.Warning.Sprint("!")+" Slot %d was evicted to make room", result.EvictedSlot)
		}
		spinner.FinalMSG = msg
		return nil
	},
}
