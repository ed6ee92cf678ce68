package cmd

import (
	"github.com/hearth-sh/hearth/internal/configs"
	"github.com/hearth-sh/hearth/internal/keystore"
	"github.com/hearth-sh/hearth/internal/ui"

	"github.com/spf13/cobra"
)

var keystoreInitForce bool

func init() {
	keystoreInitCmd.Flags().BoolVar(&keystoreInitForce, "force", false, "overwrite an existing keystore")
}

// resetKeystoreInitCommandState resets the keystore-init command's global state for testing.
func resetKeystoreInitCommandState() {
	keystoreInitForce = false
}

var keystoreInitCmd = &cobra.Command{
	Use:   "keystore-init",
	Short: "Initialize the appliance-managed passphrase keystore",
	Long: `Generates the appliance's managed passphrase and seals it on disk.

The managed passphrase is what --managed sources on add, rotate, and
unlock, letting the appliance hold its own key slot on every volume.
Regenerating it with --force orphans any slot still holding the old
passphrase; rotate those volumes afterwards.

Examples:
  # First-time setup
  hearth vault keystore-init

  # Regenerate (orphans slots holding the old passphrase)
  hearth vault keystore-init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting keystore-init command")
		spinner, cleanup := startSpinner("Initializing keystore...", verbose)
		defer cleanup()

		store := keystore.New(configs.HearthSettings.KeystorePath)
		if store.Initialized() && !keystoreInitForce {
			spinner.FinalMSG = ui.Warning.Sprint("!") + " Keystore already initialized at " + ui.Path.Sprint(store.Dir) + "\n" +
				ui.Info.Sprint("→") + " Use " + ui.Code.Sprint("--force") + " to regenerate"
			return nil
		}

		if err := store.Init(keystoreInitForce); err != nil {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to initialize the keystore"
			return Logger.ErrorfAndReturn("Failed to initialize keystore: %v", err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Keystore initialized at " + ui.Path.Sprint(store.Dir) + "\n" +
			ui.Info.Sprint("→") + " Install it on a volume with " + ui.Code.Sprint("hearth vault add <device> --managed")
		return nil
	},
}
