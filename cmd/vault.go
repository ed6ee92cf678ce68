package cmd

import (
	logger "github.com/hearth-sh/hearth/internal/logging"
	"github.com/hearth-sh/hearth/internal/luks"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger

	// vaultRunner executes the external tools. Tests swap in a fake.
	vaultRunner luks.Runner

	VaultCmd = &cobra.Command{
		Use:   "vault",
		Short: "Manage encrypted volume key slots",
		Long:  `Provides status, passphrase addition, rotation, and unlocking of encrypted volumes.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing vault command with verbose=%t, debug=%t", verbose, debug)
		},
	}
)

func init() {
	VaultCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	VaultCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	VaultCmd.AddCommand(statusCmd)
	VaultCmd.AddCommand(addCmd)
	VaultCmd.AddCommand(rotateCmd)
	VaultCmd.AddCommand(unlockCmd)
	VaultCmd.AddCommand(keystoreInitCmd)
}

// Helper functions for testing

// GetVaultCmd returns the VaultCmd for testing.
func GetVaultCmd() *cobra.Command {
	return VaultCmd
}

// SetRunner replaces the external command runner for testing.
func SetRunner(r luks.Runner) {
	vaultRunner = r
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	vaultRunner = nil
	statusBanner = false
	diskListEncrypted = false
	resetAddCommandState()
	resetRotateCommandState()
	resetUnlockCommandState()
	resetKeystoreInitCommandState()
}

// SetVerbose sets the verbose flag for testing.
func SetVerbose(v bool) {
	verbose = v
}

// SetDebug sets the debug flag for testing.
func SetDebug(d bool) {
	debug = d
}

// SetLogger sets the logger for testing.
func SetLogger(l logger.Logger) {
	Logger = l
}
