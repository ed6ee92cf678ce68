package cmd

import (
	logger "github.com/hearth-sh/hearth/internal/logging"
	"github.com/spf13/cobra"
)

var (
	serviceVerbose bool
	serviceDebug   bool

	ServiceCmd = &cobra.Command{
		Use:   "service",
		Short: "Control the systemd units consuming unlocked volumes",
		Long:  `Starts, stops, and restarts the services that depend on the appliance's encrypted storage.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: serviceVerbose,
				Debug:   serviceDebug,
			}
		},
	}
)

func init() {
	ServiceCmd.PersistentFlags().BoolVarP(&serviceVerbose, "verbose", "v", false, "enable verbose output")
	ServiceCmd.PersistentFlags().BoolVarP(&serviceDebug, "debug", "d", false, "enable debug output")

	ServiceCmd.AddCommand(serviceStartCmd)
	ServiceCmd.AddCommand(serviceStopCmd)
	ServiceCmd.AddCommand(serviceRestartCmd)
	ServiceCmd.AddCommand(serviceStatusCmd)
}
