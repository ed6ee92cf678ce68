package cmd

import (
	logger "github.com/hearth-sh/hearth/internal/logging"
	"github.com/hearth-sh/hearth/internal/luks"
	"github.com/spf13/cobra"
)

var (
	diskVerbose bool
	diskDebug   bool

	DiskCmd = &cobra.Command{
		Use:   "disk",
		Short: "Inspect the appliance's block devices",
		Long:  `Lists block devices and their encryption state.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: diskVerbose,
				Debug:   diskDebug,
			}
		},
	}
)

func init() {
	DiskCmd.PersistentFlags().BoolVarP(&diskVerbose, "verbose", "v", false, "enable verbose output")
	DiskCmd.PersistentFlags().BoolVarP(&diskDebug, "debug", "d", false, "enable debug output")

	DiskCmd.AddCommand(diskListCmd)
}

// runnerOrExec returns the injected test runner or the real tool.
func runnerOrExec() luks.Runner {
	if vaultRunner != nil {
		return vaultRunner
	}
	return luks.ExecRunner{}
}
