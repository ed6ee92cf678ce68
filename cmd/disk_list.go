package cmd

import (
	"fmt"
	"strings"

	"github.com/hearth-sh/hearth/internal/system"
	"github.com/hearth-sh/hearth/internal/ui"

	"github.com/spf13/cobra"
)

var diskListEncrypted bool

func init() {
	diskListCmd.Flags().BoolVar(&diskListEncrypted, "encrypted", false, "show only encrypted volumes")
}

var diskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List block devices",
	Long: `Lists the appliance's block devices as a tree, marking encrypted
volumes and their decrypted views.

Examples:
  # Everything
  hearth disk list

  # Only the encrypted volumes
  hearth disk list --encrypted`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		disks, err := system.ListDisks(cmd.Context(), runnerOrExec())
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to list disks: %v", err)
		}

		if diskListEncrypted {
			for _, vol := range system.EncryptedVolumes(disks) {
				line := ui.Device.Sprint(vol.Path)
				if vol.Label != "" {
					line += " " + ui.Highlight.Sprint(vol.Label)
				}
				if mapped := vol.Mapped(); mapped != nil {
					line += " " + ui.Success.Sprint("unlocked") + " as " + ui.Path.Sprint(mapped.Path)
					if mapped.MountPoint != "" {
						line += " on " + ui.Path.Sprint(mapped.MountPoint)
					}
				} else {
					line += " " + ui.Muted.Sprint("locked")
				}
				fmt.Println(line)
			}
			return nil
		}

		for _, d := range disks {
			printDevice(d, 0)
		}
		return nil
	},
}

func printDevice(d system.BlockDevice, depth int) {
	indent := strings.Repeat("  ", depth)
	line := indent + ui.Device.Sprint(d.Path) + " " + d.Size
	if d.Encrypted() {
		line += " " + ui.Warning.Sprint("encrypted")
	}
	if d.Label != "" {
		line += " " + ui.Highlight.Sprint(d.Label)
	}
	if d.MountPoint != "" {
		line += " on " + ui.Path.Sprint(d.MountPoint)
	}
	fmt.Println(line)
	for _, c := range d.Children {
		printDevice(c, depth+1)
	}
}
