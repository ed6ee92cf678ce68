package main

import (
	"fmt"
	"os"

	"github.com/hearth-sh/hearth/cmd"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hearth",
	Short: "Hearth - the control CLI for your home-server appliance.",
	Long: `Hearth administers a home-server appliance: encrypted storage volumes,
system services, and disk inventory.

Features:
  - Manage passphrases on encrypted volumes (add, rotate, evict)
  - Unlock volumes using only the key slots that are actually in use
  - Start, stop, and inspect appliance services
  - List disks, partitions, and mapped volumes

Usage:
  hearth <command> [flags]

Available Commands:
  vault      Manage encrypted-volume key slots
  service    Control appliance services
  disk       Inspect block devices

Run 'hearth help <command>' for more details on a specific command.
`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Welcome to Hearth! Run 'hearth --help' to see available commands.")
	},
}

func main() {
	rootCmd.AddCommand(cmd.VaultCmd)
	rootCmd.AddCommand(cmd.ServiceCmd)
	rootCmd.AddCommand(cmd.DiskCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
