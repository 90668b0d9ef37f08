// Package cli holds the mimiboot-sim subcommands: running the full
// orchestration sequence against a FAT32 volume image file and a
// simulated RAM buffer, entirely on the development machine. It exists
// to exercise orchestrate.Sequencer the same way real firmware does,
// without real hardware; the control transfer at the end records into
// transfer.LastTransfer instead of branching.
package cli

import "github.com/spf13/cobra"

const appName = "mimiboot-sim"

// Execute builds and runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:   appName,
		Short: appName + " - simulate a MimiBoot boot attempt on the host",
	}
	root.AddCommand(defineBootCommand())
	return root.Execute()
}
