// Package cli holds the mimiboot-inspect subcommands: offline inspection
// of ARM image headers and FAT32 volume images on the development
// machine, completely separate from the bootloader's own boot path.
package cli

import "github.com/spf13/cobra"

const appName = "mimiboot-inspect"

// Execute builds and runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:   appName,
		Short: appName + " - offline inspection of MimiBoot images and volumes",
	}
	root.AddCommand(defineHeaderCommand())
	root.AddCommand(defineVolumeCommand())
	root.AddCommand(defineSegmentsCommand())
	return root.Execute()
}
