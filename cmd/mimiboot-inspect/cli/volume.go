package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mimiboot/mimiboot/fat32"
	"github.com/mimiboot/mimiboot/internal/hostdisk"
)

func defineVolumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "volume <volume-image> <path>",
		Short:        "Mount a FAT32 volume image and report a file's size",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         runVolume,
	}
	return cmd
}

func runVolume(cmd *cobra.Command, args []string) error {
	dev, err := hostdisk.Open(args[0])
	if err != nil {
		return err
	}
	defer dev.Close()

	fs := fat32.New(nil)
	if err := fs.Mount(dev); err != nil {
		return err
	}

	f, err := fs.Open(args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[1], humanize.Bytes(uint64(f.Size())))
	return nil
}
