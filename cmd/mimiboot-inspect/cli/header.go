package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mimiboot/mimiboot/image"
)

func defineHeaderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "header <image-file>",
		Short:        "Decode and validate a standalone ARM executable image's header",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runHeader,
	}
	return cmd
}

func runHeader(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	hdr, err := image.DecodeHeader(raw)
	if err != nil {
		return err
	}
	if err := image.Validate(hdr); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "INVALID: %v\n", err)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "header valid")
	}

	phs, err := decodeProgramHeaders(raw, hdr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "file size: %s\n", humanize.Bytes(uint64(len(raw))))
	fmt.Fprint(cmd.OutOrStdout(), image.DescribeProgramHeaders(hdr, phs))
	return nil
}

func decodeProgramHeaders(raw []byte, hdr image.Header) ([]image.ProgramHeader, error) {
	phs := make([]image.ProgramHeader, 0, hdr.ProgNum)
	for i := uint16(0); i < hdr.ProgNum; i++ {
		off := int(hdr.ProgOff) + int(i)*int(hdr.ProgEntSize)
		if off+32 > len(raw) {
			break
		}
		ph, err := image.DecodeProgramHeader(raw[off:])
		if err != nil {
			return nil, err
		}
		phs = append(phs, ph)
	}
	return phs, nil
}
