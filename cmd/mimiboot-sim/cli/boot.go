package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mimiboot/mimiboot/hal"
	"github.com/mimiboot/mimiboot/internal/hostdisk"
	"github.com/mimiboot/mimiboot/loader"
	"github.com/mimiboot/mimiboot/orchestrate"
)

func defineBootCommand() *cobra.Command {
	var (
		configPath        string
		ramBase, ramSize  uint32
		loaderBase, lSize uint32
		sysClockHz        uint32
		zeroBSS           bool
		verify            bool
		validateAddrs     bool
		resetOnFail       bool
	)

	cmd := &cobra.Command{
		Use:          "boot <volume-image>",
		Short:        "Run the full mount/config/validate/load/transfer sequence against a volume image",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoot(cmd, args[0], bootFlags{
				configPath:    configPath,
				ramBase:       ramBase,
				ramSize:       ramSize,
				loaderBase:    loaderBase,
				loaderSize:    lSize,
				sysClockHz:    sysClockHz,
				zeroBSS:       zeroBSS,
				verify:        verify,
				validateAddrs: validateAddrs,
				resetOnFail:   resetOnFail,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "/boot.cfg", "path of the boot configuration file on the volume")
	cmd.Flags().Uint32Var(&ramBase, "ram-base", 0x20000000, "simulated RAM region base address")
	cmd.Flags().Uint32Var(&ramSize, "ram-size", 0x40000, "simulated RAM region size")
	cmd.Flags().Uint32Var(&loaderBase, "loader-base", 0x08000000, "simulated loader flash region base address")
	cmd.Flags().Uint32Var(&lSize, "loader-size", 0x10000, "simulated loader flash region size")
	cmd.Flags().Uint32Var(&sysClockHz, "sys-clock-hz", 125_000_000, "simulated system clock frequency")
	cmd.Flags().BoolVar(&zeroBSS, "zero-bss", true, "zero the BSS tail of each segment")
	cmd.Flags().BoolVar(&verify, "verify", false, "re-read and compare every segment after loading")
	cmd.Flags().BoolVar(&validateAddrs, "validate-addresses", true, "reject segments outside a writable RAM region")
	cmd.Flags().BoolVar(&resetOnFail, "reset-on-fail", false, "skip the LED failure pattern on a failed boot (no reset is performed)")

	return cmd
}

type bootFlags struct {
	configPath               string
	ramBase, ramSize         uint32
	loaderBase, loaderSize   uint32
	sysClockHz               uint32
	zeroBSS, verify          bool
	validateAddrs, resetOnFail bool
}

func runBoot(cmd *cobra.Command, imagePath string, f bootFlags) error {
	dev, err := hostdisk.Open(imagePath)
	if err != nil {
		return err
	}
	defer dev.Close()

	log := slog.New(slog.NewTextHandler(cmd.OutOrStdout(), nil))

	seq := &orchestrate.Sequencer{
		ConfigPath:        f.configPath,
		Memory:            newSimMemory(f.ramBase, f.ramSize),
		ValidateAddresses: f.validateAddrs,
		ZeroBSS:           f.zeroBSS,
		VerifyAfterLoad:   f.verify,
		ResetOnFail:       f.resetOnFail,
		Log:               log,
	}

	p := hal.Platform{
		Storage: dev,
		LED:     consoleLED{},
		Clock:   wallClock{start: time.Now()},
		Info: hal.PlatformInfo{
			RAM:         hal.MemoryRegion{Base: f.ramBase, Size: f.ramSize, Flags: hal.FlagWritable | hal.FlagVolatileRAM},
			LoaderFlash: hal.MemoryRegion{Base: f.loaderBase, Size: f.loaderSize, Flags: hal.FlagReadable | hal.FlagNonVolatileFlash},
			SysClockHz:  f.sysClockHz,
			BootReason:  hal.ResetCold,
		},
	}

	out := seq.Boot(p)
	if !out.Success {
		return fmt.Errorf("boot failed: code=%d label=%q: %w", out.Code, out.Label, out.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "boot succeeded: entry=0x%08X segments=%d usedFallback=%v\n",
		out.Result.Entry, out.Result.SegmentCount, out.UsedFallback)
	return nil
}

// simMemory is loader.MemoryWriter backed by a plain byte slice, standing
// in for the unsafe-pointer-backed writer real firmware uses.
type simMemory struct {
	base uint32
	mem  []byte
}

func newSimMemory(base, size uint32) *simMemory {
	return &simMemory{base: base, mem: make([]byte, size)}
}

func (m *simMemory) WriteAt(addr uint32, p []byte) error {
	copy(m.mem[addr-m.base:], p)
	return nil
}

func (m *simMemory) ZeroAt(addr uint32, n uint32) error {
	off := addr - m.base
	for i := uint32(0); i < n; i++ {
		m.mem[off+i] = 0
	}
	return nil
}

func (m *simMemory) ReadAt(addr uint32, p []byte) error {
	copy(p, m.mem[addr-m.base:])
	return nil
}

var _ loader.MemoryWriter = (*simMemory)(nil)

type wallClock struct{ start time.Time }

func (c wallClock) NowMicros() uint64 { return uint64(time.Since(c.start).Microseconds()) }

// consoleLED prints the blink pattern to stderr instead of driving a real
// LED, since there is no LED on a development machine.
type consoleLED struct{}

func (consoleLED) Set(pattern hal.BlinkPattern) {
	fmt.Fprintf(os.Stderr, "LED pattern: %d pulses\n", pattern)
}
