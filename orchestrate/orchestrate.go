// Package orchestrate sequences one boot attempt: mount the volume, read
// the boot configuration, open the primary image (retrying the fallback
// exactly once on a not-found), validate it, run the two-pass loader,
// build the handoff descriptor, and transfer control. It also owns the
// non-recoverable failure path: a diagnostic line plus an endless LED
// blink pattern. With ResetOnFail set the LED pattern is skipped; the
// package itself never resets the chip.
package orchestrate

import (
	"log/slog"

	"github.com/mimiboot/mimiboot/bootconfig"
	"github.com/mimiboot/mimiboot/fat32"
	"github.com/mimiboot/mimiboot/hal"
	"github.com/mimiboot/mimiboot/handoff"
	"github.com/mimiboot/mimiboot/image"
	"github.com/mimiboot/mimiboot/loader"
	"github.com/mimiboot/mimiboot/transfer"
)

// Sequencer runs a single boot attempt. Memory is the segment loader's
// write target: real firmware wires an unsafe-pointer-backed
// implementation over absolute addresses, cmd/mimiboot-sim wires a
// simulated byte-slice implementation, and tests wire a plain in-memory
// one; the sequencing logic here never knows the difference.
type Sequencer struct {
	ConfigPath string
	Memory     loader.MemoryWriter

	// Handoff, when non-nil, is the caller-supplied 256-byte region the
	// descriptor is built into: on real hardware a 256-byte-aligned spot
	// at the top of RAM, outside every loaded segment. When nil the
	// descriptor lives in a local value, which is only correct for the
	// host simulator and tests where no image actually runs.
	Handoff *[handoff.Size]byte

	ValidateAddresses bool
	ZeroBSS           bool
	VerifyAfterLoad   bool
	ResetOnFail       bool

	Log *slog.Logger
}

// Outcome reports what a Boot attempt did. Success is false for every
// non-recoverable failure; Err and Code describe why.
type Outcome struct {
	Success      bool
	UsedFallback bool
	Err          error
	Code         int
	Label        string
	Result       loader.Result
}

func (s *Sequencer) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Boot runs mount -> config -> open(primary[, fallback]) -> validate ->
// load -> build -> transfer against p. On success it calls
// transfer.Transfer and, on real hardware, never returns; the returned
// Outcome is only ever observed by callers on failure (or under the host
// stand-in transfer implementation, in tests).
func (s *Sequencer) Boot(p hal.Platform) Outcome {
	bootStart := p.Clock.NowMicros()

	fs := fat32.New(s.log())
	if err := fs.Mount(p.Storage); err != nil {
		return s.fail(p, err)
	}

	cfgFile, err := fs.Open(s.ConfigPath)
	if err != nil {
		return s.fail(p, err)
	}
	cfg, err := bootconfig.Parse(cfgFile)
	if err != nil {
		return s.fail(p, err)
	}

	path := cfg.Primary
	usedFallback := false
	kick(p.Watchdog)
	f, err := fs.Open(path)
	if err == fat32.ErrNotFound && cfg.Fallback != "" {
		usedFallback = true
		path = cfg.Fallback
		kick(p.Watchdog)
		f, err = fs.Open(path)
	}
	if err != nil {
		return s.fail(p, err)
	}

	hdr, err := readHeader(f)
	if err != nil {
		return s.fail(p, err)
	}
	if err := image.Validate(hdr); err != nil {
		return s.fail(p, err)
	}

	regions := make([]hal.MemoryRegion, 0, 2)
	if p.Info.RAM.Size != 0 {
		regions = append(regions, p.Info.RAM)
	}
	if p.Info.LoaderFlash.Size != 0 {
		regions = append(regions, p.Info.LoaderFlash)
	}

	loadStart := p.Clock.NowMicros()
	res, err := loader.Load(f, s.Memory, hdr, loader.Config{
		Regions:           regions,
		ValidateAddresses: s.ValidateAddresses,
		ZeroBSS:           s.ZeroBSS,
		VerifyAfterLoad:   s.VerifyAfterLoad,
	})
	if err != nil {
		return s.fail(p, err)
	}
	loaderElapsed := uint32(p.Clock.NowMicros() - loadStart)
	bootElapsed := uint32(p.Clock.NowMicros() - bootStart)

	d := handoff.Build(handoff.Input{
		BootReason:    p.Info.BootReason,
		BootSource:    p.Info.BootSource,
		SysClockHz:    p.Info.SysClockHz,
		BootTimeUs:    bootElapsed,
		LoaderTimeUs:  loaderElapsed,
		RAMBase:       p.Info.RAM.Base,
		RAMSize:       p.Info.RAM.Size,
		LoaderBase:    p.Info.LoaderFlash.Base,
		LoaderSize:    p.Info.LoaderFlash.Size,
		ImageEntry:    res.Entry,
		ImageLoadBase: res.LoadBase,
		ImageLoadSize: res.TotalMemBytes,
		ImageName:     basename(path),
	})
	raw, err := d.Marshal()
	if err != nil {
		return s.fail(p, err)
	}
	dst := s.Handoff
	if dst == nil {
		dst = new([handoff.Size]byte)
	}
	*dst = raw

	s.log().Info("boot: transferring control", "entry", res.Entry, "usedFallback", usedFallback)
	transfer.Transfer(dst, res.Entry)

	return Outcome{Success: true, UsedFallback: usedFallback, Result: res}
}

func readHeader(f *fat32.File) (image.Header, error) {
	raw := make([]byte, 52)
	n, err := f.Read(raw)
	if err != nil && err != fat32.ErrEndOfFile {
		return image.Header{}, err
	}
	if n < 52 {
		return image.Header{}, image.ErrInvalidHeader
	}
	return image.DecodeHeader(raw)
}

// kick pets the watchdog once per image-open attempt, so a slow or
// retried open never trips a board-configured watchdog timeout mid-boot.
func kick(w hal.Watchdog) {
	if w != nil {
		w.Kick()
	}
}

func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// fail renders the diagnostic line, drives the LED failure pattern unless
// ResetOnFail is set, and returns the failed Outcome. It performs no reset.
func (s *Sequencer) fail(p hal.Platform, err error) Outcome {
	code, label, pattern := classify(err)
	s.log().Error("boot: failed", "code", code, "label", label, "err", err)

	if s.ResetOnFail {
		// Reset-on-fail leaves the LED untouched and returns the
		// failed Outcome at once.
		return Outcome{Success: false, Err: err, Code: code, Label: label}
	}
	if p.LED != nil {
		p.LED.Set(pattern)
	}
	return Outcome{Success: false, Err: err, Code: code, Label: label}
}
