// Package hal declares the hardware contracts MimiBoot consumes but never
// implements. Clock, GPIO, UART, SPI, timer, watchdog and the SD-over-SPI
// card driver all live below this interface on real hardware; MimiBoot only
// ever sees them through the small set of types declared here.
package hal

import (
	"context"
	"log/slog"
)

// BlockSource reads a single 512-byte logical sector by linear LBA index.
// Implementations must be idempotent: reading the same index twice without
// an intervening write returns bit-identical bytes. This is a contract
// requirement of the two-pass segment loader (it re-streams the program
// header table once per pass) and of FAT32 path resolution.
type BlockSource interface {
	ReadSector(index uint32, buf *[512]byte) error
}

// MemoryFlags describes the semantic permissions and storage class of a
// MemoryRegion.
type MemoryFlags uint32

const (
	FlagReadable MemoryFlags = 1 << iota
	FlagWritable
	FlagExecutable
	FlagVolatileRAM
	FlagNonVolatileFlash
)

func (f MemoryFlags) Has(want MemoryFlags) bool { return f&want == want }

// MemoryRegion is a half-open interval [Base, Base+Size) tagged with
// semantic flags. Regions are supplied by the caller; nothing in MimiBoot
// allocates or discovers memory on its own.
type MemoryRegion struct {
	Base  uint32
	Size  uint32
	Flags MemoryFlags
}

// End returns Base+Size. Callers must have already checked this does not
// overflow; MemoryRegion itself performs no arithmetic safety checks.
func (r MemoryRegion) End() uint32 { return r.Base + r.Size }

// Contains reports whether [addr, addr+size) lies entirely inside r.
func (r MemoryRegion) Contains(addr, size uint32) bool {
	end := addr + size
	return end >= addr && addr >= r.Base && end <= r.End()
}

// BlinkPattern identifies a periodic LED pulse pattern used to signal a
// diagnostic category while the bootloader is halted after an
// unrecoverable failure.
type BlinkPattern int

// LED drives the platform's failure-indicator light.
type LED interface {
	Set(pattern BlinkPattern)
}

// Clock is a free-running microsecond counter. It never wraps within a
// single boot attempt for the purposes of this bootloader.
type Clock interface {
	NowMicros() uint64
}

// Watchdog is pet once per orchestration retry iteration; MimiBoot never
// configures its timeout, only kicks it.
type Watchdog interface {
	Kick()
}

// Reset reasons, bitmask values matching the handoff descriptor's
// boot_reason field.
const (
	ResetCold     uint32 = 1 << 0
	ResetWarm     uint32 = 1 << 1
	ResetWatchdog uint32 = 1 << 2
	ResetBrownout uint32 = 1 << 3
	ResetExternal uint32 = 1 << 4
	ResetDebug    uint32 = 1 << 5
	ResetUnknown  uint32 = 1 << 31
)

// Boot source bitmask values matching the handoff descriptor's boot_source
// field.
const (
	SourceSD       uint32 = 1 << 0
	SourceSDIO     uint32 = 1 << 1
	SourceSPIFlash uint32 = 1 << 2
	SourceQSPI     uint32 = 1 << 3
	SourceUART     uint32 = 1 << 4
	SourceUSB      uint32 = 1 << 5
	SourceInternal uint32 = 1 << 6
)

// PlatformInfo is the static description of the running chip and board
// that orchestration feeds into the handoff builder. It is
// supplied wholesale by board bring-up code, not discovered by MimiBoot.
type PlatformInfo struct {
	RAM         MemoryRegion
	LoaderFlash MemoryRegion
	SysClockHz  uint32
	BootReason  uint32
	BootSource  uint32
}

// Platform bundles the collaborators orchestration needs for one boot
// attempt: storage, console, timing, watchdog, LED and static info.
type Platform struct {
	Storage  BlockSource
	Console  Console
	Clock    Clock
	Watchdog Watchdog
	LED      LED
	Info     PlatformInfo
}

// Console is a byte-oriented diagnostic sink. It carries no stability
// contract: it exists to be wrapped by a slog.Handler, not parsed.
type Console interface {
	Write(p []byte) (int, error)
}

// NewConsoleHandler adapts a Console into a slog.Handler that renders
// records as single lines of "LEVEL msg key=value ..." and nothing more.
func NewConsoleHandler(c Console, level slog.Level) slog.Handler {
	return &consoleHandler{c: c, level: level}
}

type consoleHandler struct {
	c     Console
	level slog.Level
	attrs []slog.Attr
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	line := r.Level.String() + " " + r.Message
	for _, a := range h.attrs {
		line += " " + a.Key + "=" + a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		line += " " + a.Key + "=" + a.Value.String()
		return true
	})
	line += "\n"
	_, err := h.c.Write([]byte(line))
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &consoleHandler{c: h.c, level: h.level, attrs: make([]slog.Attr, 0, len(h.attrs)+len(attrs))}
	n.attrs = append(n.attrs, h.attrs...)
	n.attrs = append(n.attrs, attrs...)
	return n
}

func (h *consoleHandler) WithGroup(_ string) slog.Handler { return h }
