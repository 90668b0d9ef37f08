// Package transfer performs the final, non-returning control transfer
// into the loaded image: barrier the pending stores, mask interrupts,
// load r0 with the handoff pointer, and branch to entry|1 (the Thumb bit
// ARMv6-M/ARMv7-M require). On non-arm build targets it records what it
// would have done instead of branching, so orchestration's sequencing can
// be exercised on a development machine.
package transfer

// Record is what the host stand-in leaves behind instead of branching.
// The type is declared on every build, but only the !arm stand-in ever
// fills one in; target firmware never allocates one.
type Record struct {
	HandoffPtr uintptr
	Entry      uint32
	SP         uint32
	SPSet      bool
}
