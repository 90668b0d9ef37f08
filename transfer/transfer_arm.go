//go:build arm

package transfer

import "unsafe"

// transferAsm is implemented in transfer_arm.s: it optionally loads msp
// with sp, issues DSB, ISB, masks interrupts (CPSID I), loads r0 with
// handoff, then branches to entry|1. It never returns.
func transferAsm(handoff uintptr, entry uint32, sp uint32, setSP uint32)

// Transfer barriers pending stores, masks interrupts, and branches to
// entry|1 with r0 holding handoff. It does not return.
func Transfer(handoff *[256]byte, entry uint32) {
	transferAsm(uintptr(unsafe.Pointer(handoff)), entry, 0, 0)
}

// TransferWithSP additionally sets the Main Stack Pointer to sp before
// the barrier sequence. It does not return.
func TransferWithSP(handoff *[256]byte, entry uint32, sp uint32) {
	transferAsm(uintptr(unsafe.Pointer(handoff)), entry, sp, 1)
}
