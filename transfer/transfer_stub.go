//go:build !arm

package transfer

import "unsafe"

// Transfer, on a host build, does not branch anywhere: it records the
// call into LastTransfer so tests and cmd/mimiboot-sim can observe what
// the real hardware path would have done. This is only ever compiled on
// a development machine; target firmware always takes transfer_arm.go.
func Transfer(handoff *[256]byte, entry uint32) {
	LastTransfer = Record{
		HandoffPtr: uintptr(unsafe.Pointer(handoff)),
		Entry:      entry,
	}
}

// TransferWithSP is Transfer's sibling that also records the requested
// stack pointer.
func TransferWithSP(handoff *[256]byte, entry uint32, sp uint32) {
	LastTransfer = Record{
		HandoffPtr: uintptr(unsafe.Pointer(handoff)),
		Entry:      entry,
		SP:         sp,
		SPSet:      true,
	}
}

// LastTransfer holds the most recent recorded call. It exists only under
// the host build; it is not safe for concurrent use, matching the single
// execution context the real transfer sequence runs in.
var LastTransfer Record
