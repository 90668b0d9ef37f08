package image

import "fmt"

// DescribeProgramHeaders renders a human-readable table of a program
// header table for diagnostic tooling. It is never consulted by the boot
// path.
func DescribeProgramHeaders(h Header, phs []ProgramHeader) string {
	out := fmt.Sprintf("entry=0x%08X phnum=%d phentsize=%d\n", h.Entry, h.ProgNum, h.ProgEntSize)
	for i, ph := range phs {
		kind := "OTHER"
		if ph.Type == ProgramTypeLoad {
			kind = "LOAD"
		}
		out += fmt.Sprintf("  [%2d] %-5s off=0x%06X vaddr=0x%08X filesz=0x%06X memsz=0x%06X flags=%s\n",
			i, kind, ph.Offset, ph.VAddr, ph.FileSize, ph.MemSize, describeFlags(ph.Flags))
	}
	return out
}

func describeFlags(f uint32) string {
	b := [3]byte{'-', '-', '-'}
	if f&ProgFlagRead != 0 {
		b[0] = 'R'
	}
	if f&ProgFlagWrite != 0 {
		b[1] = 'W'
	}
	if f&ProgFlagExec != 0 {
		b[2] = 'X'
	}
	return string(b[:])
}
