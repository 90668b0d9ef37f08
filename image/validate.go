package image

import "bytes"

// Validate checks h against every structural requirement for a loadable
// ARM executable image, in the order the first failure is reported:
// identification, class/encoding/version, type/machine, entry point,
// program header table presence, entry size, and count. It never looks at
// the file's contents beyond the header itself.
func Validate(h Header) error {
	if !bytes.Equal(h.Ident[0:4], magic[:]) {
		return ErrBadMagic
	}
	if h.Ident[4] != classELF32 {
		return ErrWrongClass
	}
	if h.Ident[5] != dataLittle {
		return ErrWrongDataEncoding
	}
	if h.Ident[6] != versionCurr || h.Version != versionCurr {
		return ErrWrongVersion
	}
	if h.Type != typeExec {
		return ErrWrongType
	}
	if h.Machine != machineARM {
		return ErrWrongMachine
	}
	if h.Entry == 0 {
		return ErrNoEntryPoint
	}
	if h.ProgOff == 0 || h.ProgNum == 0 {
		return ErrNoProgramHeaders
	}
	if h.ProgEntSize != programHeaderSize {
		return ErrWrongProgramHeaderSize
	}
	if h.ProgNum > maxProgramHeaders {
		return ErrTooManyProgramHeaders
	}
	return nil
}
