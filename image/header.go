// Package image decodes and validates the 32-bit ARM executable object
// header MimiBoot loads: identification bytes, type, machine, entry point,
// and the program header table description. It consults only the header
// and program headers; section headers and symbol tables, if present, are
// never read.
package image

import (
	"encoding/binary"

	"github.com/go-restruct/restruct"
)

var byteOrder = binary.LittleEndian

const (
	headerSize        = 52
	programHeaderSize = 32

	classELF32  = 1
	dataLittle  = 1
	versionCurr = 1
	typeExec    = 2
	machineARM  = 40

	maxProgramHeaders = 64
)

var magic = [4]byte{0x7F, 'E', 'L', 'F'}

// Header is the fixed 52-byte identification and program-header-table
// description at the start of the image, declared field-for-field in wire
// order so restruct can decode it directly.
type Header struct {
	Ident       [16]byte
	Type        uint16
	Machine     uint16
	Version     uint32
	Entry       uint32
	ProgOff     uint32
	SectOff     uint32
	Flags       uint32
	EHSize      uint16
	ProgEntSize uint16
	ProgNum     uint16
	SectEntSize uint16
	SectNum     uint16
	SectStrNdx  uint16
}

// ProgramHeader is one 32-byte program header table entry. Only entries
// with Type == ProgramTypeLoad are consulted by the loader.
type ProgramHeader struct {
	Type     uint32
	Offset   uint32
	VAddr    uint32
	PAddr    uint32
	FileSize uint32
	MemSize  uint32
	Flags    uint32
	Align    uint32
}

// ProgramTypeLoad marks a segment whose contents must be mapped into
// memory at its declared virtual address.
const ProgramTypeLoad uint32 = 1

// Program header flag bits, matching the on-disk p_flags layout.
const (
	ProgFlagExec  uint32 = 1 << 0
	ProgFlagWrite uint32 = 1 << 1
	ProgFlagRead  uint32 = 1 << 2
)

// DecodeHeader unpacks the first 52 bytes of an image into a Header. It
// performs no validation beyond what is needed to decode the fixed layout;
// call Validate separately.
func DecodeHeader(raw []byte) (Header, error) {
	if len(raw) < headerSize {
		return Header{}, ErrInvalidHeader
	}
	var h Header
	if err := restruct.Unpack(raw[:headerSize], byteOrder, &h); err != nil {
		return Header{}, ErrInvalidHeader
	}
	return h, nil
}

// DecodeProgramHeader unpacks one 32-byte program header table entry.
func DecodeProgramHeader(raw []byte) (ProgramHeader, error) {
	if len(raw) < programHeaderSize {
		return ProgramHeader{}, ErrInvalidHeader
	}
	var ph ProgramHeader
	if err := restruct.Unpack(raw[:programHeaderSize], byteOrder, &ph); err != nil {
		return ProgramHeader{}, ErrInvalidHeader
	}
	return ph, nil
}
