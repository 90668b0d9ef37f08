// Package handoff builds the fixed 256-byte descriptor that the
// bootloader hands to the loaded image in r0 at control transfer: boot
// context, timing, memory layout, image info and a short region table,
// closed off with a CRC32 over the first 16 bytes. The struct is
// restruct-packed in wire order so Marshal/Unmarshal round-trip exactly
// the layout the loaded image's own runtime expects to parse.
package handoff

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/go-restruct/restruct"
)

const (
	// Size is the fixed, bit-exact size of a Descriptor on the wire.
	Size = 256

	magic       = 0x494D494D
	version     = 1
	regionSlots = 8
	nameLen     = 32
)

// Region flag bits for the region table.
const (
	RegionFlagRAM     uint32 = 1 << 0
	RegionFlagFlash   uint32 = 1 << 1
	RegionFlagPayload uint32 = 1 << 2
	RegionFlagLoader  uint32 = 1 << 3
)

// Region is one entry of the handoff descriptor's region table.
type Region struct {
	Base     uint32
	Size     uint32
	Flags    uint32
	Reserved uint32
}

// Descriptor is the 256-byte handoff structure, field order matching the
// wire layout exactly: nothing here may be reordered without breaking
// every loaded image that parses it.
type Descriptor struct {
	Magic      uint32
	Version    uint32
	StructSize uint32
	HeaderCRC  uint32

	BootReason uint32
	BootSource uint32
	BootCount  uint32
	BootFlags  uint32

	SysClockHz   uint32
	BootTimeUs   uint32
	LoaderTimeUs uint32
	Reserved0    uint32

	RAMBase    uint32
	RAMSize    uint32
	LoaderBase uint32
	LoaderSize uint32

	ImageEntry    uint32
	ImageLoadBase uint32
	ImageLoadSize uint32
	ImageCRC32    uint32
	ImageName     [nameLen]byte

	RegionCount uint32
	Reserved1   uint32
	Regions     [regionSlots]Region

	// Reserved2 pads the descriptor from offset 0xF8 out to exactly Size
	// (0x100) bytes.
	Reserved2 [8]byte
}

// Input collects everything Build needs to populate a Descriptor, kept
// separate from Descriptor itself so callers (orchestration) never have
// to know the wire layout, only these named fields.
type Input struct {
	BootReason uint32
	BootSource uint32

	SysClockHz   uint32
	BootTimeUs   uint32
	LoaderTimeUs uint32

	RAMBase, RAMSize       uint32
	LoaderBase, LoaderSize uint32

	ImageEntry    uint32
	ImageLoadBase uint32
	ImageLoadSize uint32
	ImageName     string // truncated to 31 bytes, nul-terminated
}

// Build zeroes a Descriptor, populates every field from in, and computes
// the header CRC32 as the final step, since the CRC covers bytes that
// must already hold their final values (other than the CRC field itself,
// read as zero).
func Build(in Input) Descriptor {
	var d Descriptor
	d.Magic = magic
	d.Version = version
	d.StructSize = Size
	d.HeaderCRC = 0

	d.BootReason = in.BootReason
	d.BootSource = in.BootSource
	d.BootCount = 0
	d.BootFlags = 0

	d.SysClockHz = in.SysClockHz
	d.BootTimeUs = in.BootTimeUs
	d.LoaderTimeUs = in.LoaderTimeUs

	d.RAMBase = in.RAMBase
	d.RAMSize = in.RAMSize
	d.LoaderBase = in.LoaderBase
	d.LoaderSize = in.LoaderSize

	d.ImageEntry = in.ImageEntry
	d.ImageLoadBase = in.ImageLoadBase
	d.ImageLoadSize = in.ImageLoadSize
	d.ImageCRC32 = 0
	copyTruncatedName(d.ImageName[:], in.ImageName)

	d.RegionCount = 2
	d.Regions[0] = Region{Base: in.RAMBase, Size: in.RAMSize, Flags: RegionFlagRAM | RegionFlagPayload}
	d.Regions[1] = Region{Base: in.LoaderBase, Size: in.LoaderSize, Flags: RegionFlagFlash | RegionFlagLoader}

	d.HeaderCRC = computeHeaderCRC(d)
	return d
}

// copyTruncatedName copies basename into dst (length nameLen-1, leaving
// room for the trailing NUL), truncating if necessary.
func copyTruncatedName(dst []byte, name string) {
	max := len(dst) - 1
	if len(name) > max {
		name = name[:max]
	}
	copy(dst, name)
}

// computeHeaderCRC returns the CRC32 (IEEE 802.3 polynomial, reflected
// 0xEDB88320, init/final XOR 0xFFFFFFFF, the stdlib crc32.IEEETable) of
// the first 16 bytes of d with the HeaderCRC field itself read as zero.
func computeHeaderCRC(d Descriptor) uint32 {
	var head [16]byte
	binary.LittleEndian.PutUint32(head[0:], d.Magic)
	binary.LittleEndian.PutUint32(head[4:], d.Version)
	binary.LittleEndian.PutUint32(head[8:], d.StructSize)
	binary.LittleEndian.PutUint32(head[12:], 0)
	return crc32.ChecksumIEEE(head[:])
}

// Marshal packs d into its 256-byte wire form.
func (d Descriptor) Marshal() ([Size]byte, error) {
	var out [Size]byte
	raw, err := restruct.Pack(binary.LittleEndian, &d)
	if err != nil {
		return out, err
	}
	copy(out[:], raw)
	return out, nil
}

// Unmarshal decodes a 256-byte wire form into a Descriptor.
func Unmarshal(raw []byte) (Descriptor, error) {
	var d Descriptor
	if len(raw) < Size {
		return d, ErrShortBuffer
	}
	if err := restruct.Unpack(raw[:Size], binary.LittleEndian, &d); err != nil {
		return d, err
	}
	return d, nil
}

// VerifyHeaderCRC recomputes the header CRC over d and reports whether it
// matches the stored value.
func VerifyHeaderCRC(d Descriptor) bool {
	return computeHeaderCRC(d) == d.HeaderCRC
}
