package fat32

import "encoding/binary"

// lfnAccumulator assembles a long filename from its 13-UCS2-character
// fragments. MimiBoot treats every LFN character as ASCII by keeping only
// the low byte of each UCS-2 code unit: a deliberate restriction, since
// every path in scope is "/boot/..."-style ASCII rather than general
// Unicode.
type lfnAccumulator struct {
	chars  [260]byte
	length int // index of the first NUL terminator seen, -1 if none yet
	maxPos int // one past the highest character position written
	valid  bool
}

func (a *lfnAccumulator) invalidate() {
	a.valid = false
	a.length = -1
	a.maxPos = 0
}

// addFragment folds one 32-byte LFN directory record into the accumulator.
// The 0x40 bit of the sequence byte marks the final (highest-index)
// fragment and starts a fresh accumulation.
func (a *lfnAccumulator) addFragment(raw []byte) {
	ord := raw[ldirOrdOff]
	if ord&lastLongEntry != 0 {
		a.length = -1
		a.maxPos = 0
		a.valid = true
	}
	if !a.valid {
		return
	}
	seq := int(ord & ordMask)
	if seq < 1 || seq > 20 {
		a.valid = false
		return
	}
	base := (seq - 1) * 13
	var units [13]uint16
	for i := 0; i < 5; i++ {
		units[i] = binary.LittleEndian.Uint16(raw[ldirName1Off+2*i:])
	}
	for i := 0; i < 6; i++ {
		units[5+i] = binary.LittleEndian.Uint16(raw[ldirName2Off+2*i:])
	}
	for i := 0; i < 2; i++ {
		units[11+i] = binary.LittleEndian.Uint16(raw[ldirName3Off+2*i:])
	}
	for i, u := range units {
		pos := base + i
		switch u {
		case 0x0000:
			if a.length < 0 || pos < a.length {
				a.length = pos
			}
		case 0xFFFF:
			// Trailing pad unit, not part of the name.
		default:
			if pos >= 0 && pos < len(a.chars) {
				a.chars[pos] = byte(u) // low byte only, see type doc.
				if pos+1 > a.maxPos {
					a.maxPos = pos + 1
				}
			}
		}
	}
}

// name returns the accumulated long filename and whether it is usable.
// A name whose length is an exact multiple of 13 has no NUL terminator
// in any fragment; its length is the highest position written instead.
func (a *lfnAccumulator) name() (string, bool) {
	if !a.valid {
		return "", false
	}
	n := a.length
	if n < 0 {
		n = a.maxPos
	}
	if n <= 0 {
		return "", false
	}
	return string(a.chars[:n]), true
}

// decodeShortName decodes an 8.3 directory name into "BASE.EXT" form,
// stripping padding spaces and omitting the dot when there is no
// extension. DIR_Name[0] == 0x05 is the historical escape for a real
// leading 0xE5 byte (since 0xE5 itself marks a deleted entry).
func decodeShortName(raw []byte) string {
	var name [8]byte
	copy(name[:], raw[dirNameOff:dirNameOff+8])
	if name[0] == 0x05 {
		name[0] = 0xE5
	}
	var ext [3]byte
	copy(ext[:], raw[dirNameOff+8:dirNameOff+11])

	base := trimTrailingSpaces(name[:])
	extension := trimTrailingSpaces(ext[:])
	if len(extension) == 0 {
		return string(base)
	}
	return string(base) + "." + string(extension)
}

func trimTrailingSpaces(b []byte) []byte {
	n := len(b)
	for n > 0 && b[n-1] == ' ' {
		n--
	}
	return b[:n]
}
