package fat32

import (
	"bytes"
	"encoding/binary"
	"testing"
)

const (
	testSectorsPerCluster = 1
	testReservedSectors   = 32
	testSectorsPerFAT     = 4
	testRootCluster       = 2
)

// memDevice is an in-memory hal.BlockSource backing a hand-built FAT32
// image, standing in for a real block device.
type memDevice struct {
	sectors [][bytesPerSector]byte
}

func (m *memDevice) ReadSector(index uint32, buf *[bytesPerSector]byte) error {
	if int(index) >= len(m.sectors) {
		return errTestOutOfRange
	}
	*buf = m.sectors[index]
	return nil
}

type testErr string

func (e testErr) Error() string { return string(e) }

const errTestOutOfRange = testErr("fat32 test: sector index out of range")

// newTestImage builds a super-floppy (unpartitioned) FAT32 volume with a
// single root-directory file named shortName holding data, chained across
// one single-sector cluster per 512 bytes of data, so Read of a file longer
// than 512 bytes must cross a FAT cluster boundary.
func newTestImage(t testing.TB, shortName string, data []byte) *memDevice {
	t.Helper()

	dataClusters := (len(data) + bytesPerSector - 1) / bytesPerSector
	if dataClusters == 0 {
		dataClusters = 1
	}
	numSectors := testReservedSectors + testSectorsPerFAT + 1 /*root dir cluster*/ + dataClusters

	dev := &memDevice{sectors: make([][bytesPerSector]byte, numSectors)}

	bpb := &dev.sectors[0]
	bpb[0] = 0xEB // jump instruction: super-floppy, no partition table
	binary.LittleEndian.PutUint16(bpb[bpbBytsPerSec:], bytesPerSector)
	bpb[bpbSecPerClus] = testSectorsPerCluster
	binary.LittleEndian.PutUint16(bpb[bpbRsvdSecCnt:], testReservedSectors)
	bpb[bpbNumFATs] = 1
	binary.LittleEndian.PutUint32(bpb[bpbFATSz32:], testSectorsPerFAT)
	binary.LittleEndian.PutUint32(bpb[bpbRootClus32:], testRootCluster)
	binary.LittleEndian.PutUint32(bpb[bpbTotSec32:], uint32(numSectors))
	binary.LittleEndian.PutUint16(bpb[bs55AA:], 0xAA55)

	firstFATSector := testReservedSectors
	firstDataSector := firstFATSector + testSectorsPerFAT

	fat := &dev.sectors[firstFATSector]
	binary.LittleEndian.PutUint32(fat[0:], 0x0FFFFFF8)
	binary.LittleEndian.PutUint32(fat[4:], 0x0FFFFFFF)
	binary.LittleEndian.PutUint32(fat[8:], 0x0FFFFFFF) // cluster 2: root dir, one cluster

	firstFileCluster := uint32(3)
	for i := 0; i < dataClusters; i++ {
		cluster := firstFileCluster + uint32(i)
		var val uint32
		if i == dataClusters-1 {
			val = 0x0FFFFFFF
		} else {
			val = cluster + 1
		}
		binary.LittleEndian.PutUint32(fat[cluster*4:], val)
	}

	rootSector := &dev.sectors[firstDataSector] // cluster 2 == first data cluster
	writeShortEntry(rootSector[0:32], shortName, amArchive, firstFileCluster, uint32(len(data)))

	for i := 0; i < dataClusters; i++ {
		start := i * bytesPerSector
		end := start + bytesPerSector
		if end > len(data) {
			end = len(data)
		}
		copy(dev.sectors[firstDataSector+1+i][:], data[start:end])
	}

	return dev
}

// writeShortEntry renders "BASE.EXT"-form name into an 11-byte 8.3 field
// and fills in the rest of a short directory entry.
func writeShortEntry(raw []byte, name string, attr byte, firstCluster, size uint32) {
	for i := range raw[dirNameOff : dirNameOff+11] {
		raw[dirNameOff+i] = ' '
	}
	base, ext, _ := splitShortName(name)
	copy(raw[dirNameOff:dirNameOff+8], base)
	copy(raw[dirNameOff+8:dirNameOff+11], ext)
	raw[dirAttrOff] = attr
	binary.LittleEndian.PutUint16(raw[dirFstClusHIOff:], uint16(firstCluster>>16))
	binary.LittleEndian.PutUint16(raw[dirFstClusLOOff:], uint16(firstCluster))
	binary.LittleEndian.PutUint32(raw[dirFileSizeOff:], size)
}

func splitShortName(name string) (base, ext string, ok bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i], name[i+1:], true
		}
	}
	return name, "", false
}

func TestMountSuperFloppy(t *testing.T) {
	dev := newTestImage(t, "HELLO.TXT", []byte("hello world"))
	fs := New(nil)
	if err := fs.Mount(dev); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if fs.rootCluster != testRootCluster {
		t.Fatalf("rootCluster = %d, want %d", fs.rootCluster, testRootCluster)
	}
}

func TestMountRejectsGarbage(t *testing.T) {
	dev := &memDevice{sectors: make([][bytesPerSector]byte, 1)}
	dev.sectors[0][0] = 0x42 // neither a jump opcode nor a valid MBR signature
	fs := New(nil)
	if err := fs.Mount(dev); err != ErrNotFat32 {
		t.Fatalf("Mount() = %v, want ErrNotFat32", err)
	}
}

func TestOpenAndReadShortName(t *testing.T) {
	want := []byte("the quick brown fox jumps over the lazy dog, repeated: " +
		"the quick brown fox jumps over the lazy dog")
	dev := newTestImage(t, "HELLO.TXT", want)
	fs := New(nil)
	if err := fs.Mount(dev); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	f, err := fs.Open("/hello.txt") // case-insensitive match against the 8.3 entry
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Size() != uint32(len(want)) {
		t.Fatalf("Size() = %d, want %d", f.Size(), len(want))
	}

	var got bytes.Buffer
	buf := make([]byte, 7) // deliberately not sector-aligned, to exercise the boundary logic
	for {
		n, err := f.Read(buf)
		got.Write(buf[:n])
		if err == ErrEndOfFile {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if !bytes.Equal(got.Bytes(), want) {
		t.Fatalf("Read() = %q, want %q", got.Bytes(), want)
	}
}

func TestOpenMissingFile(t *testing.T) {
	dev := newTestImage(t, "HELLO.TXT", []byte("x"))
	fs := New(nil)
	if err := fs.Mount(dev); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if _, err := fs.Open("/nope.txt"); err != ErrNotFound {
		t.Fatalf("Open() = %v, want ErrNotFound", err)
	}
}

func TestOpenThroughFileComponentFails(t *testing.T) {
	dev := newTestImage(t, "HELLO.TXT", []byte("x"))
	fs := New(nil)
	if err := fs.Mount(dev); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if _, err := fs.Open("/hello.txt/sub"); err != ErrNotDirectory {
		t.Fatalf("Open() = %v, want ErrNotDirectory", err)
	}
}

func TestLFNAccumulator(t *testing.T) {
	var acc lfnAccumulator
	acc.invalidate()

	// Two fragments spelling "FOOBAR.LONGEXT" (14 chars, split 13+1 across
	// sequence numbers 1 and 2), highest sequence number first as real
	// directories store them, with the 0x40 last-entry bit set on the
	// higher-sequence fragment.
	frag1 := make([]byte, sizeDirEntry)
	frag1[ldirOrdOff] = 1
	writeLFNChars(frag1, "FOOBAR.LONGEX") // exactly 13 chars: no padding in a non-final fragment

	frag2 := make([]byte, sizeDirEntry)
	frag2[ldirOrdOff] = 2 | lastLongEntry
	writeLFNChars(frag2, "T") // final fragment: NUL-terminated and 0xFFFF padded

	acc.addFragment(frag2)
	acc.addFragment(frag1)

	got, ok := acc.name()
	if !ok {
		t.Fatal("name() not valid")
	}
	want := "FOOBAR.LONGEXT"
	if got != want {
		t.Fatalf("name() = %q, want %q", got, want)
	}
}

// writeLFNChars renders up to 13 characters of s as little-endian UCS-2
// code units split across an LFN entry's name1/name2/name3 fields. If s is
// shorter than 13 characters it is NUL-terminated and 0xFFFF-padded, as a
// real on-disk final fragment is; a full 13-character s is written with no
// terminator, as a real non-final fragment is.
func writeLFNChars(raw []byte, s string) {
	var units [13]uint16
	i := 0
	for ; i < len(s) && i < 13; i++ {
		units[i] = uint16(s[i])
	}
	if i < 13 {
		units[i] = 0x0000
		i++
		for ; i < 13; i++ {
			units[i] = 0xFFFF
		}
	}
	for i, u := range units[:5] {
		binary.LittleEndian.PutUint16(raw[ldirName1Off+2*i:], u)
	}
	for i, u := range units[5:11] {
		binary.LittleEndian.PutUint16(raw[ldirName2Off+2*i:], u)
	}
	for i, u := range units[11:13] {
		binary.LittleEndian.PutUint16(raw[ldirName3Off+2*i:], u)
	}
}

func TestSeekThenReadMatchesTail(t *testing.T) {
	data := make([]byte, 1300) // not a multiple of 512, crosses two cluster boundaries
	for i := range data {
		data[i] = byte(i * 7)
	}
	dev := newTestImage(t, "BLOB.BIN", data)
	fs := New(nil)
	if err := fs.Mount(dev); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	f, err := fs.Open("/blob.bin")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	const skip = 700
	if err := f.Seek(skip); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got := make([]byte, len(data)-skip)
	n, err := f.Read(got)
	if err != nil && err != ErrEndOfFile {
		t.Fatalf("Read: %v", err)
	}
	if n != len(got) || !bytes.Equal(got[:n], data[skip:]) {
		t.Fatalf("Read after Seek(%d) returned %d bytes, mismatch with tail", skip, n)
	}
}

func TestSeekClampsToFileSize(t *testing.T) {
	dev := newTestImage(t, "TINY.TXT", []byte("abc"))
	fs := New(nil)
	if err := fs.Mount(dev); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	f, err := fs.Open("/tiny.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Seek(1000); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	n, err := f.Read(make([]byte, 4))
	if n != 0 || err != ErrEndOfFile {
		t.Fatalf("Read after clamped Seek = (%d, %v), want (0, ErrEndOfFile)", n, err)
	}
}

func TestLFNExactFragmentMultiple(t *testing.T) {
	// A 13-character name fills its single fragment exactly, leaving no
	// room for a NUL terminator anywhere in the chain.
	var acc lfnAccumulator
	acc.invalidate()

	frag := make([]byte, sizeDirEntry)
	frag[ldirOrdOff] = 1 | lastLongEntry
	writeLFNChars(frag, "kernel123.elf")
	acc.addFragment(frag)

	got, ok := acc.name()
	if !ok || got != "kernel123.elf" {
		t.Fatalf("name() = (%q, %v), want (\"kernel123.elf\", true)", got, ok)
	}
}

func FuzzMount(f *testing.F) {
	dev := newTestImage(f, "", nil)
	f.Add(dev.sectors[0][:])
	f.Add(make([]byte, bytesPerSector))
	f.Fuzz(func(t *testing.T, sector0 []byte) {
		var s0 [bytesPerSector]byte
		copy(s0[:], sector0)
		dev := &memDevice{sectors: [][bytesPerSector]byte{s0}}
		fs := New(nil)
		_ = fs.Mount(dev) // must not panic on any sector-0 contents
	})
}

func TestMountIdempotent(t *testing.T) {
	dev := newTestImage(t, "HELLO.TXT", []byte("hello"))
	a, b := New(nil), New(nil)
	if err := a.Mount(dev); err != nil {
		t.Fatalf("first Mount: %v", err)
	}
	if err := b.Mount(dev); err != nil {
		t.Fatalf("second Mount: %v", err)
	}
	if a.partitionStart != b.partitionStart ||
		a.sectorsPerCluster != b.sectorsPerCluster ||
		a.rootCluster != b.rootCluster ||
		a.firstFATSector != b.firstFATSector ||
		a.firstDataSector != b.firstDataSector ||
		a.bytesPerCluster != b.bytesPerCluster {
		t.Fatal("two mounts of the same volume decoded different contexts")
	}
}

func TestOpenResolvesLongFilename(t *testing.T) {
	data := []byte("payload bytes")
	dev := newTestImage(t, "KERNEL~1.ELF", data)

	// Rewrite the root directory so the short entry is preceded by its
	// long-filename fragment, the way a real volume stores "kernel.elf".
	root := &dev.sectors[testReservedSectors+testSectorsPerFAT]
	copy(root[32:64], root[0:32])
	lfn := root[0:32]
	for i := range lfn {
		lfn[i] = 0
	}
	writeLFNChars(lfn, "kernel.elf")
	lfn[ldirOrdOff] = 1 | lastLongEntry
	lfn[ldirAttrOff] = amLongName

	fs := New(nil)
	if err := fs.Mount(dev); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	f, err := fs.Open("/kernel.elf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Size() != uint32(len(data)) {
		t.Fatalf("Size() = %d, want %d", f.Size(), len(data))
	}
}
