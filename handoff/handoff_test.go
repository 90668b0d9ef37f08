package handoff

import (
	"encoding/binary"
	"hash/crc32"
	"testing"
	"unsafe"
)

func TestBuildLayoutOffsets(t *testing.T) {
	d := Build(Input{
		RAMBase: 0x20000000, RAMSize: 0x40000,
		LoaderBase: 0x10000100, LoaderSize: 0x4000,
		SysClockHz:    125_000_000,
		ImageEntry:    0x20000101,
		ImageLoadBase: 0x20000000,
		ImageLoadSize: 0x200,
	})

	raw, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(raw) != Size {
		t.Fatalf("len = %d, want %d", len(raw), Size)
	}

	check := func(off int, want uint32) {
		t.Helper()
		got := binary.LittleEndian.Uint32(raw[off:])
		if got != want {
			t.Fatalf("offset 0x%02X = 0x%X, want 0x%X", off, got, want)
		}
	}
	check(0x00, magic)
	check(0x08, 256)
	check(0x30, 0x20000000)
	check(0x40, 0x20000101)
	check(0x70, 2)
}

func TestBuildHeaderCRC(t *testing.T) {
	d := Build(Input{RAMBase: 0x20000000})
	raw, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var zeroed [16]byte
	copy(zeroed[:], raw[:16])
	binary.LittleEndian.PutUint32(zeroed[12:], 0)
	want := crc32.ChecksumIEEE(zeroed[:])

	got := binary.LittleEndian.Uint32(raw[12:])
	if got != want {
		t.Fatalf("header_crc = 0x%X, want 0x%X", got, want)
	}
	if !VerifyHeaderCRC(d) {
		t.Fatal("VerifyHeaderCRC() = false")
	}
}

func TestStructSizeIs256(t *testing.T) {
	if unsafe.Sizeof(Descriptor{}) != Size {
		t.Fatalf("unsafe.Sizeof(Descriptor{}) = %d, want %d", unsafe.Sizeof(Descriptor{}), Size)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	d := Build(Input{
		RAMBase: 0x20000000, RAMSize: 0x40000,
		LoaderBase: 0x10000100, LoaderSize: 0x4000,
		ImageEntry: 0x20000101, ImageName: "kernel.elf",
	})
	raw, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(raw[:])
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != d {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, d)
	}
}

func TestImageNameTruncation(t *testing.T) {
	long := ""
	for i := 0; i < 40; i++ {
		long += "x"
	}
	d := Build(Input{ImageName: long})
	nameLen := 0
	for _, b := range d.ImageName {
		if b == 0 {
			break
		}
		nameLen++
	}
	if nameLen != 31 {
		t.Fatalf("ImageName length = %d, want 31", nameLen)
	}
}

func TestUnmarshalRejectsShortBuffer(t *testing.T) {
	if _, err := Unmarshal(make([]byte, 10)); err != ErrShortBuffer {
		t.Fatalf("Unmarshal() = %v, want ErrShortBuffer", err)
	}
}
