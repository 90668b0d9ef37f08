// Package hostdisk adapts a regular host file to hal.BlockSource, so the
// cmd/ tools can mount and inspect FAT32 volume images sitting on the
// development machine's own filesystem instead of real block hardware.
package hostdisk

import "os"

const sectorSize = 512

// File is a hal.BlockSource backed by an *os.File opened on a raw volume
// image.
type File struct {
	f *os.File
}

// Open opens path read-only as a block source.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{f: f}, nil
}

// Close releases the underlying file.
func (d *File) Close() error { return d.f.Close() }

// ReadSector reads the 512-byte sector at the given linear index.
func (d *File) ReadSector(index uint32, buf *[512]byte) error {
	_, err := d.f.ReadAt(buf[:], int64(index)*sectorSize)
	return err
}
