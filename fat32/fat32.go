// Package fat32 is a read-only FAT32 volume reader for memory-constrained
// boot code. It mounts a single primary partition (or a super-floppy
// volume with no partition table), resolves ASCII 8.3/long-filename paths,
// and streams file contents through two fixed 512-byte scratch buffers;
// no other sector buffer is ever allocated. This is the FAT32 subset MimiBoot
// needs to find and stream its ARM executable image, nothing more: no
// write support, no exFAT, no FAT12/16.
package fat32

import (
	"encoding/binary"
	"io"
	"log/slog"
	"strings"

	"github.com/mimiboot/mimiboot/fat32/internal/mbr"
	"github.com/mimiboot/mimiboot/hal"
)

const bytesPerSector = 512

// window is a single cached sector plus the index it was last filled from.
// fs keeps two of these: one for directory/BPB/FAT-adjacent reads (win)
// and one dedicated to FAT-table lookups (fatWin), so that resolving a
// path doesn't thrash a shared cache against cluster-chain walks the way
// a single buffer would.
type window struct {
	sector uint32
	valid  bool
	buf    [bytesPerSector]byte
}

// FS is a mounted FAT32 volume.
type FS struct {
	dev hal.BlockSource
	log *slog.Logger

	partitionStart uint32

	sectorsPerCluster uint32
	reservedSectors   uint32
	numFATs           uint32
	sectorsPerFAT     uint32
	rootCluster       uint32
	totalSectors      uint32

	firstFATSector  uint32
	firstDataSector uint32
	bytesPerCluster uint32

	win    window
	fatWin window
}

// New constructs an unmounted FS. log may be nil, in which case all
// tracing is discarded.
func New(log *slog.Logger) *FS {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FS{log: log}
}

func (fs *FS) trace(msg string, args ...any)  { fs.log.Debug(msg, args...) }
func (fs *FS) logerror(msg string, err error) { fs.log.Error(msg, "err", err) }

// Mount identifies the FAT32 partition on dev (a partitioned disk or a
// super-floppy volume with the BPB in sector 0) and reads its BIOS
// Parameter Block. It performs no writes and allocates no memory beyond
// fs's own two sector buffers.
func (fs *FS) Mount(dev hal.BlockSource) error {
	fs.dev = dev
	fs.win = window{}
	fs.fatWin = window{}

	sec0, err := fs.loadWindow(&fs.win, 0)
	if err != nil {
		fs.logerror("mount: read sector 0", err)
		return err
	}

	boot, err := mbr.ToBootSector(sec0[:])
	if err != nil {
		return ErrNotFat32
	}

	var partitionLBA uint32
	pte0 := boot.PartitionTable(0)
	switch {
	case boot.BootSignature() == mbr.BootSignature && pte0.PartitionType().IsFAT32():
		pte := pte0
		partitionLBA = pte.StartLBA()
		fs.trace("mount: partitioned volume", "lba", partitionLBA)
	case isJumpInstruction(sec0[0]):
		partitionLBA = 0
		fs.trace("mount: super-floppy volume")
	default:
		return ErrNotFat32
	}
	fs.partitionStart = partitionLBA

	bpb := sec0
	if partitionLBA != 0 {
		bpb, err = fs.loadWindow(&fs.win, partitionLBA)
		if err != nil {
			fs.logerror("mount: read BPB", err)
			return err
		}
	}
	return fs.decodeBPB(bpb)
}

func isJumpInstruction(b0 byte) bool { return b0 == 0xEB || b0 == 0xE9 }

func (fs *FS) decodeBPB(bpb *[bytesPerSector]byte) error {
	if binary.LittleEndian.Uint16(bpb[bs55AA:]) != mbr.BootSignature {
		return ErrNotFat32
	}
	if binary.LittleEndian.Uint16(bpb[bpbBytsPerSec:]) != bytesPerSector {
		return ErrNotFat32
	}
	spc := uint32(bpb[bpbSecPerClus])
	if spc == 0 {
		return ErrNotFat32
	}
	fatSz32 := binary.LittleEndian.Uint32(bpb[bpbFATSz32:])
	if fatSz32 == 0 {
		// FATSz16 nonzero and FATSz32 zero means this is FAT12/16, out of scope.
		return ErrNotFat32
	}

	fs.sectorsPerCluster = spc
	fs.reservedSectors = uint32(binary.LittleEndian.Uint16(bpb[bpbRsvdSecCnt:]))
	fs.numFATs = uint32(bpb[bpbNumFATs])
	fs.sectorsPerFAT = fatSz32
	fs.rootCluster = binary.LittleEndian.Uint32(bpb[bpbRootClus32:])

	totSec16 := uint32(binary.LittleEndian.Uint16(bpb[bpbTotSec16:]))
	totSec32 := binary.LittleEndian.Uint32(bpb[bpbTotSec32:])
	if totSec32 != 0 {
		fs.totalSectors = totSec32
	} else {
		fs.totalSectors = totSec16
	}

	if fs.numFATs == 0 || fs.rootCluster < 2 {
		return ErrNotFat32
	}

	fs.firstFATSector = fs.partitionStart + fs.reservedSectors
	fs.firstDataSector = fs.firstFATSector + fs.numFATs*fs.sectorsPerFAT
	fs.bytesPerCluster = fs.sectorsPerCluster * bytesPerSector

	fs.trace("mount: bpb decoded",
		"sectorsPerCluster", fs.sectorsPerCluster,
		"rootCluster", fs.rootCluster,
		"firstDataSector", fs.firstDataSector)
	return nil
}

func (fs *FS) loadWindow(w *window, sector uint32) (*[bytesPerSector]byte, error) {
	if w.valid && w.sector == sector {
		return &w.buf, nil
	}
	if err := fs.dev.ReadSector(sector, &w.buf); err != nil {
		w.valid = false
		return nil, ErrIO
	}
	w.sector = sector
	w.valid = true
	return &w.buf, nil
}

// sectorOfCluster returns the first sector of a data cluster.
func (fs *FS) sectorOfCluster(cluster uint32) uint32 {
	return fs.firstDataSector + (cluster-2)*fs.sectorsPerCluster
}

// isEOFCluster reports whether a FAT32 cluster value marks the end of a
// chain (or is otherwise not traversable).
func isEOFCluster(v uint32) bool {
	v &= maskCluster28
	return v < 2 || v >= clusterEOFMin
}

// nextCluster follows the FAT to find the cluster after cur. It uses the
// dedicated FAT window so cluster-chain walks never evict directory or
// data-sector cache state held in fs.win.
func (fs *FS) nextCluster(cur uint32) (uint32, error) {
	byteOff := cur * 4
	fatSector := fs.firstFATSector + byteOff/bytesPerSector
	buf, err := fs.loadWindow(&fs.fatWin, fatSector)
	if err != nil {
		return 0, err
	}
	off := byteOff % bytesPerSector
	v := binary.LittleEndian.Uint32(buf[off:]) & maskCluster28
	return v, nil
}

// dirEntry is a resolved directory record: enough to open or descend into
// whatever it names.
type dirEntry struct {
	name         string
	size         uint32
	firstCluster uint32
	isDir        bool
}

func clusterFromEntry(raw []byte) uint32 {
	hi := uint32(binary.LittleEndian.Uint16(raw[dirFstClusHIOff:]))
	lo := uint32(binary.LittleEndian.Uint16(raw[dirFstClusLOOff:]))
	return hi<<16 | lo
}

// forEachDirRecord walks every 32-byte record in the cluster chain
// starting at dirCluster, invoking fn with the raw record bytes. It stops
// early (without error) if fn returns false, and stops at the first
// free (0x00) marker, which terminates a directory per the FAT32 format.
func (fs *FS) forEachDirRecord(dirCluster uint32, fn func(raw []byte) (more bool)) error {
	cluster := dirCluster
	for {
		for s := uint32(0); s < fs.sectorsPerCluster; s++ {
			sector := fs.sectorOfCluster(cluster) + s
			buf, err := fs.loadWindow(&fs.win, sector)
			if err != nil {
				return err
			}
			for off := 0; off < bytesPerSector; off += sizeDirEntry {
				raw := buf[off : off+sizeDirEntry]
				if raw[0] == direntFree {
					return nil
				}
				if !fn(raw) {
					return nil
				}
			}
		}
		next, err := fs.nextCluster(cluster)
		if err != nil {
			return err
		}
		if isEOFCluster(next) {
			return nil
		}
		cluster = next
	}
}

// findInDir looks up name (case-insensitive) among the long-and-short
// names of dirCluster's entries.
func (fs *FS) findInDir(dirCluster uint32, name string) (dirEntry, error) {
	var acc lfnAccumulator
	acc.invalidate()
	var found dirEntry
	var ok bool

	err := fs.forEachDirRecord(dirCluster, func(raw []byte) bool {
		if raw[0] == direntDeleted {
			acc.invalidate()
			return true
		}
		attr := raw[dirAttrOff]
		if attr == amLongName {
			acc.addFragment(raw)
			return true
		}
		if attr&amVolumeID != 0 {
			acc.invalidate()
			return true
		}

		longName, haveLong := acc.name()
		acc.invalidate()

		candidate := decodeShortName(raw)
		matched := strings.EqualFold(candidate, name)
		if !matched && haveLong {
			matched = strings.EqualFold(longName, name)
		}
		if !matched {
			return true
		}

		found = dirEntry{
			name:         candidate,
			size:         binary.LittleEndian.Uint32(raw[dirFileSizeOff:]),
			firstCluster: clusterFromEntry(raw),
			isDir:        attr&amDirectory != 0,
		}
		ok = true
		return false
	})
	if err != nil {
		return dirEntry{}, err
	}
	if !ok {
		return dirEntry{}, ErrNotFound
	}
	return found, nil
}

// resolve walks an absolute, '/'-separated path from the root directory.
func (fs *FS) resolve(path string) (dirEntry, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return dirEntry{name: "/", firstCluster: fs.rootCluster, isDir: true}, nil
	}
	components := strings.Split(path, "/")
	cluster := fs.rootCluster
	var entry dirEntry
	for i, comp := range components {
		if comp == "" {
			continue
		}
		var err error
		entry, err = fs.findInDir(cluster, comp)
		if err != nil {
			return dirEntry{}, err
		}
		if i < len(components)-1 {
			if !entry.isDir {
				return dirEntry{}, ErrNotDirectory
			}
			cluster = entry.firstCluster
		}
	}
	return entry, nil
}

// File is an open handle to a regular file's contents. It holds no
// buffer of its own; reads go through the owning FS's shared window.
type File struct {
	fs     *FS
	entry  dirEntry
	offset uint32
}

// Open resolves path and returns a handle for reading it. It fails with
// ErrNotDirectory if any non-final path component names a file.
func (fs *FS) Open(path string) (*File, error) {
	entry, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	if entry.isDir {
		return nil, ErrNotDirectory
	}
	return &File{fs: fs, entry: entry}, nil
}

// Size returns the file's length in bytes, as recorded in its directory
// entry.
func (f *File) Size() uint32 { return f.entry.size }

// Seek repositions the next Read to byte offset pos from the start of the
// file, clamping to the file size. FAT32 offers no faster way to seek
// than re-walking the cluster chain from the first cluster, so the walk
// happens lazily on the next Read and costs O(pos) FAT lookups.
func (f *File) Seek(pos uint32) error {
	if pos > f.entry.size {
		pos = f.entry.size
	}
	f.offset = pos
	return nil
}

// Read fills p with up to len(p) bytes starting at the current offset,
// returning the number of bytes read. It returns ErrEndOfFile (with n>0
// for a final short read, or n==0 at exact end of file) once the file's
// recorded size is reached; this is an expected terminal condition, not
// a fault; callers loop until they see it.
func (f *File) Read(p []byte) (int, error) {
	if f.offset >= f.entry.size {
		return 0, ErrEndOfFile
	}
	requested := len(p)
	remaining := f.entry.size - f.offset
	if uint32(len(p)) > remaining {
		p = p[:remaining]
	}

	fs := f.fs
	clusterSize := fs.bytesPerCluster
	clusterIndex := f.offset / clusterSize
	cluster := f.entry.firstCluster
	for i := uint32(0); i < clusterIndex; i++ {
		next, err := fs.nextCluster(cluster)
		if err != nil {
			return 0, err
		}
		if isEOFCluster(next) {
			return 0, ErrInvalid
		}
		cluster = next
	}

	n := 0
	withinCluster := f.offset % clusterSize
	for n < len(p) {
		sectorInCluster := withinCluster / bytesPerSector
		sector := fs.sectorOfCluster(cluster) + sectorInCluster
		buf, err := fs.loadWindow(&fs.win, sector)
		if err != nil {
			return n, err
		}
		sectorOff := withinCluster % bytesPerSector
		chunk := copy(p[n:], buf[sectorOff:])
		n += chunk
		withinCluster += uint32(chunk)
		f.offset += uint32(chunk)

		if withinCluster >= clusterSize {
			withinCluster = 0
			next, err := fs.nextCluster(cluster)
			if err != nil {
				return n, err
			}
			if isEOFCluster(next) {
				break
			}
			cluster = next
		}
	}
	if f.offset >= f.entry.size && n < requested {
		return n, ErrEndOfFile
	}
	return n, nil
}
