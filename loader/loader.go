// Package loader implements the two-pass validating segment loader:
// pass 1 proves every LOAD segment lies inside a writable volatile-RAM
// region and that no two segments overlap before a single byte is
// written; pass 2 streams file contents into memory and optionally zeroes
// BSS and verifies the copy. No byte of target memory is touched until
// pass 1 has accepted the entire table.
package loader

import (
	"github.com/hashicorp/go-multierror"

	"github.com/mimiboot/mimiboot/hal"
	"github.com/mimiboot/mimiboot/image"
)

const maxSegments = 16

// ImageReader is the file-shaped capability the loader needs: random
// access reads and a known total size. fat32.File satisfies it.
type ImageReader interface {
	Seek(pos uint32) error
	Read(p []byte) (int, error)
	Size() uint32
}

// MemoryWriter is the target-memory capability, satisfied on real
// hardware by a thin wrapper over unsafe pointer arithmetic and in tests
// by a plain byte slice. Addresses are absolute, matching the decoded
// program headers.
type MemoryWriter interface {
	WriteAt(addr uint32, p []byte) error
	ZeroAt(addr uint32, n uint32) error
	ReadAt(addr uint32, p []byte) error
}

// Config bundles the loader's inputs: the regions segments are allowed to
// target and the loader's behavior switches. CollectAll is a
// diagnostic-mode addition (not part of the boot path): when true, pass 1
// keeps validating every segment and reports every rejection via a
// multierror.Error instead of stopping at the first.
type Config struct {
	Regions           []hal.MemoryRegion
	ValidateAddresses bool
	ZeroBSS           bool
	VerifyAfterLoad   bool
	CollectAll        bool
}

// Result is the loader's report on a completed load, matching the fields
// the handoff builder and orchestration both consume.
type Result struct {
	Entry         uint32
	LoadBase      uint32
	LoadEnd       uint32
	TotalMemBytes uint32
	BytesCopied   uint32
	BytesZeroed   uint32
	SegmentCount  int
	Segments      [maxSegments]accepted
}

type accepted struct {
	VAddr   uint32
	MemSize uint32
}

// Load runs both passes against img using hdr (already Validate'd by the
// image package) and writes into mem according to cfg. It never writes
// anything if pass 1 rejects the table.
func Load(img ImageReader, mem MemoryWriter, hdr image.Header, cfg Config) (Result, error) {
	var res Result
	phRaw := make([]byte, 32)

	if cfg.ValidateAddresses {
		for _, r := range cfg.Regions {
			if r.Size == 0 || r.Base+r.Size < r.Base {
				return Result{}, ErrInvalidRegion
			}
		}
	}

	var multi *multierror.Error
	for i := uint16(0); i < hdr.ProgNum; i++ {
		if err := readProgramHeader(img, hdr, i, phRaw); err != nil {
			return Result{}, err
		}
		ph, err := image.DecodeProgramHeader(phRaw)
		if err != nil {
			return Result{}, ErrLoadFailed
		}
		if ph.Type != image.ProgramTypeLoad || ph.MemSize == 0 {
			continue
		}

		end := ph.VAddr + ph.MemSize
		if end < ph.VAddr {
			err := ErrBadAlignment
			if !cfg.CollectAll {
				return Result{}, err
			}
			multi = multierror.Append(multi, err)
			continue
		}

		if ph.FileSize > ph.MemSize {
			// A segment whose file contents exceed its memory footprint
			// would write past the range pass 1 accepts for it.
			if !cfg.CollectAll {
				return Result{}, ErrImageTooLarge
			}
			multi = multierror.Append(multi, ErrImageTooLarge)
			continue
		}

		if cfg.ValidateAddresses && !inWritableRAM(cfg.Regions, ph.VAddr, ph.MemSize) {
			if !cfg.CollectAll {
				return Result{}, ErrAddressInvalid
			}
			multi = multierror.Append(multi, ErrAddressInvalid)
			continue
		}

		if overlapsAny(res.Segments[:res.SegmentCount], ph.VAddr, ph.MemSize) {
			if !cfg.CollectAll {
				return Result{}, ErrAddressOverlap
			}
			multi = multierror.Append(multi, ErrAddressOverlap)
			continue
		}

		if res.SegmentCount >= maxSegments {
			if !cfg.CollectAll {
				return Result{}, ErrTooManySegments
			}
			multi = multierror.Append(multi, ErrTooManySegments)
			continue
		}

		res.Segments[res.SegmentCount] = accepted{VAddr: ph.VAddr, MemSize: ph.MemSize}
		res.SegmentCount++
		if res.SegmentCount == 1 || ph.VAddr < res.LoadBase {
			res.LoadBase = ph.VAddr
		}
		if end > res.LoadEnd {
			res.LoadEnd = end
		}
	}

	if cfg.CollectAll && multi != nil && multi.Len() > 0 {
		return Result{}, multi.ErrorOrNil()
	}
	if res.SegmentCount == 0 {
		return Result{}, ErrNoLoadableSegments
	}

	res.TotalMemBytes = res.LoadEnd - res.LoadBase

	if err := materialize(img, mem, hdr, cfg, &res); err != nil {
		return Result{}, err
	}

	res.Entry = hdr.Entry
	if !(res.LoadBase <= res.Entry && res.Entry < res.LoadEnd) {
		return Result{}, ErrEntryOutOfRange
	}
	return res, nil
}

func readProgramHeader(img ImageReader, hdr image.Header, index uint16, out []byte) error {
	off := hdr.ProgOff + uint32(index)*uint32(hdr.ProgEntSize)
	if err := img.Seek(off); err != nil {
		return ErrSeekFailed
	}
	n, err := img.Read(out)
	if err != nil || n != len(out) {
		return ErrReadFailed
	}
	return nil
}

func inWritableRAM(regions []hal.MemoryRegion, addr, size uint32) bool {
	for _, r := range regions {
		if r.Flags.Has(hal.FlagWritable|hal.FlagVolatileRAM) && r.Contains(addr, size) {
			return true
		}
	}
	return false
}

func overlapsAny(segs []accepted, addr, size uint32) bool {
	end := addr + size
	for _, s := range segs {
		sEnd := s.VAddr + s.MemSize
		if addr < sEnd && s.VAddr < end {
			return true
		}
	}
	return false
}

const copyChunk = 512

// materialize streams every accepted LOAD segment's file contents into
// memory (pass 2), re-deriving the same program header table rather than
// reusing pass 1's decoded headers, per the loader's two-pass contract
// that both passes read the file independently.
func materialize(img ImageReader, mem MemoryWriter, hdr image.Header, cfg Config, res *Result) error {
	phRaw := make([]byte, 32)
	buf := make([]byte, copyChunk)
	done := 0

	for i := uint16(0); i < hdr.ProgNum && done < res.SegmentCount; i++ {
		if err := readProgramHeader(img, hdr, i, phRaw); err != nil {
			return err
		}
		ph, err := image.DecodeProgramHeader(phRaw)
		if err != nil {
			return ErrLoadFailed
		}
		if ph.Type != image.ProgramTypeLoad || ph.MemSize == 0 {
			continue
		}
		done++

		if err := copySegment(img, mem, ph, buf); err != nil {
			return err
		}
		res.BytesCopied += ph.FileSize

		if cfg.ZeroBSS && ph.MemSize > ph.FileSize {
			zeroLen := ph.MemSize - ph.FileSize
			if err := mem.ZeroAt(ph.VAddr+ph.FileSize, zeroLen); err != nil {
				return ErrLoadFailed
			}
			res.BytesZeroed += zeroLen
		}

		if cfg.VerifyAfterLoad {
			if err := verifySegment(img, mem, ph, buf); err != nil {
				return err
			}
		}
	}
	return nil
}

func copySegment(img ImageReader, mem MemoryWriter, ph image.ProgramHeader, buf []byte) error {
	if err := img.Seek(ph.Offset); err != nil {
		return ErrSeekFailed
	}
	var done uint32
	for done < ph.FileSize {
		want := ph.FileSize - done
		if want > copyChunk {
			want = copyChunk
		}
		n, err := img.Read(buf[:want])
		if err != nil || uint32(n) != want {
			return ErrReadFailed
		}
		if err := mem.WriteAt(ph.VAddr+done, buf[:want]); err != nil {
			return ErrLoadFailed
		}
		done += uint32(n)
	}
	return nil
}

func verifySegment(img ImageReader, mem MemoryWriter, ph image.ProgramHeader, buf []byte) error {
	if err := img.Seek(ph.Offset); err != nil {
		return ErrSeekFailed
	}
	cmp := make([]byte, copyChunk)
	var done uint32
	for done < ph.FileSize {
		want := ph.FileSize - done
		if want > copyChunk {
			want = copyChunk
		}
		n, err := img.Read(buf[:want])
		if err != nil || uint32(n) != want {
			return ErrReadFailed
		}
		if err := mem.ReadAt(ph.VAddr+done, cmp[:want]); err != nil {
			return ErrLoadFailed
		}
		for i := uint32(0); i < want; i++ {
			if buf[i] != cmp[i] {
				return ErrVerifyMismatch
			}
		}
		done += uint32(n)
	}
	return nil
}
