package orchestrate

import (
	"github.com/mimiboot/mimiboot/fat32"
	"github.com/mimiboot/mimiboot/hal"
	"github.com/mimiboot/mimiboot/image"
	"github.com/mimiboot/mimiboot/loader"
)

// Blink patterns, one per failure category. The numeric value is the
// pulse count.
const (
	BlinkIO         hal.BlinkPattern = 1
	BlinkFilesystem hal.BlinkPattern = 2
	BlinkImageID    hal.BlinkPattern = 3
	BlinkImageShape hal.BlinkPattern = 4
	BlinkLoad       hal.BlinkPattern = 5
	BlinkMemory     hal.BlinkPattern = 6
	BlinkUnknown    hal.BlinkPattern = 9
)

type classification struct {
	code    int
	label   string
	pattern hal.BlinkPattern
}

// codeTable assigns every named failure mode a distinct code, grouped by
// category: I/O, filesystem, image identification, image structure, load,
// memory.
var codeTable = map[error]classification{
	fat32.ErrIO:           {100, "io fault", BlinkIO},
	fat32.ErrNotFat32:     {200, "not fat32", BlinkFilesystem},
	fat32.ErrNotFound:     {201, "not found", BlinkFilesystem},
	fat32.ErrNotDirectory: {202, "not a directory", BlinkFilesystem},
	fat32.ErrEndOfFile:    {203, "end of file", BlinkFilesystem},
	fat32.ErrInvalid:      {204, "invalid filesystem", BlinkFilesystem},

	image.ErrInvalidHeader:          {300, "header too short", BlinkImageID},
	image.ErrBadMagic:               {301, "bad magic", BlinkImageID},
	image.ErrWrongClass:             {302, "wrong class", BlinkImageID},
	image.ErrWrongDataEncoding:      {303, "wrong data encoding", BlinkImageID},
	image.ErrWrongVersion:           {304, "wrong version", BlinkImageID},
	image.ErrWrongType:              {305, "wrong type", BlinkImageID},
	image.ErrWrongMachine:           {306, "wrong machine", BlinkImageID},
	image.ErrNoEntryPoint:           {320, "no entry point", BlinkImageShape},
	image.ErrNoProgramHeaders:       {321, "no program headers", BlinkImageShape},
	image.ErrWrongProgramHeaderSize: {322, "wrong program header size", BlinkImageShape},
	image.ErrTooManyProgramHeaders:  {323, "too many program headers", BlinkImageShape},

	loader.ErrSeekFailed:         {400, "seek failed", BlinkIO},
	loader.ErrReadFailed:         {401, "read failed", BlinkIO},
	loader.ErrAddressInvalid:     {420, "segment address invalid", BlinkLoad},
	loader.ErrAddressOverlap:     {421, "segments overlap", BlinkLoad},
	loader.ErrTooManySegments:    {422, "too many segments", BlinkLoad},
	loader.ErrNoLoadableSegments: {423, "no loadable segments", BlinkLoad},
	loader.ErrBadAlignment:       {424, "bad alignment", BlinkLoad},
	loader.ErrLoadFailed:         {425, "load failed", BlinkLoad},
	loader.ErrVerifyMismatch:     {426, "load verification mismatch", BlinkLoad},
	loader.ErrEntryOutOfRange:    {427, "entry point out of range", BlinkLoad},
	loader.ErrImageTooLarge:      {428, "image too large", BlinkLoad},

	loader.ErrInvalidRegion: {500, "invalid region descriptor", BlinkMemory},
}

// classify maps any error the boot sequence can produce to a numeric
// code, a short label, and an LED blink pattern. Unrecognized errors
// (e.g. from a caller-supplied Memory implementation) fall back to a
// generic unknown category rather than panicking.
func classify(err error) (code int, label string, pattern hal.BlinkPattern) {
	if c, ok := codeTable[err]; ok {
		return c.code, c.label, c.pattern
	}
	return 900, "unknown: " + err.Error(), BlinkUnknown
}
