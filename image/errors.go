package image

// Error is the image validator's return code: one distinct value per
// first-failure-wins check, plus ErrInvalidHeader for a header too short
// to decode at all.
type Error int

const (
	errOK Error = iota
	ErrInvalidHeader
	ErrBadMagic
	ErrWrongClass
	ErrWrongDataEncoding
	ErrWrongVersion
	ErrWrongType
	ErrWrongMachine
	ErrNoEntryPoint
	ErrNoProgramHeaders
	ErrWrongProgramHeaderSize
	ErrTooManyProgramHeaders
)

var errText = [...]string{
	errOK:                     "ok",
	ErrInvalidHeader:          "image: header too short to decode",
	ErrBadMagic:               "image: bad magic",
	ErrWrongClass:             "image: wrong class, not 32-bit",
	ErrWrongDataEncoding:      "image: wrong data encoding, not little-endian",
	ErrWrongVersion:           "image: wrong version",
	ErrWrongType:              "image: wrong type, not executable",
	ErrWrongMachine:           "image: wrong machine, not ARM",
	ErrNoEntryPoint:           "image: no entry point",
	ErrNoProgramHeaders:       "image: no program headers",
	ErrWrongProgramHeaderSize: "image: wrong program header entry size",
	ErrTooManyProgramHeaders:  "image: too many program headers",
}

func (e Error) Error() string {
	if int(e) < 0 || int(e) >= len(errText) {
		return "image: unknown error"
	}
	return errText[e]
}
