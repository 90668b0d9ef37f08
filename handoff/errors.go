package handoff

// shortBufferError is the type of ErrShortBuffer, returned by Unmarshal
// when fewer than Size bytes are available to decode.
type shortBufferError struct{}

func (shortBufferError) Error() string { return "handoff: buffer shorter than descriptor size" }

// ErrShortBuffer is the sentinel value Unmarshal returns for a too-short
// input buffer.
var ErrShortBuffer error = shortBufferError{}
