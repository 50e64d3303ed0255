package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrLayout indicates the fixed prologue/epilogue layout is missing.
	ErrLayout = errors.New("format: bad heap layout")
)

// CheckLayout verifies that b is long enough to hold the fixed heap preamble
// and that the prologue tags are intact.
func CheckLayout(b []byte) error {
	if len(b) < InitialSize {
		return ErrTruncated
	}
	hdr := ReadU32(b, PrologueOff-WordSize)
	ftr := ReadU32(b, PrologueOff)
	want := Pack(DoubleSize, true)
	if hdr != want || ftr != want {
		return ErrLayout
	}
	return nil
}
