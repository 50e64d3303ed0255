package heap

import (
	"errors"
	"fmt"

	"github.com/joshuapare/segheap/internal/format"
)

var (
	// ErrExhausted indicates the region cannot grow by the requested amount.
	ErrExhausted = errors.New("heap: region exhausted")

	// ErrClosed indicates an operation on a closed region.
	ErrClosed = errors.New("heap: region closed")
)

// Region is a contiguous, monotonically growing byte range.
type Region interface {
	// Bytes returns the current contents. The slice is invalidated by the
	// next successful Extend or Reset.
	Bytes() []byte

	// Size returns the number of bytes handed out so far.
	Size() int64

	// Extend appends n bytes at the high end and returns the offset of the
	// first new byte. Contents of the new bytes are unspecified.
	Extend(n int) (int, error)
}

// Resetter is implemented by regions that can drop all their bytes so a heap
// can be re-initialised in place.
type Resetter interface {
	Reset() error
}

// Syncer is implemented by regions that persist their bytes. Sync flushes
// [off, off+n) to stable storage; off is page aligned by callers.
type Syncer interface {
	Sync(off, n int) error
}

// Memory is a Region backed by a Go byte slice.
type Memory struct {
	data []byte
	max  int
}

// NewMemory returns an empty in-memory region that refuses to grow beyond
// max bytes. max <= 0 selects format.DefaultMaxHeap.
func NewMemory(max int) *Memory {
	if max <= 0 {
		max = format.DefaultMaxHeap
	}
	return &Memory{max: max}
}

func (m *Memory) Bytes() []byte { return m.data }

func (m *Memory) Size() int64 { return int64(len(m.data)) }

// Max returns the configured cap.
func (m *Memory) Max() int { return m.max }

// Extend grows the slice, doubling capacity up to the cap. Offsets stay valid
// even when the backing array is replaced.
func (m *Memory) Extend(n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("heap: negative extend %d", n)
	}
	old := len(m.data)
	if n > m.max-old {
		return 0, fmt.Errorf("%w: have %d, want %d more, max %d", ErrExhausted, old, n, m.max)
	}
	need := old + n
	if need > cap(m.data) {
		newCap := max(2*cap(m.data), need, format.ChunkSize)
		newCap = min(newCap, m.max)
		grown := make([]byte, old, newCap)
		copy(grown, m.data)
		m.data = grown
	}
	m.data = m.data[:need]
	clear(m.data[old:need])
	return old, nil
}

// Reset drops all bytes but keeps the allocated capacity.
func (m *Memory) Reset() error {
	m.data = m.data[:0]
	return nil
}
