package alloc

import "github.com/joshuapare/segheap/heap/dirty"

// Ptr is a payload handle: the byte offset of a payload from the region base.
// It stays valid across region growth even when the backing memory moves.
type Ptr uint32

// Nil is the null handle. Offset 0 lies inside the class-head table, so no
// payload can ever be placed there.
const Nil Ptr = 0

// State discriminates how a block's payload bytes are interpreted.
type State uint8

const (
	// Allocated blocks carry caller payload between their tags.
	Allocated State = iota + 1
	// Free blocks carry a predecessor and successor link in their first 8
	// payload bytes.
	Free
)

func (s State) String() string {
	switch s {
	case Allocated:
		return "allocated"
	case Free:
		return "free"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Block is a decoded view of one block, used by walkers and diagnostics.
// Pred and Succ are only meaningful when State is Free.
type Block struct {
	Off   Ptr    // payload offset (header sits 4 bytes below)
	Size  uint32 // total block size including both tags
	State State
	Pred  Ptr
	Succ  Ptr
}

// PayloadSize is the number of bytes usable by the caller.
func (b Block) PayloadSize() int { return int(b.Size) - tagOverhead }

// DirtyTracker is a type alias for the canonical interface defined in heap/dirty.
type DirtyTracker = dirty.DirtyTracker

// Allocator is the malloc-family contract shared by SegAllocator and Locked.
type Allocator interface {
	// Alloc returns a handle to at least size writable bytes, or Nil for size 0.
	Alloc(size int) (Ptr, error)

	// Free releases a block. Free(Nil) is a no-op.
	Free(p Ptr) error

	// Realloc moves a block to a new one of the given size, preserving the
	// common prefix of its contents.
	Realloc(p Ptr, size int) (Ptr, error)

	// Calloc allocates count*size zeroed bytes.
	Calloc(count, size int) (Ptr, error)

	// Bytes returns the payload of an allocated block.
	Bytes(p Ptr) []byte
}
