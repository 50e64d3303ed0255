// Package format houses the on-heap layout of the segregated free-list
// allocator: word sizes, the boundary-tag encoding and the fixed offsets of the
// class-head table, prologue and epilogue. Higher-level packages only see
// handles; the byte layout lives here.
package format

const (
	// WordSize is the size of a boundary tag (header or footer) and of a
	// free-list link field.
	WordSize = 4

	// DoubleSize is the payload alignment and the granularity of block sizes.
	DoubleSize = 8

	// TagOverhead is the per-block cost of the header plus footer.
	TagOverhead = 2 * WordSize

	// MinBlockSize is the smallest legal block: header, two links, footer.
	MinBlockSize = 2 * DoubleSize

	// ClassCount is the number of segregated size classes.
	ClassCount = 14

	// ChunkSize is the default amount (bytes) the heap is extended by when no
	// free block fits.
	ChunkSize = 1 << 8

	// DefaultMaxHeap is the default cap of an in-memory region (20 MiB).
	DefaultMaxHeap = 20 * (1 << 20)

	// MaxBlockSize is the largest size a 32-bit tag can carry with the low
	// three bits reserved for flags.
	MaxBlockSize = 0xFFFFFFF8
)

// Region layout. Offsets are absolute from the region base.
//
//	0x00  class heads, ClassCount x 4 bytes (0 = empty list)
//	0x38  alignment padding (4 bytes)
//	0x3C  prologue header (8|1)
//	0x40  prologue footer (8|1)   <- PrologueOff, the first block pointer
//	0x44  epilogue header (0|1)   (moves up as the heap grows)
const (
	// HeadTableSize is the byte size of the class-head table.
	HeadTableSize = ClassCount * WordSize

	// InitialSize is the number of bytes requested for the empty heap.
	InitialSize = (ClassCount + 4) * WordSize

	// PrologueOff is the block pointer of the prologue block.
	PrologueOff = HeadTableSize + 2*WordSize

	// FirstBlockOff is the block pointer of the first real block.
	FirstBlockOff = PrologueOff + DoubleSize
)

const (
	// AllocBit marks a tag as allocated.
	AllocBit = 0x1

	// SizeMask strips the flag bits from a tag.
	SizeMask = ^uint32(0x7)
)

// ClassBounds holds the inclusive upper bound of every size class except the
// last, which is unbounded.
var ClassBounds = [ClassCount - 1]uint32{
	8, 16, 24, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384,
}
