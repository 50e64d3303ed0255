package alloc

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/joshuapare/segheap/heap"
	"github.com/joshuapare/segheap/internal/format"
)

// SegAllocator is a malloc/free/realloc/calloc implementation over a single
// growable region.
//   - Boundary tags (header + footer) on every block give O(1) neighbour lookup
//   - 14 segregated classes, each an intrusive list sorted by size
//   - First fit across classes, smallest fit within the first class that has one
//   - Immediate coalescing on every free and every heap extension
//
// All bookkeeping lives inside the region itself, including the class heads,
// so a file-backed heap can be re-attached after a restart.
type SegAllocator struct {
	r   heap.Region
	dt  DirtyTracker
	cfg Config
	log *slog.Logger

	ready bool
	stats counters

	// Test hook: called after every successful extension with the requested
	// and granted byte counts (nil in production).
	onGrow func(requested, granted int)
}

var (
	_ Allocator = (*SegAllocator)(nil)
	_ Allocator = (*Locked)(nil)
)

// New creates an allocator over an empty (or resettable) region and runs Init.
//
// Parameters:
//   - r: The region to carve blocks from
//   - dt: Dirty tracker notified of every metadata write (can be nil)
//   - cfg: Tuning (use nil for DefaultConfig)
func New(r heap.Region, dt DirtyTracker, cfg *Config) (*SegAllocator, error) {
	a := newAllocator(r, dt, cfg)
	if err := a.Init(); err != nil {
		return nil, err
	}
	return a, nil
}

// Attach adopts a region that already holds a heap, e.g. a reopened heap.File.
// The image is fully checked before it is accepted.
func Attach(r heap.Region, dt DirtyTracker, cfg *Config) (*SegAllocator, error) {
	a := newAllocator(r, dt, cfg)
	if err := format.CheckLayout(r.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	a.ready = true
	if err := a.Check("attach"); err != nil {
		a.ready = false
		return nil, err
	}
	return a, nil
}

func newAllocator(r heap.Region, dt DirtyTracker, cfg *Config) *SegAllocator {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	c := cfg.normalize()
	return &SegAllocator{
		r:   r,
		dt:  dt,
		cfg: c,
		log: c.Logger,
	}
}

// Init (re)establishes an empty heap: the class-head table, the prologue, the
// epilogue and one free chunk. The region is reset first when it supports it.
func (a *SegAllocator) Init() error {
	a.ready = false
	a.stats = counters{}

	if a.r.Size() != 0 {
		rs, ok := a.r.(heap.Resetter)
		if !ok {
			return ErrRegionInUse
		}
		if err := rs.Reset(); err != nil {
			return err
		}
	}

	base, err := a.r.Extend(format.InitialSize)
	if err != nil {
		return fmt.Errorf("%w: initial heap: %w", ErrNoSpace, err)
	}
	if base != 0 {
		return fmt.Errorf("%w: region did not start at offset 0", ErrRegionInUse)
	}

	for class := range NumClasses {
		a.setHead(class, 0)
	}
	a.put(format.HeadTableSize, 0)                                 // alignment padding
	a.put(hdrp(format.PrologueOff), format.Pack(dsize, true))      // prologue header
	a.put(format.PrologueOff, format.Pack(dsize, true))            // prologue footer
	a.put(hdrp(format.FirstBlockOff), format.Pack(0, true))        // epilogue header
	a.ready = true

	if _, err := a.extendHeap(a.cfg.ChunkSize); err != nil {
		a.ready = false
		return err
	}
	return nil
}

// Alloc returns a handle to a block with at least size payload bytes, 8-byte
// aligned. Alloc(0) returns Nil and no error.
func (a *SegAllocator) Alloc(size int) (Ptr, error) {
	if !a.ready {
		return Nil, ErrNotInitialized
	}
	a.stats.allocCalls++
	if size == 0 {
		return Nil, nil
	}

	asize, err := adjustSize(size)
	if err != nil {
		return Nil, fmt.Errorf("alloc %d bytes: %w", size, err)
	}

	bp := a.findFit(asize)
	if bp == 0 {
		if _, err := a.extendHeap(max(int(asize), a.cfg.ChunkSize)); err != nil {
			return Nil, err
		}
		bp = a.findFit(asize)
		if bp == 0 {
			return Nil, fmt.Errorf("%w: no fit for %d bytes after growth", ErrCorrupt, asize)
		}
		a.stats.allocSlowPath++
	} else {
		a.stats.allocFastPath++
	}

	a.place(bp, asize)
	return Ptr(bp), nil
}

// Splits of blocks at least this large are logged.
const largeBlock = 4096

// place marks bp allocated for asize bytes, splitting off the tail as a new
// free block when it is at least a minimum block.
func (a *SegAllocator) place(bp int, asize uint32) {
	csize := a.blockSize(bp)
	a.removeFreeBlock(bp)

	if csize-asize >= minBlock {
		a.setTags(bp, asize, true)
		rest := bp + int(asize)
		a.setTags(rest, csize-asize, false)
		a.insertFreeBlock(rest)
		a.stats.splits++
		if csize >= largeBlock {
			a.log.Debug("split large block", "off", bp, "size", csize, "taken", asize, "remainder", csize-asize)
		}
		return
	}
	a.setTags(bp, csize, true)
}

// Free releases the block at p. Free(Nil) is a no-op.
func (a *SegAllocator) Free(p Ptr) error {
	if p == Nil {
		return nil
	}
	if !a.ready {
		return ErrNotInitialized
	}
	if err := a.validate(p); err != nil {
		return err
	}
	a.stats.freeCalls++

	bp := int(p)
	size := a.blockSize(bp)
	a.setTags(bp, size, false)
	a.setPred(bp, 0)
	a.setSucc(bp, 0)

	a.insertFreeBlock(bp)
	a.coalesce(bp)
	return nil
}

// coalesce merges bp with any free physical neighbour and returns the block
// pointer of the result. bp must already be free and on its class list.
func (a *SegAllocator) coalesce(bp int) int {
	prevAlloc := a.prevAllocated(bp)
	next := a.nextBlk(bp)
	nextAlloc := a.isAllocated(next)
	size := a.blockSize(bp)

	switch {
	case prevAlloc && nextAlloc:
		return bp

	case prevAlloc && !nextAlloc:
		a.removeFreeBlock(bp)
		a.removeFreeBlock(next)
		size += a.blockSize(next)
		a.setTags(bp, size, false)
		a.stats.coalesceNext++

	case !prevAlloc && nextAlloc:
		prev := a.prevBlk(bp)
		a.removeFreeBlock(bp)
		a.removeFreeBlock(prev)
		size += a.blockSize(prev)
		bp = prev
		a.setTags(bp, size, false)
		a.stats.coalescePrev++

	default:
		prev := a.prevBlk(bp)
		a.removeFreeBlock(prev)
		a.removeFreeBlock(bp)
		a.removeFreeBlock(next)
		size += a.blockSize(prev) + a.blockSize(next)
		bp = prev
		a.setTags(bp, size, false)
		a.stats.coalesceBoth++
	}

	a.insertFreeBlock(bp)
	return bp
}

// Realloc resizes by allocate-copy-free. Realloc(p, 0) frees p and returns
// Nil; Realloc(Nil, n) is Alloc(n). When the new allocation fails the old
// block is left untouched.
func (a *SegAllocator) Realloc(p Ptr, size int) (Ptr, error) {
	if !a.ready {
		return Nil, ErrNotInitialized
	}
	a.stats.reallocCalls++
	if size == 0 {
		return Nil, a.Free(p)
	}
	if p == Nil {
		return a.Alloc(size)
	}
	if err := a.validate(p); err != nil {
		return Nil, err
	}

	oldPayload := int(a.blockSize(int(p))) - tagOverhead
	np, err := a.Alloc(size)
	if err != nil {
		return Nil, err
	}

	n := min(oldPayload, size)
	data := a.r.Bytes()
	copy(data[int(np):int(np)+n], data[int(p):int(p)+n])

	if err := a.Free(p); err != nil {
		return Nil, err
	}
	return np, nil
}

// Calloc allocates count*size bytes and zeroes the whole payload. An
// overflowing product is rejected with ErrOverflow.
func (a *SegAllocator) Calloc(count, size int) (Ptr, error) {
	if !a.ready {
		return Nil, ErrNotInitialized
	}
	a.stats.callocCalls++
	if count < 0 || size < 0 {
		return Nil, ErrBadSize
	}
	if count != 0 && size > math.MaxInt/count {
		return Nil, fmt.Errorf("%w: %d * %d", ErrOverflow, count, size)
	}

	p, err := a.Alloc(count * size)
	if err != nil || p == Nil {
		return p, err
	}
	clear(a.payload(int(p)))
	return p, nil
}

// Bytes returns the payload of the allocated block at p, or nil when p is
// not a live allocation. The slice is capped at the payload so appends cannot
// reach the footer, and it is invalidated by the next call that grows the heap.
func (a *SegAllocator) Bytes(p Ptr) []byte {
	if p == Nil || !a.ready || a.validate(p) != nil {
		return nil
	}
	return a.payload(int(p))
}

// UsableSize reports the payload capacity of the block at p, which may exceed
// the size originally requested.
func (a *SegAllocator) UsableSize(p Ptr) (int, error) {
	if !a.ready {
		return 0, ErrNotInitialized
	}
	if err := a.validate(p); err != nil {
		return 0, err
	}
	return int(a.blockSize(int(p))) - tagOverhead, nil
}

func (a *SegAllocator) payload(bp int) []byte {
	end := bp + int(a.blockSize(bp)) - tagOverhead
	return a.r.Bytes()[bp:end:end]
}

// extendHeap grows the region by n bytes (rounded to an even word count),
// turns the new space into one free block followed by a fresh epilogue, and
// coalesces it with a free block that ended the old heap. The region is not
// touched when the extension fails.
func (a *SegAllocator) extendHeap(n int) (int, error) {
	size := format.EvenWords(n)
	if int64(size)+a.r.Size() > math.MaxUint32 {
		a.log.Warn("heap extension beyond 32-bit offsets", "requested", n, "heap_bytes", a.r.Size())
		return 0, fmt.Errorf("%w: %w: heap would exceed 4GiB", ErrNoSpace, ErrTooLarge)
	}

	bp, err := a.r.Extend(size)
	if err != nil {
		a.log.Warn("heap exhausted", "requested", n, "granted", 0, "heap_bytes", a.r.Size(), "err", err)
		return 0, fmt.Errorf("%w: extend by %d: %w", ErrNoSpace, size, err)
	}

	// The old epilogue header becomes the new block's header.
	a.setTags(bp, uint32(size), false)
	a.setPred(bp, 0)
	a.setSucc(bp, 0)
	a.put(hdrp(a.nextBlk(bp)), format.Pack(0, true))

	a.stats.growCalls++
	a.stats.growBytes += int64(size)
	a.log.Debug("heap extended", "requested", n, "granted", size, "heap_bytes", a.r.Size())
	if a.onGrow != nil {
		a.onGrow(n, size)
	}

	a.insertFreeBlock(bp)
	return a.coalesce(bp), nil
}

// inBounds reports whether bp could be the pointer of a real block: aligned,
// past the prologue and leaving room for a minimum block before the epilogue.
func (a *SegAllocator) inBounds(bp int) bool {
	return bp >= format.FirstBlockOff && format.IsAligned8(bp) && bp+minBlock <= len(a.r.Bytes())
}

// validate applies the misuse policy: every pointer handed to Free, Realloc,
// UsableSize or Bytes must name a live allocated block.
func (a *SegAllocator) validate(p Ptr) error {
	bp := int(p)
	if !a.inBounds(bp) {
		return fmt.Errorf("%w: %#x outside heap", ErrBadPtr, uint32(p))
	}
	hdr := a.get(hdrp(bp))
	size := format.TagSize(hdr)
	if size < minBlock || hdrp(bp)+int(size) > len(a.r.Bytes())-wsize {
		return fmt.Errorf("%w: %#x has implausible size %d", ErrBadPtr, uint32(p), size)
	}
	ftr := a.get(bp + int(size) - dsize)
	if format.TagSize(ftr) != size || format.TagAllocated(ftr) != format.TagAllocated(hdr) {
		return fmt.Errorf("%w: %#x header/footer mismatch", ErrBadPtr, uint32(p))
	}
	if a.cfg.Strict && !a.isBlockStart(bp) {
		return fmt.Errorf("%w: %#x is not a block start", ErrBadPtr, uint32(p))
	}
	if !format.TagAllocated(hdr) {
		return fmt.Errorf("%w: %#x", ErrDoubleFree, uint32(p))
	}
	return nil
}

func (a *SegAllocator) isBlockStart(target int) bool {
	found := false
	a.walk(func(bp int) bool {
		if bp >= target {
			found = bp == target
			return false
		}
		return true
	})
	return found
}
