package alloc

import "github.com/joshuapare/segheap/internal/format"

// Block layout (offsets relative to the block pointer bp, which is the
// payload offset handed to callers):
//
//	Allocated block:
//	    bp-4      header  <size|1>
//	    bp        payload and alignment padding
//	    bp+size-8 footer  <size|1>
//	Free block:
//	    bp-4      header  <size|0>
//	    bp        PRED: Ptr of the previous block in its class list (0 = head)
//	    bp+4      SUCC: Ptr of the next block in its class list (0 = tail)
//	    bp+size-8 footer  <size|0>
const (
	wsize       = format.WordSize
	dsize       = format.DoubleSize
	tagOverhead = format.TagOverhead
	minBlock    = format.MinBlockSize
)

func (a *SegAllocator) get(off int) uint32 {
	return format.ReadU32(a.r.Bytes(), off)
}

func (a *SegAllocator) put(off int, v uint32) {
	format.PutU32(a.r.Bytes(), off, v)
	if a.dt != nil {
		a.dt.Add(off, wsize)
	}
}

// hdrp and ftrp compute the tag positions of the block at bp.
func hdrp(bp int) int { return bp - wsize }

func (a *SegAllocator) ftrp(bp int) int { return bp + int(a.blockSize(bp)) - dsize }

func (a *SegAllocator) blockSize(bp int) uint32 { return format.TagSize(a.get(hdrp(bp))) }

func (a *SegAllocator) isAllocated(bp int) bool { return format.TagAllocated(a.get(hdrp(bp))) }

// nextBlk and prevBlk walk the physical chain in O(1) using the header of the
// current block and the footer of the preceding one.
func (a *SegAllocator) nextBlk(bp int) int { return bp + int(a.blockSize(bp)) }

func (a *SegAllocator) prevBlk(bp int) int {
	return bp - int(format.TagSize(a.get(bp-dsize)))
}

func (a *SegAllocator) prevAllocated(bp int) bool {
	return format.TagAllocated(a.get(bp - dsize))
}

// setTags writes identical header and footer tags for a block of size bytes.
func (a *SegAllocator) setTags(bp int, size uint32, allocated bool) {
	tag := format.Pack(size, allocated)
	a.put(hdrp(bp), tag)
	a.put(bp+int(size)-dsize, tag)
}

func (a *SegAllocator) pred(bp int) int { return int(a.get(bp)) }

func (a *SegAllocator) succ(bp int) int { return int(a.get(bp + wsize)) }

func (a *SegAllocator) setPred(bp, p int) { a.put(bp, uint32(p)) }

func (a *SegAllocator) setSucc(bp, s int) { a.put(bp+wsize, uint32(s)) }

func headOff(class int) int { return class * wsize }

func (a *SegAllocator) head(class int) int { return int(a.get(headOff(class))) }

func (a *SegAllocator) setHead(class, bp int) { a.put(headOff(class), uint32(bp)) }

// decode builds the Block view of the block at bp.
func (a *SegAllocator) decode(bp int) Block {
	tag := a.get(hdrp(bp))
	b := Block{Off: Ptr(bp), Size: format.TagSize(tag), State: Allocated}
	if !format.TagAllocated(tag) {
		b.State = Free
		b.Pred = Ptr(a.pred(bp))
		b.Succ = Ptr(a.succ(bp))
	}
	return b
}

// adjustSize converts a payload request into a block size: room for both
// tags, rounded to 8, never below the minimum block.
func adjustSize(size int) (uint32, error) {
	if size < 0 {
		return 0, ErrBadSize
	}
	if int64(size) > format.MaxBlockSize-tagOverhead-(dsize-1) {
		return 0, ErrTooLarge
	}
	if size <= dsize {
		return minBlock, nil
	}
	return uint32(format.Align8(size + tagOverhead)), nil
}
