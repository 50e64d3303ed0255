package alloc

// Each size class is an intrusive doubly linked list threaded through the
// payload of its free blocks and kept in ascending size order. The head of
// class c lives in the c-th word of the region.

// insertFreeBlock links bp into its class list before the first member whose
// size is >= its own. O(class length).
func (a *SegAllocator) insertFreeBlock(bp int) {
	size := a.blockSize(bp)
	class := classOf(size)

	pred, succ := 0, a.head(class)
	for succ != 0 && a.blockSize(succ) < size {
		pred = succ
		succ = a.succ(succ)
	}

	a.setPred(bp, pred)
	a.setSucc(bp, succ)
	if pred == 0 {
		a.setHead(class, bp)
	} else {
		a.setSucc(pred, bp)
	}
	if succ != 0 {
		a.setPred(succ, bp)
	}
}

// removeFreeBlock unlinks bp using its own links. The header must still hold
// the size bp was inserted under.
func (a *SegAllocator) removeFreeBlock(bp int) {
	class := classOf(a.blockSize(bp))
	pred, succ := a.pred(bp), a.succ(bp)

	if pred == 0 {
		a.setHead(class, succ)
	} else {
		a.setSucc(pred, succ)
	}
	if succ != 0 {
		a.setPred(succ, pred)
	}
}

// findFit scans classes upward from the class of asize and returns the first
// block that is large enough. Because lists are sorted, the hit is the
// smallest fit within the first class that has one. Returns 0 on a miss.
func (a *SegAllocator) findFit(asize uint32) int {
	for class := classOf(asize); class < NumClasses; class++ {
		for bp := a.head(class); bp != 0; bp = a.succ(bp) {
			if a.blockSize(bp) >= asize {
				return bp
			}
		}
	}
	return 0
}

// FreeList returns the members of class c in list order.
func (a *SegAllocator) FreeList(class int) []Block {
	if !a.ready || class < 0 || class >= NumClasses {
		return nil
	}
	var out []Block
	limit := len(a.r.Bytes()) / minBlock
	for bp := a.head(class); bp != 0 && a.inBounds(bp) && len(out) <= limit; bp = a.succ(bp) {
		out = append(out, a.decode(bp))
	}
	return out
}
