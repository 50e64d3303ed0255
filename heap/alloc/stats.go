package alloc

// counters holds internal allocator statistics.
type counters struct {
	allocCalls    int64 // Total Alloc() calls, including those made by Realloc and Calloc
	allocFastPath int64 // Allocations satisfied from a free list
	allocSlowPath int64 // Allocations that required extendHeap
	freeCalls     int64 // Total Free() calls on live blocks
	reallocCalls  int64
	callocCalls   int64
	growCalls     int64 // Successful extendHeap calls
	growBytes     int64 // Total bytes added via extendHeap
	splits        int64 // Blocks split by place
	coalescePrev  int64 // Merges with the preceding block only
	coalesceNext  int64 // Merges with the following block only
	coalesceBoth  int64 // Three-way merges
}

// Stats is a point-in-time snapshot of the allocator: operation counters plus
// a census of the heap taken by walking every block.
type Stats struct {
	AllocCalls    int64
	AllocFastPath int64
	AllocSlowPath int64
	FreeCalls     int64
	ReallocCalls  int64
	CallocCalls   int64
	GrowCalls     int64
	GrowBytes     int64
	SplitCount    int64
	CoalescePrev  int64
	CoalesceNext  int64
	CoalesceBoth  int64

	HeapBytes       int64 // Region size, metadata included
	AllocatedBytes  int64 // Sum of allocated block sizes (tags included)
	AllocatedBlocks int64
	FreeBytes       int64 // Sum of free block sizes
	FreeBlocks      int64
	LargestFree     int64 // Size of the largest free block, 0 if none
	ClassBlocks     [NumClasses]int64
}

// Utilization is the fraction of the heap held by allocated blocks.
func (s Stats) Utilization() float64 {
	if s.HeapBytes == 0 {
		return 0
	}
	return float64(s.AllocatedBytes) / float64(s.HeapBytes)
}

// Fragmentation is 1 - largest free / total free: 0 when all free space is a
// single block, approaching 1 as it splinters.
func (s Stats) Fragmentation() float64 {
	if s.FreeBytes == 0 {
		return 0
	}
	return 1 - float64(s.LargestFree)/float64(s.FreeBytes)
}

// Stats returns the counters and a fresh heap census. O(blocks).
func (a *SegAllocator) Stats() Stats {
	c := a.stats
	s := Stats{
		AllocCalls:    c.allocCalls,
		AllocFastPath: c.allocFastPath,
		AllocSlowPath: c.allocSlowPath,
		FreeCalls:     c.freeCalls,
		ReallocCalls:  c.reallocCalls,
		CallocCalls:   c.callocCalls,
		GrowCalls:     c.growCalls,
		GrowBytes:     c.growBytes,
		SplitCount:    c.splits,
		CoalescePrev:  c.coalescePrev,
		CoalesceNext:  c.coalesceNext,
		CoalesceBoth:  c.coalesceBoth,
		HeapBytes:     a.r.Size(),
	}
	if !a.ready {
		return s
	}

	a.walk(func(bp int) bool {
		size := int64(a.blockSize(bp))
		if a.isAllocated(bp) {
			s.AllocatedBytes += size
			s.AllocatedBlocks++
			return true
		}
		s.FreeBytes += size
		s.FreeBlocks++
		s.LargestFree = max(s.LargestFree, size)
		s.ClassBlocks[classOf(uint32(size))]++
		return true
	})
	return s
}
