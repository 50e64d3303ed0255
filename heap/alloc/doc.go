// Package alloc implements a malloc-family allocator over a heap.Region using
// segregated free lists and boundary tags.
//
// # Overview
//
// Every block carries a 4-byte header and an identical 4-byte footer holding
// its size and an allocated bit, so both physical neighbours of any block are
// found in O(1). Free blocks are threaded onto one of 14 size-class lists
// through links stored in their own payload; the list heads live in the first
// 56 bytes of the region. Nothing about the heap is kept outside the region,
// which is what lets a file-backed heap be re-attached with Attach.
//
// # Size Classes
//
//	class  0: 1..8       class  7: 257..512
//	class  1: 9..16      class  8: 513..1024
//	class  2: 17..24     class  9: 1025..2048
//	class  3: 25..32     class 10: 2049..4096
//	class  4: 33..64     class 11: 4097..8192
//	class  5: 65..128    class 12: 8193..16384
//	class  6: 129..256   class 13: 16385..
//
// Each list is kept sorted by size, so the first hit in the first class that
// has one is also the smallest block in that class that fits.
//
// # Handles
//
// Alloc returns a Ptr, the offset of the payload from the region base, rather
// than a Go pointer or slice. Regions may move their backing memory when they
// grow; Ptr values stay valid, slices from Bytes do not.
//
// # Usage Example
//
//	a, err := alloc.New(heap.NewMemory(0), nil, nil)
//	if err != nil {
//	    return err
//	}
//	p, err := a.Alloc(100)
//	if err != nil {
//	    return err
//	}
//	copy(a.Bytes(p), payload)
//	p, err = a.Realloc(p, 400)
//	...
//	err = a.Free(p)
//
// # Misuse
//
// Free, Realloc, UsableSize and Bytes validate their pointer: it must be in
// range, aligned, and have matching boundary tags. A pointer to a block that
// is already free yields ErrDoubleFree. Config.Strict additionally walks the
// block chain to prove the pointer is a block start.
//
// # Concurrency
//
// SegAllocator is not safe for concurrent use. Wrap it with NewLocked to share
// one heap between goroutines.
package alloc
