// Package heap provides the growable byte regions that back a segregated
// free-list heap.
//
// # Overview
//
// A Region is a contiguous byte range that only ever grows at its high end.
// The allocator in heap/alloc asks it for more bytes with Extend and refers to
// everything inside it by offset, so a region is free to move its backing
// storage (re-slice, remap) as long as previously handed-out offsets keep
// their contents.
//
// # Implementations
//
//   - Memory: a byte slice with a hard cap, the default for tests and tools.
//   - Image: a read-only mapping of a heap file for offline checks.
//   - File: a file mapped read-write with mmap (linux, darwin) or mirrored
//     into a byte slice elsewhere. A File heap survives the process and can be
//     re-attached with alloc.Attach.
//
// # Exhaustion
//
// Extend never grows partially. When the cap would be exceeded it returns
// ErrExhausted and leaves the region exactly as it was.
//
// # Thread Safety
//
// Regions are not thread-safe. The allocator that owns a region serialises
// access to it.
package heap
