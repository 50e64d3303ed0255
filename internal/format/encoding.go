package format

import "encoding/binary"

// Binary encoding utilities for little-endian words.
//
// Implementation: Uses encoding/binary.LittleEndian. Tags and links are
// always written little-endian so a heap image is portable between hosts.

// PutU32 writes a uint32 value to the buffer at the specified offset in little-endian format.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// ReadU32 reads a uint32 value from the buffer at the specified offset in little-endian format.
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// Pack combines a block size and an allocated flag into a tag.
func Pack(size uint32, allocated bool) uint32 {
	if allocated {
		return size | AllocBit
	}
	return size
}

// TagSize extracts the block size from a tag.
func TagSize(tag uint32) uint32 {
	return tag & SizeMask
}

// TagAllocated extracts the allocated flag from a tag.
func TagAllocated(tag uint32) bool {
	return tag&AllocBit != 0
}
