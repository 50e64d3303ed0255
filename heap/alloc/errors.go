package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSpace indicates that no free block fit and the region could not grow.
	ErrNoSpace = errors.New("alloc: no free block large enough")

	// ErrBadPtr indicates a pointer that was never returned by Alloc, or whose
	// boundary tags have been overwritten.
	ErrBadPtr = errors.New("alloc: bad pointer")

	// ErrDoubleFree indicates an attempt to release a block that is already free.
	ErrDoubleFree = errors.New("alloc: block already free")

	// ErrOverflow indicates that count*size in Calloc does not fit in an int.
	ErrOverflow = errors.New("alloc: size overflow")

	// ErrTooLarge indicates a request beyond what a 32-bit boundary tag can describe.
	ErrTooLarge = errors.New("alloc: request too large")

	// ErrBadSize indicates a negative size or count.
	ErrBadSize = errors.New("alloc: negative size")

	// ErrNotInitialized indicates use of an allocator whose Init failed or never ran.
	ErrNotInitialized = errors.New("alloc: heap not initialized")

	// ErrRegionInUse indicates Init on a non-empty region that cannot be reset.
	ErrRegionInUse = errors.New("alloc: region already holds data")

	// ErrCorrupt indicates a violated heap invariant.
	ErrCorrupt = errors.New("alloc: heap corrupt")
)

// InvariantError reports the first heap invariant found broken by Check.
type InvariantError struct {
	Label string // caller-supplied tag, e.g. the operation just performed
	Off   Ptr    // block the violation was found at, Nil when not block-specific
	Msg   string
}

func (e *InvariantError) Error() string {
	if e.Off != Nil {
		return fmt.Sprintf("alloc: invariant violated (%s) at %#x: %s", e.Label, uint32(e.Off), e.Msg)
	}
	return fmt.Sprintf("alloc: invariant violated (%s): %s", e.Label, e.Msg)
}

func (e *InvariantError) Unwrap() error { return ErrCorrupt }
