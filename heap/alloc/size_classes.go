package alloc

import (
	"math"

	"github.com/joshuapare/segheap/internal/format"
)

// NumClasses is the number of segregated free lists.
const NumClasses = format.ClassCount

// classOf returns the size class for a block size by ascending threshold
// comparison. Sizes above the last bound land in the unbounded top class.
func classOf(size uint32) int {
	for c, bound := range format.ClassBounds {
		if size <= bound {
			return c
		}
	}
	return NumClasses - 1
}

// ClassRange returns the inclusive size range covered by class c. The top
// class reports math.MaxUint32 as its upper bound.
func ClassRange(c int) (lo, hi uint32) {
	if c < 0 || c >= NumClasses {
		return 0, 0
	}
	if c > 0 {
		lo = format.ClassBounds[c-1] + 1
	}
	if c == NumClasses-1 {
		return lo, math.MaxUint32
	}
	return lo, format.ClassBounds[c]
}

// ClassOf exposes the class lookup for tools and tests.
func ClassOf(size uint32) int { return classOf(size) }
