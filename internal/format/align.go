package format

// Alignment utilities for block sizes and region growth.

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
//	Align8(16) = 16
func Align8(n int) int {
	return (n + DoubleSize - 1) &^ (DoubleSize - 1)
}

// EvenWords rounds a byte count up to an even number of words, which keeps
// every extension a multiple of DoubleSize.
func EvenWords(n int) int {
	words := (n + WordSize - 1) / WordSize
	if words%2 != 0 {
		words++
	}
	return words * WordSize
}

// AlignPage returns n aligned up to the given power-of-two page size.
func AlignPage(n, page int) int {
	return (n + page - 1) &^ (page - 1)
}

// AlignPageDown returns n aligned down to the given power-of-two page size.
func AlignPageDown(n, page int) int {
	return n &^ (page - 1)
}

// IsAligned8 reports whether n sits on an 8-byte boundary.
func IsAligned8(n int) bool {
	return n&(DoubleSize-1) == 0
}
