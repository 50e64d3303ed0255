package alloc

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildClass6 leaves free blocks of 200, 136 and 160 bytes separated by
// allocated guards, so they share class 6 without coalescing.
func buildClass6(t *testing.T, a *SegAllocator) (p200, p136, p160 Ptr) {
	t.Helper()
	var err error
	guard := func() {
		_, err := a.Alloc(16)
		require.NoError(t, err)
	}

	p200, err = a.Alloc(192)
	require.NoError(t, err)
	guard()
	p136, err = a.Alloc(128)
	require.NoError(t, err)
	guard()
	p160, err = a.Alloc(152)
	require.NoError(t, err)
	guard()

	require.NoError(t, a.Free(p200))
	require.NoError(t, a.Free(p136))
	require.NoError(t, a.Free(p160))
	requireHeapOK(t, a, "build class 6")
	return p200, p136, p160
}

func sizesOf(blocks []Block) []uint32 {
	out := make([]uint32, len(blocks))
	for i, b := range blocks {
		out[i] = b.Size
	}
	return out
}

func TestFreeList_SortedAscending(t *testing.T) {
	a := newTestAllocator(t, 0)
	buildClass6(t, a)

	list := a.FreeList(6)
	sizes := sizesOf(list)
	assert.True(t, slices.IsSorted(sizes), "sizes %v", sizes)
	assert.Subset(t, sizes, []uint32{136, 160, 200})

	// Back links mirror forward links.
	for i, b := range list {
		if i == 0 {
			assert.Equal(t, Nil, b.Pred)
		} else {
			assert.Equal(t, list[i-1].Off, b.Pred)
		}
		if i == len(list)-1 {
			assert.Equal(t, Nil, b.Succ)
		} else {
			assert.Equal(t, list[i+1].Off, b.Succ)
		}
	}
}

func TestFindFit_SmallestInFirstClass(t *testing.T) {
	a := newTestAllocator(t, 0)
	_, _, p160 := buildClass6(t, a)
	grows := setupGrowCounter(a)

	// 144 bytes needs a 152-byte block: 136 is too small, 160 is the first fit.
	p, err := a.Alloc(144)
	require.NoError(t, err)
	assert.Equal(t, p160, p)
	assert.Empty(t, *grows)
	requireHeapOK(t, a, "fit")
}

func TestFindFit_SkipsToHigherClass(t *testing.T) {
	a := newTestAllocator(t, 0)
	buildClass6(t, a)

	// Nothing in classes 1..5 yet: a 16-byte request is served from class 6,
	// starting with its smallest member.
	p, err := a.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, uint32(24), a.decode(int(p)).Size)
	requireHeapOK(t, a, "skip")
}

func TestFreeList_OutOfRange(t *testing.T) {
	a := newTestAllocator(t, 0)
	assert.Nil(t, a.FreeList(-1))
	assert.Nil(t, a.FreeList(NumClasses))
}

func TestCoalesce_FourCases(t *testing.T) {
	a := newTestAllocator(t, 0)

	pa, err := a.Alloc(16)
	require.NoError(t, err)
	pb, err := a.Alloc(16)
	require.NoError(t, err)
	pc, err := a.Alloc(16)
	require.NoError(t, err)

	// Both neighbours allocated.
	require.NoError(t, a.Free(pa))
	st := a.Stats()
	assert.Zero(t, st.CoalescePrev+st.CoalesceNext+st.CoalesceBoth)
	assert.Equal(t, int64(2), st.FreeBlocks)
	requireHeapOK(t, a, "case 1")

	// Next free: c merges with the tail remainder.
	require.NoError(t, a.Free(pc))
	st = a.Stats()
	assert.Equal(t, int64(1), st.CoalesceNext)
	assert.Equal(t, uint32(24+184), a.decode(int(pc)).Size)
	requireHeapOK(t, a, "case 2")

	// Both free: everything collapses back into one block at a.
	require.NoError(t, a.Free(pb))
	st = a.Stats()
	assert.Equal(t, int64(1), st.CoalesceBoth)
	assert.Equal(t, int64(1), st.FreeBlocks)
	assert.Equal(t, uint32(256), a.decode(int(pa)).Size)
	requireHeapOK(t, a, "case 4")

	// Previous free only.
	pa, err = a.Alloc(16)
	require.NoError(t, err)
	pb, err = a.Alloc(16)
	require.NoError(t, err)
	_, err = a.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, a.Free(pa))
	require.NoError(t, a.Free(pb))
	st = a.Stats()
	assert.Equal(t, int64(1), st.CoalescePrev)
	assert.Equal(t, uint32(48), a.decode(int(pa)).Size)
	assert.Equal(t, []uint32{48}, sizesOf(a.FreeList(4)))
	requireHeapOK(t, a, "case 3")
}
