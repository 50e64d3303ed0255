package alloc

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/segheap/heap"
	"github.com/joshuapare/segheap/internal/format"
)

// TestInit_Layout verifies the empty heap: one 256-byte free block right after
// the prologue, filed under class 6.
func TestInit_Layout(t *testing.T) {
	a := newTestAllocator(t, 0)

	st := a.Stats()
	assert.Equal(t, int64(format.InitialSize+format.ChunkSize), st.HeapBytes)
	assert.Equal(t, int64(1), st.GrowCalls)
	assert.Equal(t, int64(256), st.GrowBytes)
	assert.Equal(t, int64(1), st.FreeBlocks)
	assert.Equal(t, int64(256), st.FreeBytes)
	assert.Zero(t, st.AllocatedBytes)

	want := []Block{{Off: format.FirstBlockOff, Size: 256, State: Free}}
	if diff := cmp.Diff(want, a.FreeList(6)); diff != "" {
		t.Errorf("class 6 mismatch (-want +got):\n%s", diff)
	}
	for class := range NumClasses {
		if class != 6 {
			assert.Empty(t, a.FreeList(class), "class %d", class)
		}
	}
}

func TestInit_ResetsRegion(t *testing.T) {
	a := newTestAllocator(t, 0)
	_, err := a.Alloc(3000)
	require.NoError(t, err)

	require.NoError(t, a.Init())
	requireHeapOK(t, a, "reinit")
	st := a.Stats()
	assert.Equal(t, int64(328), st.HeapBytes)
	assert.Equal(t, int64(1), st.FreeBlocks)
	assert.Zero(t, st.AllocCalls)
}

// fixedRegion is a Region that cannot be reset.
type fixedRegion struct {
	m *heap.Memory
}

func (f fixedRegion) Bytes() []byte             { return f.m.Bytes() }
func (f fixedRegion) Size() int64               { return f.m.Size() }
func (f fixedRegion) Extend(n int) (int, error) { return f.m.Extend(n) }

func TestInit_NonEmptyRegion(t *testing.T) {
	r := fixedRegion{m: heap.NewMemory(0)}
	_, err := r.Extend(64)
	require.NoError(t, err)

	_, err = New(r, nil, nil)
	require.ErrorIs(t, err, ErrRegionInUse)
}

func TestInit_RegionTooSmall(t *testing.T) {
	_, err := New(heap.NewMemory(100), nil, nil)
	require.ErrorIs(t, err, ErrNoSpace)
	require.ErrorIs(t, err, heap.ErrExhausted)
}

func TestNotInitialized(t *testing.T) {
	a := &SegAllocator{}

	_, err := a.Alloc(8)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, a.Free(format.FirstBlockOff), ErrNotInitialized)
	require.NoError(t, a.Free(Nil))
	_, err = a.Calloc(1, 1)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.Nil(t, a.Bytes(format.FirstBlockOff))
}

// TestScenario_ImmediateReuse: a = alloc(16); b = alloc(16); free(a);
// c = alloc(16) must give c == a without growing the heap.
func TestScenario_ImmediateReuse(t *testing.T) {
	a := newTestAllocator(t, 0)
	grows := setupGrowCounter(a)

	pa, err := a.Alloc(16)
	require.NoError(t, err)
	pb, err := a.Alloc(16)
	require.NoError(t, err)
	require.NotEqual(t, pa, pb)

	require.NoError(t, a.Free(pa))
	requireHeapOK(t, a, "free a")

	pc, err := a.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, pa, pc)
	assert.Empty(t, *grows)
	requireHeapOK(t, a, "alloc c")
}

// TestScenario_GrowthOnMiss: alloc(2000) on a fresh heap triggers exactly one
// extension of at least 2000 plus tag overhead.
func TestScenario_GrowthOnMiss(t *testing.T) {
	a := newTestAllocator(t, 0)
	grows := setupGrowCounter(a)

	p, err := a.Alloc(2000)
	require.NoError(t, err)
	require.NotEqual(t, Nil, p)

	require.Len(t, *grows, 1)
	assert.GreaterOrEqual(t, (*grows)[0], 2000+format.TagOverhead)

	n, err := a.UsableSize(p)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2000)

	// The new space merged with the initial free block before the retry.
	assert.Equal(t, Ptr(format.FirstBlockOff), p)
	assert.Equal(t, int64(2), a.Stats().GrowCalls)
	requireHeapOK(t, a, "alloc 2000")
}

func TestReuseWithoutGrowth(t *testing.T) {
	cases := []struct{ n, m int }{
		{16, 16},
		{100, 50},
		{100, 100},
		{240, 8},
		{1, 1},
	}
	for _, tc := range cases {
		t.Run(strconv.Itoa(tc.n)+"_"+strconv.Itoa(tc.m), func(t *testing.T) {
			a := newTestAllocator(t, 0)
			grows := setupGrowCounter(a)

			p, err := a.Alloc(tc.n)
			require.NoError(t, err)
			require.NoError(t, a.Free(p))

			q, err := a.Alloc(tc.m)
			require.NoError(t, err)
			assert.Equal(t, p, q)
			assert.Empty(t, *grows)
			requireHeapOK(t, a, "reuse")
		})
	}
}

func TestAlloc_ZeroReturnsNil(t *testing.T) {
	a := newTestAllocator(t, 0)
	p, err := a.Alloc(0)
	require.NoError(t, err)
	assert.Equal(t, Nil, p)
	assert.Equal(t, int64(1), a.Stats().FreeBlocks)
}

func TestAlloc_AlignmentAndWritableSpan(t *testing.T) {
	a := newTestAllocator(t, 0)

	var ptrs []Ptr
	for n := 1; n <= 300; n += 7 {
		p, err := a.Alloc(n)
		require.NoError(t, err)
		require.Zero(t, int(p)%8, "alloc(%d) returned %#x", n, uint32(p))

		buf := a.Bytes(p)
		require.GreaterOrEqual(t, len(buf), n)
		require.Equal(t, len(buf), cap(buf))
		fill(buf, 0xFF)
		ptrs = append(ptrs, p)
	}
	requireHeapOK(t, a, "after fills")

	for _, p := range ptrs {
		require.NoError(t, a.Free(p))
	}
	requireHeapOK(t, a, "after frees")
	assert.Equal(t, int64(1), a.Stats().FreeBlocks)
}

func TestAlloc_SplitThreshold(t *testing.T) {
	a := newTestAllocator(t, 0)

	// 248 + 8 leftover: too small to split, the whole 256 is handed out.
	p, err := a.Alloc(240)
	require.NoError(t, err)
	n, err := a.UsableSize(p)
	require.NoError(t, err)
	assert.Equal(t, 248, n)
	assert.Zero(t, a.Stats().SplitCount)
	require.NoError(t, a.Free(p))

	// 232 + 24 leftover: split.
	p, err = a.Alloc(224)
	require.NoError(t, err)
	n, err = a.UsableSize(p)
	require.NoError(t, err)
	assert.Equal(t, 224, n)
	assert.Equal(t, int64(1), a.Stats().SplitCount)
	requireHeapOK(t, a, "split")
}

func TestAlloc_Exhaustion(t *testing.T) {
	a := newTestAllocator(t, 1024)
	p, err := a.Alloc(100)
	require.NoError(t, err)

	before := bytes.Clone(a.r.Bytes())
	stBefore := a.Stats()

	_, err = a.Alloc(2000)
	require.ErrorIs(t, err, ErrNoSpace)
	require.ErrorIs(t, err, heap.ErrExhausted)

	assert.Equal(t, before, a.r.Bytes())
	stAfter := a.Stats()
	assert.Equal(t, stBefore.HeapBytes, stAfter.HeapBytes)
	assert.Equal(t, stBefore.GrowCalls, stAfter.GrowCalls)
	requireHeapOK(t, a, "exhausted")

	// Still usable.
	require.NoError(t, a.Free(p))
	_, err = a.Alloc(500)
	require.NoError(t, err)
	requireHeapOK(t, a, "after exhaustion")
}

func TestAlloc_BadSizes(t *testing.T) {
	a := newTestAllocator(t, 0)

	_, err := a.Alloc(-1)
	require.ErrorIs(t, err, ErrBadSize)

	if strconv.IntSize == 64 {
		_, err = a.Alloc(math.MaxInt)
		require.ErrorIs(t, err, ErrTooLarge)
	}

	_, err = a.Alloc(1 << 30)
	require.ErrorIs(t, err, ErrNoSpace)
	requireHeapOK(t, a, "bad sizes")
}

func TestFree_Nil(t *testing.T) {
	a := newTestAllocator(t, 0)
	require.NoError(t, a.Free(Nil))
	assert.Zero(t, a.Stats().FreeCalls)
}

func TestFree_Misuse(t *testing.T) {
	a := newTestAllocator(t, 0)
	pa, err := a.Alloc(16)
	require.NoError(t, err)
	pb, err := a.Alloc(16)
	require.NoError(t, err)

	t.Run("out of range", func(t *testing.T) {
		require.ErrorIs(t, a.Free(8), ErrBadPtr)
		require.ErrorIs(t, a.Free(Ptr(a.r.Size())), ErrBadPtr)
		require.ErrorIs(t, a.Free(0xFFFFFFF0), ErrBadPtr)
	})

	t.Run("misaligned", func(t *testing.T) {
		require.ErrorIs(t, a.Free(pa+1), ErrBadPtr)
		require.ErrorIs(t, a.Free(pa+4), ErrBadPtr)
	})

	t.Run("interior", func(t *testing.T) {
		clear(a.Bytes(pb))
		require.ErrorIs(t, a.Free(pb+8), ErrBadPtr)
	})

	t.Run("double free", func(t *testing.T) {
		require.NoError(t, a.Free(pa))
		require.ErrorIs(t, a.Free(pa), ErrDoubleFree)
		_, err := a.Realloc(pa, 32)
		require.ErrorIs(t, err, ErrDoubleFree)
		_, err = a.UsableSize(pa)
		require.ErrorIs(t, err, ErrDoubleFree)
		require.Nil(t, a.Bytes(pa))
	})

	requireHeapOK(t, a, "misuse")
}

func TestFree_StrictRejectsForgedBlock(t *testing.T) {
	a, err := New(heap.NewMemory(0), nil, &Config{Strict: true})
	require.NoError(t, err)

	p, err := a.Alloc(100)
	require.NoError(t, err)

	// Forge a plausible 32-byte allocated block inside p's payload.
	buf := a.Bytes(p)
	format.PutU32(buf, 12, format.Pack(32, true))
	format.PutU32(buf, 16+32-8, format.Pack(32, true))

	require.ErrorIs(t, a.Free(p+16), ErrBadPtr)
	require.NoError(t, a.Free(p))
	requireHeapOK(t, a, "strict")
}

func TestFree_TagMismatch(t *testing.T) {
	a := newTestAllocator(t, 0)
	p, err := a.Alloc(16)
	require.NoError(t, err)

	// Overrun the payload into the footer.
	format.PutU32(a.r.Bytes(), int(p)+16, 0xdeadbeef)
	require.ErrorIs(t, a.Free(p), ErrBadPtr)
}

func TestRealloc_CopiesPrefix(t *testing.T) {
	a := newTestAllocator(t, 0)

	p, err := a.Alloc(100)
	require.NoError(t, err)
	pattern := make([]byte, 100)
	for i := range pattern {
		pattern[i] = byte(i*7 + 3)
	}
	copy(a.Bytes(p), pattern)

	q, err := a.Realloc(p, 200)
	require.NoError(t, err)
	assert.Equal(t, pattern, a.Bytes(q)[:100])
	requireHeapOK(t, a, "grow")

	r, err := a.Realloc(q, 40)
	require.NoError(t, err)
	assert.Equal(t, pattern[:40], a.Bytes(r)[:40])
	assert.Equal(t, int64(2), a.Stats().ReallocCalls)
	requireHeapOK(t, a, "shrink")
}

func TestRealloc_NilAndZero(t *testing.T) {
	a := newTestAllocator(t, 0)

	p, err := a.Realloc(Nil, 32)
	require.NoError(t, err)
	require.NotEqual(t, Nil, p)

	q, err := a.Realloc(p, 0)
	require.NoError(t, err)
	assert.Equal(t, Nil, q)
	require.ErrorIs(t, a.Free(p), ErrDoubleFree)
	assert.Equal(t, int64(1), a.Stats().FreeBlocks)
}

func TestRealloc_FailureKeepsOriginal(t *testing.T) {
	a := newTestAllocator(t, 1024)
	p, err := a.Alloc(64)
	require.NoError(t, err)
	copy(a.Bytes(p), "keep me")

	_, err = a.Realloc(p, 4000)
	require.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, "keep me", string(a.Bytes(p)[:7]))
	requireHeapOK(t, a, "realloc failed")
}

func TestCalloc_ZeroFill(t *testing.T) {
	a := newTestAllocator(t, 0)

	// Dirty the space first so zeroing is observable.
	p, err := a.Alloc(80)
	require.NoError(t, err)
	fill(a.Bytes(p), 0xAA)
	require.NoError(t, a.Free(p))

	q, err := a.Calloc(10, 8)
	require.NoError(t, err)
	require.Equal(t, p, q)

	buf := a.Bytes(q)
	require.GreaterOrEqual(t, len(buf), 80)
	assert.Equal(t, make([]byte, len(buf)), buf)
	assert.Equal(t, int64(1), a.Stats().CallocCalls)
}

func TestCalloc_Policy(t *testing.T) {
	a := newTestAllocator(t, 0)

	p, err := a.Calloc(0, 8)
	require.NoError(t, err)
	assert.Equal(t, Nil, p)

	_, err = a.Calloc(-1, 8)
	require.ErrorIs(t, err, ErrBadSize)

	_, err = a.Calloc(math.MaxInt/2+1, 2)
	require.ErrorIs(t, err, ErrOverflow)
	requireHeapOK(t, a, "calloc")
}

func TestBytes_InvalidHandles(t *testing.T) {
	a := newTestAllocator(t, 0)
	assert.Nil(t, a.Bytes(Nil))
	assert.Nil(t, a.Bytes(3))

	p, err := a.Alloc(10)
	require.NoError(t, err)
	assert.Len(t, a.Bytes(p), 16)
	require.NoError(t, a.Free(p))
	assert.Nil(t, a.Bytes(p))
}

func TestDirtyTracking(t *testing.T) {
	dt := &mockDirtyTracker{}
	a, err := New(heap.NewMemory(0), dt, nil)
	require.NoError(t, err)
	assert.True(t, dt.wasCalledAt(hdrp(format.PrologueOff)))

	dt.calls = nil
	p, err := a.Alloc(40)
	require.NoError(t, err)
	assert.True(t, dt.wasCalledAt(hdrp(int(p))), "header write not tracked")
	assert.True(t, dt.wasCalledAt(int(p)+48-dsize), "footer write not tracked")
	assert.True(t, dt.wasCalledAt(headOff(6)), "class head update not tracked")
}

func TestAttach_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.img")

	r, err := heap.Create(path, 1<<20)
	require.NoError(t, err)
	a, err := New(r, nil, nil)
	require.NoError(t, err)

	p, err := a.Alloc(5)
	require.NoError(t, err)
	copy(a.Bytes(p), "hello")
	big, err := a.Alloc(5000)
	require.NoError(t, err)
	require.NoError(t, a.Free(big))
	requireHeapOK(t, a, "before close")
	want := a.Stats()
	require.NoError(t, r.Close())

	r2, err := heap.Open(path, 1<<20)
	require.NoError(t, err)
	defer r2.Close()

	b, err := Attach(r2, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b.Bytes(p)[:5]))

	got := b.Stats()
	assert.Equal(t, want.HeapBytes, got.HeapBytes)
	assert.Equal(t, want.FreeBlocks, got.FreeBlocks)
	assert.Equal(t, want.AllocatedBytes, got.AllocatedBytes)

	q, err := b.Alloc(64)
	require.NoError(t, err)
	require.NoError(t, b.Free(q))
	require.NoError(t, b.Free(p))
	requireHeapOK(t, b, "after attach")
}

func TestAttach_RejectsGarbage(t *testing.T) {
	_, err := Attach(heap.NewMemory(0), nil, nil)
	require.ErrorIs(t, err, ErrCorrupt)

	m := heap.NewMemory(0)
	_, err = m.Extend(512)
	require.NoError(t, err)
	_, err = Attach(m, nil, nil)
	require.ErrorIs(t, err, ErrCorrupt)

	var ie *InvariantError
	a := newTestAllocator(t, 0)
	format.PutU32(a.r.Bytes(), hdrp(format.FirstBlockOff), format.Pack(64, false))
	_, err = Attach(a.r, nil, nil)
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, "attach", ie.Label)
}
