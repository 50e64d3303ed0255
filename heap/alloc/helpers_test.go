package alloc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/segheap/heap"
)

// newTestAllocator creates an allocator over a fresh in-memory region capped
// at limit bytes (0 = default cap).
func newTestAllocator(t testing.TB, limit int) *SegAllocator {
	t.Helper()
	a, err := New(heap.NewMemory(limit), nil, nil)
	require.NoError(t, err)
	requireHeapOK(t, a, "init")
	return a
}

// requireHeapOK fails the test with a heap dump if any invariant is broken.
func requireHeapOK(t testing.TB, a *SegAllocator, label string) {
	t.Helper()
	if err := a.Check(label); err != nil {
		var sb strings.Builder
		_ = a.Dump(&sb, label)
		require.FailNow(t, err.Error(), sb.String())
	}
}

// setupGrowCounter records every successful heap extension made after it is
// installed.
func setupGrowCounter(a *SegAllocator) *[]int {
	var grows []int
	a.onGrow = func(_, granted int) {
		grows = append(grows, granted)
	}
	return &grows
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// DirtyCall records one call to mockDirtyTracker.Add.
type DirtyCall struct {
	Off    int
	Length int
}

type mockDirtyTracker struct {
	calls []DirtyCall
}

func (m *mockDirtyTracker) Add(off, length int) {
	m.calls = append(m.calls, DirtyCall{Off: off, Length: length})
}

func (m *mockDirtyTracker) wasCalledAt(off int) bool {
	for _, c := range m.calls {
		if off >= c.Off && off < c.Off+c.Length {
			return true
		}
	}
	return false
}
