// Package dirty provides tracking and flushing of dirty pages in a
// file-backed heap region.
//
// The tracker maintains a list of dirty byte ranges, coalesces them into
// page-aligned ranges, and flushes them through heap.Syncer (msync on
// linux/darwin).
package dirty

import (
	"context"
	"os"
	"sort"

	"github.com/joshuapare/segheap/heap"
	"github.com/joshuapare/segheap/internal/format"
)

// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
const defaultRangeCapacity = 64

// Range represents a dirty byte range (absolute region offsets).
type Range struct {
	Off int64
	Len int64
}

// Tracker accumulates dirty ranges and flushes them efficiently.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	r        heap.Region
	ranges   []Range
	pageSize int
}

// NewTracker creates a dirty tracker for the given region.
func NewTracker(r heap.Region) *Tracker {
	return &Tracker{
		r:        r,
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: os.Getpagesize(),
	}
}

// Add records a dirty range. It only appends; alignment and merging happen at
// flush time.
func (t *Tracker) Add(off, length int) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: int64(off), Len: int64(length)})
}

// Len returns the number of raw ranges recorded since the last flush.
func (t *Tracker) Len() int { return len(t.ranges) }

// Flush writes every dirty page to stable storage and clears the tracker.
// Regions that do not implement heap.Syncer have nothing to flush; the ranges
// are simply dropped.
//
// The context is checked between ranges. If cancelled mid-way, some ranges may
// have been flushed while others have not; the tracker keeps all of them.
func (t *Tracker) Flush(ctx context.Context) error {
	if len(t.ranges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s, ok := t.r.(heap.Syncer)
	if !ok {
		t.Reset()
		return nil
	}
	for _, rg := range t.Ranges() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Sync(int(rg.Off), int(rg.Len)); err != nil {
			return err
		}
	}
	t.Reset()
	return nil
}

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// DebugRanges returns a copy of the raw, uncoalesced ranges.
func (t *Tracker) DebugRanges() []Range {
	result := make([]Range, len(t.ranges))
	copy(result, t.ranges)
	return result
}

// Ranges page-aligns all ranges, clamps them to the region, sorts them, and
// merges overlapping/adjacent ranges.
func (t *Tracker) Ranges() []Range {
	if len(t.ranges) == 0 {
		return nil
	}
	limit := t.r.Size()

	aligned := make([]Range, 0, len(t.ranges))
	for _, r := range t.ranges {
		start := int64(format.AlignPageDown(int(r.Off), t.pageSize))
		end := int64(format.AlignPage(int(r.Off+r.Len), t.pageSize))
		end = min(end, limit)
		if start >= end {
			continue
		}
		aligned = append(aligned, Range{Off: start, Len: end - start})
	}
	if len(aligned) == 0 {
		return nil
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.Off+current.Len {
			current.Len = max(current.Off+current.Len, next.Off+next.Len) - current.Off
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
