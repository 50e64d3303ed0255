package alloc

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/joshuapare/segheap/internal/format"
)

// walk visits every real block in address order, stopping at the epilogue or
// at the first tag that would lead outside the region.
func (a *SegAllocator) walk(fn func(bp int) bool) {
	end := len(a.r.Bytes()) - wsize
	for bp := format.FirstBlockOff; hdrp(bp) < end; {
		size := int(a.blockSize(bp))
		if size < minBlock || hdrp(bp)+size > end {
			return
		}
		if !fn(bp) {
			return
		}
		bp += size
	}
}

// Walk calls fn for each block in address order until fn returns false.
func (a *SegAllocator) Walk(fn func(Block) bool) {
	if !a.ready {
		return
	}
	a.walk(func(bp int) bool { return fn(a.decode(bp)) })
}

// Check verifies every heap invariant and returns an *InvariantError for the
// first one broken, or nil. label is copied into the error so callers can
// tell which operation left the heap bad. Check never modifies the heap.
//
// Verified:
//   - prologue and epilogue tags
//   - every block is aligned, at least the minimum size and has header == footer
//   - block sizes plus fixed metadata account for the whole region
//   - no two physically adjacent free blocks
//   - every free block is on exactly the list of its class, and nothing else is
//   - lists are sorted ascending and their back links agree
func (a *SegAllocator) Check(label string) error {
	if !a.ready {
		return ErrNotInitialized
	}
	fail := func(bp int, msg string, args ...any) error {
		return &InvariantError{Label: label, Off: Ptr(bp), Msg: fmt.Sprintf(msg, args...)}
	}

	data := a.r.Bytes()
	if err := format.CheckLayout(data); err != nil {
		return fail(0, "%v", err)
	}

	end := len(data) - wsize
	free := make(map[int]bool)
	total := 0
	prevFree := false
	bp := format.FirstBlockOff
	for hdrp(bp) < end {
		hdr := a.get(hdrp(bp))
		size := int(format.TagSize(hdr))
		switch {
		case size == 0:
			return fail(bp, "zero-size block before end of heap (%d bytes left)", end-hdrp(bp))
		case size < minBlock:
			return fail(bp, "block size %d below minimum %d", size, minBlock)
		case hdrp(bp)+size > end:
			return fail(bp, "block size %d runs past the epilogue", size)
		}
		if !format.IsAligned8(bp) {
			return fail(bp, "payload not 8-byte aligned")
		}
		if ftr := a.get(a.ftrp(bp)); ftr != hdr {
			return fail(bp, "header %#x does not match footer %#x", hdr, ftr)
		}

		isFree := !format.TagAllocated(hdr)
		if isFree && prevFree {
			return fail(bp, "adjacent free blocks were not coalesced")
		}
		if isFree {
			free[bp] = false
		}
		prevFree = isFree
		total += size
		bp += size
	}

	if hdrp(bp) != end {
		return fail(bp, "block chain ends at %#x, region tail at %#x", hdrp(bp), end)
	}
	if epi := a.get(end); epi != format.Pack(0, true) {
		return fail(0, "bad epilogue tag %#x", epi)
	}
	if total+format.InitialSize != len(data) {
		return fail(0, "blocks cover %d bytes, expected %d", total, len(data)-format.InitialSize)
	}

	onLists := 0
	for class := range NumClasses {
		lo, hi := ClassRange(class)
		pred := 0
		var last uint32
		for cur := a.head(class); cur != 0; cur = a.succ(cur) {
			seen, ok := free[cur]
			if !ok {
				return fail(cur, "class %d lists a block that is not a free block", class)
			}
			if seen {
				return fail(cur, "block appears twice in the free lists (cycle?)")
			}
			free[cur] = true
			onLists++

			size := a.blockSize(cur)
			if size < lo || size > hi {
				return fail(cur, "size %d filed under class %d [%d, %d]", size, class, lo, hi)
			}
			if size < last {
				return fail(cur, "class %d not sorted: %d after %d", class, size, last)
			}
			if a.pred(cur) != pred {
				return fail(cur, "pred link %#x, expected %#x", a.pred(cur), pred)
			}
			last = size
			pred = cur
		}
	}
	if onLists != len(free) {
		for bp, seen := range free {
			if !seen {
				return fail(bp, "free block missing from class %d", classOf(a.blockSize(bp)))
			}
		}
	}
	return nil
}

// Dump writes a human-readable listing of every block followed by the
// non-empty class lists. It is meant for debugging and makes no attempt to
// survive a corrupt heap beyond stopping at the first implausible tag.
func (a *SegAllocator) Dump(w io.Writer, label string) error {
	if !a.ready {
		return ErrNotInitialized
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "heap %q: %d bytes\n", label, a.r.Size())
	fmt.Fprintf(tw, "OFFSET\tSIZE\tSTATE\tPRED\tSUCC\n")
	a.Walk(func(b Block) bool {
		if b.State == Free {
			fmt.Fprintf(tw, "%#08x\t%d\t%s\t%#x\t%#x\n", uint32(b.Off), b.Size, b.State, uint32(b.Pred), uint32(b.Succ))
		} else {
			fmt.Fprintf(tw, "%#08x\t%d\t%s\t-\t-\n", uint32(b.Off), b.Size, b.State)
		}
		return true
	})
	if err := tw.Flush(); err != nil {
		return err
	}

	for class := range NumClasses {
		list := a.FreeList(class)
		if len(list) == 0 {
			continue
		}
		lo, hi := ClassRange(class)
		if _, err := fmt.Fprintf(w, "class %2d [%d, %d]:", class, lo, hi); err != nil {
			return err
		}
		for _, b := range list {
			fmt.Fprintf(w, " %#x(%d)", uint32(b.Off), b.Size)
		}
		fmt.Fprintln(w)
	}
	return nil
}
