package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/segheap/heap"
	"github.com/joshuapare/segheap/heap/alloc"
)

func init() {
	rootCmd.AddCommand(newCheckCmd())
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a persisted heap image",
		Long: `The check command maps a heap file read-only and verifies every
structural invariant: boundary tags, block accounting, coalescing and the
membership, order and links of every free list. It exits non-zero when the
heap is corrupt.

Example:
  heapctl check scratch.heap
  heapctl check scratch.heap --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0])
		},
	}
}

type checkResult struct {
	File  string       `json:"file"`
	Valid bool         `json:"valid"`
	Error string       `json:"error,omitempty"`
	Off   uint32       `json:"offset,omitempty"`
	Stats *alloc.Stats `json:"stats,omitempty"`
}

// attachImage opens path read-only and attaches an allocator to it. The
// returned close func releases the mapping.
func attachImage(cmd *cobra.Command, path string) (*alloc.SegAllocator, func() error, error) {
	cfg, limit, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	printVerbose("Opening heap: %s\n", path)
	img, err := heap.OpenImage(path, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open heap: %w", err)
	}
	a, err := alloc.Attach(img, nil, cfg)
	if err != nil {
		_ = img.Close()
		return nil, nil, err
	}
	return a, img.Close, nil
}

func runCheck(cmd *cobra.Command, path string) error {
	result := checkResult{File: path}

	a, closeImg, err := attachImage(cmd, path)
	if err == nil {
		defer closeImg()
		st := a.Stats()
		result.Valid = true
		result.Stats = &st
	} else {
		result.Error = err.Error()
		var ie *alloc.InvariantError
		if errors.As(err, &ie) {
			result.Off = uint32(ie.Off)
		}
	}

	if jsonOut {
		if jerr := printJSON(result); jerr != nil {
			return jerr
		}
		return err
	}

	if err != nil {
		printInfo("%s: %s\n  %v\n", path, paint(badStyle, "INVALID"), err)
		return err
	}
	st := result.Stats
	printInfo("%s: %s\n", path, paint(okStyle, "OK"))
	printInfo("  heap:      %s\n", humanize.IBytes(uint64(st.HeapBytes)))
	printInfo("  allocated: %s in %d blocks\n", humanize.IBytes(uint64(st.AllocatedBytes)), st.AllocatedBlocks)
	printInfo("  free:      %s in %d blocks (largest %s)\n",
		humanize.IBytes(uint64(st.FreeBytes)), st.FreeBlocks, humanize.IBytes(uint64(st.LargestFree)))
	return nil
}
