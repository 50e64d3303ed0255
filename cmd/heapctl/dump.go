package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/segheap/heap/alloc"
)

var dumpClass int

func init() {
	cmd := newDumpCmd()
	cmd.Flags().IntVar(&dumpClass, "class", -1, "Only list the members of this size class")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Print every block and free list of a heap image",
		Long: `The dump command prints the physical block chain of a heap file
followed by the contents of every non-empty size class. The image must pass
check first.

Example:
  heapctl dump scratch.heap
  heapctl dump scratch.heap --class 6
  heapctl dump scratch.heap --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, args[0])
		},
	}
}

type dumpResult struct {
	Blocks []alloc.Block         `json:"blocks"`
	Lists  map[int][]alloc.Block `json:"lists"`
}

func runDump(cmd *cobra.Command, path string) error {
	a, closeImg, err := attachImage(cmd, path)
	if err != nil {
		return err
	}
	defer closeImg()

	if dumpClass >= 0 {
		list := a.FreeList(dumpClass)
		if jsonOut {
			return printJSON(list)
		}
		lo, hi := alloc.ClassRange(dumpClass)
		printInfo("class %d [%d, %d]: %d blocks\n", dumpClass, lo, hi, len(list))
		for _, b := range list {
			printInfo("  %#08x  %d\n", uint32(b.Off), b.Size)
		}
		return nil
	}

	if jsonOut {
		res := dumpResult{Lists: make(map[int][]alloc.Block)}
		a.Walk(func(b alloc.Block) bool {
			res.Blocks = append(res.Blocks, b)
			return true
		})
		for c := range alloc.NumClasses {
			if l := a.FreeList(c); len(l) > 0 {
				res.Lists[c] = l
			}
		}
		return printJSON(res)
	}

	if quiet {
		return nil
	}
	return a.Dump(stdout, path)
}
