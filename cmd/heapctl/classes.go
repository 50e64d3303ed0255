package main

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/segheap/heap/alloc"
)

func init() {
	rootCmd.AddCommand(newClassesCmd())
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the size classes",
		Long: `The classes command prints the block-size range served by each of
the segregated free lists. Sizes include the 8 bytes of boundary tags.

Example:
  heapctl classes
  heapctl classes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses()
		},
	}
}

type classInfo struct {
	Class int    `json:"class"`
	Min   uint32 `json:"min"`
	Max   uint32 `json:"max"`
}

func runClasses() error {
	classes := make([]classInfo, alloc.NumClasses)
	for c := range classes {
		lo, hi := alloc.ClassRange(c)
		classes[c] = classInfo{Class: c, Min: lo, Max: hi}
	}

	if jsonOut {
		return printJSON(classes)
	}

	printInfo("%s\n", paint(headerStyle, fmt.Sprintf("%-6s %8s %8s", "CLASS", "MIN", "MAX")))
	for _, ci := range classes {
		upper := strconv.FormatUint(uint64(ci.Max), 10)
		if ci.Max == math.MaxUint32 {
			upper = paint(mutedStyle, "-")
		}
		printInfo("%-6d %8d %8s\n", ci.Class, ci.Min, upper)
	}
	return nil
}
