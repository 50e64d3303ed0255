package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/segheap/heap"
	"github.com/joshuapare/segheap/heap/alloc"
	"github.com/joshuapare/segheap/heap/dirty"
	"github.com/joshuapare/segheap/heap/metrics"
)

var (
	stressOps        int
	stressSeed       uint64
	stressMaxSize    int
	stressCheckEvery int
	stressFile       string
	stressDrain      bool
	stressMetrics    bool
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVarP(&stressOps, "ops", "n", 10000, "Number of operations to run")
	cmd.Flags().Uint64Var(&stressSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&stressMaxSize, "max-size", 4096, "Largest request size in bytes")
	cmd.Flags().IntVar(&stressCheckEvery, "check-every", 100, "Verify heap invariants every N operations (0 = only at the end)")
	cmd.Flags().StringVar(&stressFile, "file", "", "Back the heap with this file instead of memory")
	cmd.Flags().BoolVar(&stressDrain, "drain", false, "Free every live block before exiting")
	cmd.Flags().BoolVar(&stressMetrics, "metrics", false, "Print Prometheus metrics after the run")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Run a seeded random workload against a fresh heap",
		Long: `The stress command runs a reproducible mix of alloc, free, realloc and
calloc against a new heap, verifying payload integrity and heap invariants as
it goes. With --file the heap is persisted and can be inspected afterwards
with check and dump.

Example:
  heapctl stress -n 100000 --seed 7
  heapctl stress --file scratch.heap --check-every 1
  heapctl stress --max-heap 4MB --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd)
		},
	}
}

type stressResult struct {
	Ops      int           `json:"ops"`
	Seed     uint64        `json:"seed"`
	Live     int           `json:"live"`
	Failures int           `json:"alloc_failures"`
	Checks   int           `json:"checks"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Stats    alloc.Stats   `json:"stats"`
}

// liveBlock remembers what was written into a live allocation.
type liveBlock struct {
	size int
	fill byte
}

type workload struct {
	a    *alloc.SegAllocator
	rng  *rand.Rand
	live map[alloc.Ptr]liveBlock
	ptrs []alloc.Ptr

	failures int
}

func (w *workload) size() int {
	if w.rng.IntN(8) == 0 {
		return 1 + w.rng.IntN(24)
	}
	return 1 + w.rng.IntN(stressMaxSize)
}

func (w *workload) remember(p alloc.Ptr, size int, fill byte) {
	buf := w.a.Bytes(p)
	for i := range size {
		buf[i] = fill
	}
	w.live[p] = liveBlock{size: size, fill: fill}
}

func (w *workload) verify(p alloc.Ptr, n int) error {
	lb := w.live[p]
	buf := w.a.Bytes(p)
	if buf == nil {
		return fmt.Errorf("block %#x lost", uint32(p))
	}
	for i := range min(n, lb.size) {
		if buf[i] != lb.fill {
			return fmt.Errorf("block %#x byte %d is %#x, want %#x", uint32(p), i, buf[i], lb.fill)
		}
	}
	return nil
}

// step runs one random operation. Exhaustion is counted, not fatal.
func (w *workload) step(i int) error {
	fill := byte(i%251 + 1)
	op := w.rng.IntN(10)
	if len(w.ptrs) == 0 {
		op = 0
	}

	switch {
	case op < 4:
		size := w.size()
		p, err := w.a.Alloc(size)
		if err != nil {
			w.failures++
			return allowExhaustion(err)
		}
		w.remember(p, size, fill)
		w.ptrs = append(w.ptrs, p)

	case op < 7:
		j := w.rng.IntN(len(w.ptrs))
		p := w.ptrs[j]
		if err := w.verify(p, w.live[p].size); err != nil {
			return err
		}
		if err := w.a.Free(p); err != nil {
			return err
		}
		delete(w.live, p)
		w.ptrs[j] = w.ptrs[len(w.ptrs)-1]
		w.ptrs = w.ptrs[:len(w.ptrs)-1]

	case op < 9:
		j := w.rng.IntN(len(w.ptrs))
		p := w.ptrs[j]
		old := w.live[p]
		size := w.size()
		q, err := w.a.Realloc(p, size)
		if err != nil {
			w.failures++
			return allowExhaustion(err)
		}
		delete(w.live, p)
		w.live[q] = old
		if err := w.verify(q, size); err != nil {
			return fmt.Errorf("realloc %#x -> %#x: %w", uint32(p), uint32(q), err)
		}
		w.remember(q, size, fill)
		w.ptrs[j] = q

	default:
		count := 1 + w.rng.IntN(8)
		each := 1 + w.size()/count
		p, err := w.a.Calloc(count, each)
		if err != nil {
			w.failures++
			return allowExhaustion(err)
		}
		for k, b := range w.a.Bytes(p) {
			if b != 0 {
				return fmt.Errorf("calloc %#x byte %d not zeroed", uint32(p), k)
			}
		}
		w.remember(p, count*each, fill)
		w.ptrs = append(w.ptrs, p)
	}
	return nil
}

func allowExhaustion(err error) error {
	if errors.Is(err, alloc.ErrNoSpace) {
		return nil
	}
	return err
}

func runStress(cmd *cobra.Command) error {
	cfg, limit, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if stressMaxSize < 1 {
		return fmt.Errorf("--max-size must be positive, got %d", stressMaxSize)
	}

	var (
		region heap.Region
		file   *heap.File
		dt     *dirty.Tracker
	)
	if stressFile != "" {
		printVerbose("Creating heap file: %s\n", stressFile)
		file, err = heap.Create(stressFile, limit)
		if err != nil {
			return fmt.Errorf("failed to create heap file: %w", err)
		}
		defer file.Close()
		region = file
		dt = dirty.NewTracker(file)
	} else {
		region = heap.NewMemory(int(limit))
	}

	var tracker alloc.DirtyTracker
	if dt != nil {
		tracker = dt
	}
	a, err := alloc.New(region, tracker, cfg)
	if err != nil {
		return err
	}

	w := &workload{
		a:    a,
		rng:  rand.New(rand.NewPCG(stressSeed, stressSeed^0x9e3779b97f4a7c15)),
		live: make(map[alloc.Ptr]liveBlock),
	}
	checks := 0
	start := time.Now()
	for i := range stressOps {
		if err := w.step(i); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
		if stressCheckEvery > 0 && (i+1)%stressCheckEvery == 0 {
			checks++
			if err := a.Check(fmt.Sprintf("op %d", i)); err != nil {
				return err
			}
		}
	}

	if stressDrain {
		for _, p := range w.ptrs {
			if err := a.Free(p); err != nil {
				return err
			}
		}
		w.ptrs = nil
		clear(w.live)
	}
	checks++
	if err := a.Check("final"); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if dt != nil {
		printVerbose("Flushing %d dirty ranges\n", dt.Len())
		if err := dt.Flush(context.Background()); err != nil {
			return fmt.Errorf("failed to flush heap file: %w", err)
		}
	}

	result := stressResult{
		Ops:      stressOps,
		Seed:     stressSeed,
		Live:     len(w.ptrs),
		Failures: w.failures,
		Checks:   checks,
		Elapsed:  elapsed,
		Stats:    a.Stats(),
	}

	if jsonOut {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		printStressSummary(result)
	}

	if stressMetrics {
		return writeMetrics(a)
	}
	return nil
}

func printStressSummary(r stressResult) {
	if quiet {
		return
	}
	p := message.NewPrinter(language.English)
	st := r.Stats

	p.Fprintf(stdout, "ops:        %d (seed %d, %d checks, %v)\n", r.Ops, r.Seed, r.Checks, r.Elapsed.Round(time.Millisecond))
	p.Fprintf(stdout, "calls:      alloc %d  free %d  realloc %d  calloc %d\n",
		st.AllocCalls, st.FreeCalls, st.ReallocCalls, st.CallocCalls)
	p.Fprintf(stdout, "placement:  %d from free lists, %d after growth, %d splits, %d exhausted\n",
		st.AllocFastPath, st.AllocSlowPath, st.SplitCount, r.Failures)
	p.Fprintf(stdout, "coalesce:   prev %d  next %d  both %d\n", st.CoalescePrev, st.CoalesceNext, st.CoalesceBoth)
	p.Fprintf(stdout, "growth:     %d extensions, %s\n", st.GrowCalls, humanize.IBytes(uint64(st.GrowBytes)))
	p.Fprintf(stdout, "heap:       %s, %d live blocks, %s allocated, %s free in %d blocks\n",
		humanize.IBytes(uint64(st.HeapBytes)), r.Live,
		humanize.IBytes(uint64(st.AllocatedBytes)), humanize.IBytes(uint64(st.FreeBytes)), st.FreeBlocks)
	p.Fprintf(stdout, "efficiency: %.1f%% utilization, %.1f%% fragmentation\n",
		100*st.Utilization(), 100*st.Fragmentation())
}

func writeMetrics(src metrics.StatsSource) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(src, nil)); err != nil {
		return err
	}
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(stdout, mf); err != nil {
			return err
		}
	}
	return nil
}
