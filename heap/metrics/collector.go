// Package metrics exports allocator statistics to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuapare/segheap/heap/alloc"
)

const namespace = "segheap"

// StatsSource is anything that can snapshot allocator statistics, typically
// *alloc.SegAllocator or *alloc.Locked.
type StatsSource interface {
	Stats() alloc.Stats
}

// Collector turns one Stats snapshot per scrape into const metrics.
type Collector struct {
	src StatsSource

	calls      *prometheus.Desc
	grows      *prometheus.Desc
	growBytes  *prometheus.Desc
	splits     *prometheus.Desc
	coalesces  *prometheus.Desc
	heapBytes  *prometheus.Desc
	bytes      *prometheus.Desc
	blocks     *prometheus.Desc
	classFree  *prometheus.Desc
	largest    *prometheus.Desc
	fragmented *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector for src. labels are attached to every
// metric as constant labels (e.g. heap="scratch").
func NewCollector(src StatsSource, labels prometheus.Labels) *Collector {
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, labels)
	}
	return &Collector{
		src:        src,
		calls:      desc("calls_total", "Allocator entry point calls.", "op"),
		grows:      desc("grow_total", "Successful heap extensions."),
		growBytes:  desc("grow_bytes_total", "Bytes added by heap extensions."),
		splits:     desc("splits_total", "Free blocks split during placement."),
		coalesces:  desc("coalesce_total", "Free block merges by neighbour case.", "case"),
		heapBytes:  desc("heap_bytes", "Current region size including metadata."),
		bytes:      desc("block_bytes", "Bytes held by blocks, tags included.", "state"),
		blocks:     desc("blocks", "Number of blocks.", "state"),
		classFree:  desc("class_free_blocks", "Free blocks per size class.", "class"),
		largest:    desc("largest_free_bytes", "Size of the largest free block."),
		fragmented: desc("fragmentation_ratio", "1 - largest free block / total free bytes."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.calls
	ch <- c.grows
	ch <- c.growBytes
	ch <- c.splits
	ch <- c.coalesces
	ch <- c.heapBytes
	ch <- c.bytes
	ch <- c.blocks
	ch <- c.classFree
	ch <- c.largest
	ch <- c.fragmented
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	counter := func(d *prometheus.Desc, v int64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), lv...)
	}
	gauge := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, lv...)
	}

	counter(c.calls, s.AllocCalls, "alloc")
	counter(c.calls, s.FreeCalls, "free")
	counter(c.calls, s.ReallocCalls, "realloc")
	counter(c.calls, s.CallocCalls, "calloc")
	counter(c.grows, s.GrowCalls)
	counter(c.growBytes, s.GrowBytes)
	counter(c.splits, s.SplitCount)
	counter(c.coalesces, s.CoalescePrev, "prev")
	counter(c.coalesces, s.CoalesceNext, "next")
	counter(c.coalesces, s.CoalesceBoth, "both")

	gauge(c.heapBytes, float64(s.HeapBytes))
	gauge(c.bytes, float64(s.AllocatedBytes), "allocated")
	gauge(c.bytes, float64(s.FreeBytes), "free")
	gauge(c.blocks, float64(s.AllocatedBlocks), "allocated")
	gauge(c.blocks, float64(s.FreeBlocks), "free")
	for class, n := range s.ClassBlocks {
		gauge(c.classFree, float64(n), strconv.Itoa(class))
	}
	gauge(c.largest, float64(s.LargestFree))
	gauge(c.fragmented, s.Fragmentation())
}
