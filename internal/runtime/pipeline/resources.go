package pipeline

import (
	"runtime/metrics"
	"sync"
)

const (
	allocBytesMetric = "/gc/heap/allocs:bytes"
	heapBytesMetric  = "/memory/classes/heap/objects:bytes"
	goroutinesMetric = "/sched/goroutines:goroutines"
)

// ResourceUsage reports the heap cost of processing alerts alongside the
// current heap and goroutine levels. Allocation counters are process wide, so
// concurrent batches are charged for each other's work.
type ResourceUsage struct {
	LastBatchAllocBytes uint64 `json:"last_batch_alloc_bytes"`
	AllocBytesPerRecord uint64 `json:"alloc_bytes_per_record"`
	HeapBytes           uint64 `json:"heap_bytes"`
	Goroutines          uint64 `json:"goroutines"`
}

// batchCost charges heap allocations to the batches that caused them.
type batchCost struct {
	mu      sync.Mutex
	samples []metrics.Sample

	totalAllocs     uint64
	lastBatchAllocs uint64
	records         uint64
}

func newBatchCost() *batchCost {
	return &batchCost{samples: []metrics.Sample{
		{Name: allocBytesMetric},
		{Name: heapBytesMetric},
		{Name: goroutinesMetric},
	}}
}

// read returns the sampled values in the order allocs, heap, goroutines.
// Metrics the runtime does not support read as zero.
func (c *batchCost) read() (allocs, heap, goroutines uint64) {
	metrics.Read(c.samples)
	values := make([]uint64, len(c.samples))
	for i, sample := range c.samples {
		if sample.Value.Kind() == metrics.KindUint64 {
			values[i] = sample.Value.Uint64()
		}
	}
	return values[0], values[1], values[2]
}

// mark returns the allocation counter at the start of a batch.
func (c *batchCost) mark() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	allocs, _, _ := c.read()
	return allocs
}

// charge attributes the allocations since start to a batch that completed
// processed records.
func (c *batchCost) charge(start uint64, processed int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	allocs, _, _ := c.read()
	var spent uint64
	if allocs > start {
		spent = allocs - start
	}
	c.lastBatchAllocs = spent
	c.totalAllocs += spent
	c.records += uint64(max(processed, 0))
}

func (c *batchCost) Snapshot() ResourceUsage {
	if c == nil {
		return ResourceUsage{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, heap, goroutines := c.read()
	usage := ResourceUsage{
		LastBatchAllocBytes: c.lastBatchAllocs,
		HeapBytes:           heap,
		Goroutines:          goroutines,
	}
	if c.records > 0 {
		usage.AllocBytesPerRecord = c.totalAllocs / c.records
	}
	return usage
}
