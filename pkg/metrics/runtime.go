package metrics

import (
	"context"
	"runtime"
	"time"
)

// CollectRuntime samples goroutine and heap gauges every interval until ctx
// is done.
func CollectRuntime(ctx context.Context, r *Registry, interval time.Duration) {
	goroutines := r.Gauge("process_goroutines", "Number of live goroutines.")
	heap := r.Gauge("process_heap_alloc_bytes", "Bytes of allocated heap objects.")
	gcs := r.Gauge("process_gc_cycles", "Completed GC cycles.")

	sample := func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		goroutines.Set(float64(runtime.NumGoroutine()))
		heap.Set(float64(ms.HeapAlloc))
		gcs.Set(float64(ms.NumGC))
	}
	sample()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sample()
		}
	}
}
