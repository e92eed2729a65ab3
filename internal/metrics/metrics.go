// Package metrics observes batch runs without influencing their scheduling.
package metrics

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Recorder tracks how many items a batch has processed and captures resource
// snapshots around a run. The processed counter counts every item that reaches
// a terminal state, whether it succeeded or failed.
type Recorder struct {
	processed atomic.Uint64
}

// MarkProcessed records one item reaching a terminal state.
func (r *Recorder) MarkProcessed() {
	r.processed.Add(1)
}

// Processed returns the number of items processed so far.
func (r *Recorder) Processed() uint64 {
	return r.processed.Load()
}

// Snapshot captures the state of the process and the recorder at one moment.
type Snapshot struct {
	Time       time.Time
	HeapAlloc  uint64
	GCPause    time.Duration
	NumGC      uint32
	Goroutines int

	processed uint64
}

// Start captures a snapshot to pass to a later Finish call.
func (r *Recorder) Start() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Snapshot{
		Time:       time.Now(),
		HeapAlloc:  mem.HeapAlloc,
		GCPause:    time.Duration(mem.PauseTotalNs),
		NumGC:      mem.NumGC,
		Goroutines: runtime.NumGoroutine(),
		processed:  r.processed.Load(),
	}
}

// Report summarizes a run relative to its starting snapshot.
type Report struct {
	Elapsed   time.Duration
	Processed uint64

	HeapAllocDelta int64
	GCPause        time.Duration
	Collections    uint32

	GoroutinesStart int
	GoroutinesEnd   int
}

// Finish compares the current state of the process against start and returns
// the differences.
func (r *Recorder) Finish(start Snapshot) Report {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Report{
		Elapsed:         time.Since(start.Time),
		Processed:       r.processed.Load() - start.processed,
		HeapAllocDelta:  int64(mem.HeapAlloc) - int64(start.HeapAlloc),
		GCPause:         time.Duration(mem.PauseTotalNs) - start.GCPause,
		Collections:     mem.NumGC - start.NumGC,
		GoroutinesStart: start.Goroutines,
		GoroutinesEnd:   runtime.NumGoroutine(),
	}
}
