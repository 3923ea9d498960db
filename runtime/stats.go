package runtime

import (
	"sync/atomic"

	"github.com/wippyai/mlbridge/resource"
)

// Stats are collector and runtime counters.
type Stats struct {
	MinorCollections    int
	MajorCollections    int
	MinorWordsAllocated uint64
	MajorWordsAllocated uint64
	PromotedWords       uint64
	FinalizersRun       int
	PrimitiveCalls      int
	BoxesCreated        int
	BoxesDropped        int

	MinorHeapWords int
	MinorUsedWords int
	MajorHeapWords int
	MajorUsedWords int
	RememberedSet  int
	Finalizable    int
	GlobalRoots    int
	LocalRootDepth int
	ParkedChains   int
	CustomTables   int
	Resources      int
}

// Stats returns a snapshot of the counters and current heap occupancy.
func (r *Runtime) Stats() Stats {
	s := r.stats
	s.MinorHeapWords = int(r.minor.capacity() / wordBytes)
	s.MinorUsedWords = int(r.minor.used() / wordBytes)
	s.MajorHeapWords = int(r.major.capacity() / wordBytes)
	s.MajorUsedWords = int(r.major.used() / wordBytes)
	s.RememberedSet = len(r.remembered)
	s.Finalizable = len(r.finals)
	s.GlobalRoots = r.globals.Len()
	s.LocalRootDepth = r.chain.Depth()
	s.ParkedChains = len(r.parked)
	r.customMu.Lock()
	s.CustomTables = len(r.custom)
	r.customMu.Unlock()
	s.Resources = r.resources.Len()
	s.BoxesCreated = int(r.boxes.created.Load())
	s.BoxesDropped = int(r.boxes.dropped.Load())
	return s
}

// boxCounter counts resource table lifecycle events. Boxes are dropped by
// finalizers during a collection or by Close.
type boxCounter struct {
	created atomic.Int64
	dropped atomic.Int64
}

func (c *boxCounter) OnResourceEvent(e resource.Event) {
	switch e.Type {
	case resource.EventCreated:
		c.created.Add(1)
	case resource.EventDropped:
		c.dropped.Add(1)
	}
}
