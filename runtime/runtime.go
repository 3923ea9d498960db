package runtime

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/engine"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/heap"
	"github.com/wippyai/mlbridge/internal/memory"
	"github.com/wippyai/mlbridge/resource"
	"github.com/wippyai/mlbridge/roots"
)

// Runtime is one managed domain: a heap, its collector, the domain lock and
// the registries native code reaches through ffi.Runtime.
type Runtime struct {
	mem       mlbridge.Memory
	engine    *engine.WazeroEngine
	heapMem   *engine.HeapMemory
	log       *zap.Logger
	chain     *roots.Chain
	globals   *roots.Globals
	resources *resource.Table
	boxes     *boxCounter
	parked    map[*roots.Snapshot]struct{}
	externals *externalRegistry
	named     map[string]*roots.Global
	exnCtors  map[string]*roots.Global
	customIDs map[string]int
	finalOps  *ffi.CustomOps
	view      heap.View

	custom     []*ffi.CustomOps
	codes      []*code
	remembered []uint32
	finals     []finalEntry

	minor   space
	major   space
	reserve space

	stats        Stats
	pressure     float64
	nextExnID    int64
	partialCode  int
	cfg          Config
	lock         sync.Mutex
	namedMu      sync.RWMutex
	customMu     sync.Mutex
	locked       atomic.Bool
	forceMajor   bool
	collecting   bool
	inFinalizers bool
}

var _ ffi.Runtime = (*Runtime)(nil)

// New creates a runtime with the default configuration. The calling
// goroutine holds the domain lock when New returns.
func New(ctx context.Context) (*Runtime, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a runtime with custom configuration. Zero sizes
// take their defaults.
func NewWithConfig(ctx context.Context, cfg *Config) (*Runtime, error) {
	c := *DefaultConfig()
	if cfg != nil {
		c.Logger = cfg.Logger
		c.Memory = cfg.Memory
		c.MemoryLimitPages = cfg.MemoryLimitPages
		c.Poison = cfg.Poison
		if cfg.MinorWords > 0 {
			c.MinorWords = cfg.MinorWords
		}
		if cfg.MajorWords > 0 {
			c.MajorWords = cfg.MajorWords
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:       c,
		log:       c.Logger,
		chain:     roots.NewChain(),
		globals:   roots.NewGlobals(),
		resources: resource.NewTable(),
		boxes:     &boxCounter{},
		parked:    make(map[*roots.Snapshot]struct{}),
		externals: newExternalRegistry(),
		named:     make(map[string]*roots.Global),
		exnCtors:  make(map[string]*roots.Global),
		customIDs: make(map[string]int),
	}
	if r.log == nil {
		r.log = Logger()
	}
	r.resources.Subscribe(r.boxes)

	size := layoutSize(c.MinorWords, c.MajorWords)
	switch c.Memory {
	case MemorySlice:
		r.mem = memory.NewSlice(size)
	case MemoryWazero:
		eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{MemoryLimitPages: c.MemoryLimitPages})
		if err != nil {
			return nil, errors.Load("create engine", err)
		}
		hm, err := eng.NewHeapMemory(ctx, "", uint64(size))
		if err != nil {
			_ = eng.Close(ctx)
			return nil, errors.Load("create heap memory", err)
		}
		r.engine = eng
		r.heapMem = hm
		r.mem = hm.Memory()
	default:
		return nil, errors.InvalidInput(errors.PhaseLoad, "unknown memory kind")
	}

	r.view = heap.New(r.mem)
	r.layout(c.MinorWords, c.MajorWords)

	r.lock.Lock()
	r.locked.Store(true)

	r.finalOps = &ffi.CustomOps{Identifier: "_final"}
	if _, err := r.RegisterCustom(r.finalOps); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	r.partialCode = r.defineCode(&code{name: "caml_curry", fn: partialApply})
	if err := r.initExceptions(); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}

	r.log.Debug("runtime created",
		zap.Int("minor_words", c.MinorWords),
		zap.Int("major_words", c.MajorWords),
		zap.Uint32("heap_bytes", size))
	return r, nil
}

// Close releases the heap and every resource the runtime holds.
func (r *Runtime) Close(ctx context.Context) error {
	var firstErr error
	if err := r.resources.Close(); err != nil {
		firstErr = err
	}
	if r.heapMem != nil {
		if err := r.heapMem.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.engine != nil {
		if err := r.engine.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Heap returns the accessor over the heap memory.
func (r *Runtime) Heap() heap.View { return r.view }

// LocalRoots returns the domain's local root chain.
func (r *Runtime) LocalRoots() *roots.Chain { return r.chain }

// GlobalRoots returns the domain's global root registry.
func (r *Runtime) GlobalRoots() *roots.Globals { return r.globals }

// Resources returns the table of Go values referenced from custom blocks.
func (r *Runtime) Resources() *resource.Table { return r.resources }

// Memory returns the memory the heap lives in.
func (r *Runtime) Memory() mlbridge.Memory { return r.mem }
