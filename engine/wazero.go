package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mlbridge/internal/memory"
)

// WazeroEngine creates heap memories backed by wazero linear memory.
type WazeroEngine struct {
	runtime   wazero.Runtime
	compiled  map[uint32]wazero.CompiledModule
	nextID    atomic.Uint64
	limit     uint32
	compileMu sync.Mutex
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per heap in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	var limit uint32
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		limit = cfg.MemoryLimitPages
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(limit)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &WazeroEngine{
		runtime:  runtime,
		compiled: make(map[uint32]wazero.CompiledModule),
		limit:    limit,
	}, nil
}

// Close releases the wazero runtime and every heap memory created by it.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// compile returns the memory-only module for a given page count, compiling
// it once per distinct size.
func (e *WazeroEngine) compile(ctx context.Context, pages uint32) (wazero.CompiledModule, error) {
	e.compileMu.Lock()
	defer e.compileMu.Unlock()

	if c, ok := e.compiled[pages]; ok {
		return c, nil
	}

	c, err := e.runtime.CompileModule(ctx, memoryModule(pages, e.limit))
	if err != nil {
		return nil, fmt.Errorf("compile failed: %w", err)
	}
	e.compiled[pages] = c
	return c, nil
}

// HeapMemory is one instantiated memory module.
type HeapMemory struct {
	module api.Module
	mem    *memory.Wasm
	name   string
}

// NewHeapMemory instantiates a memory of at least size bytes. name
// distinguishes instances in the wazero namespace; an empty name gets a
// generated one.
func (e *WazeroEngine) NewHeapMemory(ctx context.Context, name string, size uint64) (*HeapMemory, error) {
	pages := PagesFor(size)
	if pages == 0 {
		pages = 1
	}
	if e.limit > 0 && pages > e.limit {
		return nil, fmt.Errorf("heap of %d pages exceeds limit of %d pages", pages, e.limit)
	}

	compiled, err := e.compile(ctx, pages)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = fmt.Sprintf("mlheap-%d", e.nextID.Add(1))
	}
	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, fmt.Errorf("instantiate failed: %w", err)
	}

	mem := mod.ExportedMemory(MemoryExport)
	if mem == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("module %q exports no memory", name)
	}

	Logger().Debug("heap memory instantiated",
		zap.String("name", name),
		zap.Uint32("pages", pages),
		zap.Uint32("bytes", mem.Size()))

	return &HeapMemory{module: mod, mem: memory.WrapWasm(mem), name: name}, nil
}

// Memory returns the linear memory as mlbridge.Memory.
func (m *HeapMemory) Memory() *memory.Wasm {
	return m.mem
}

// Name is the module instance name.
func (m *HeapMemory) Name() string {
	return m.name
}

// Size returns the current memory size in bytes.
func (m *HeapMemory) Size() uint32 {
	return m.mem.Size()
}

// Close releases the module instance.
func (m *HeapMemory) Close(ctx context.Context) error {
	return m.module.Close(ctx)
}
