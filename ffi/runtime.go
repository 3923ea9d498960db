package ffi

import (
	"github.com/wippyai/mlbridge/heap"
	"github.com/wippyai/mlbridge/resource"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// Runtime is the managed runtime as seen from native code. All methods
// require the domain lock except ReleaseLock's counterpart AcquireLock.
type Runtime interface {
	// Heap returns the accessor over the heap memory.
	Heap() heap.View
	// LocalRoots is the root chain of the execution context holding the lock.
	LocalRoots() *roots.Chain
	// GlobalRoots is the registry of long-lived roots.
	GlobalRoots() *roots.Globals
	// Resources stores Go values referenced from custom blocks.
	Resources() *resource.Table

	// Alloc allocates a block of wosize fields. Scanned blocks come back
	// with every field set to value.Unit. wosize 0 returns the tag's atom.
	Alloc(wosize int, tag uint8) value.Value
	// AllocSmall is the minor-heap fast path; wosize must not exceed
	// value.MaxYoungWosize.
	AllocSmall(wosize int, tag uint8) value.Value
	// AllocString allocates a string block of n bytes with its length set.
	AllocString(n int) value.Value
	// AllocFinal allocates a custom block of wosize payload words whose
	// finalizer runs at most once after the block becomes unreachable.
	// used/total feed the collector's pressure heuristic.
	AllocFinal(wosize int, finalize Finalizer, used, total int) value.Value
	// AllocCustom allocates a custom block for ops with payloadBytes of
	// raw payload, registering ops on first use.
	AllocCustom(ops *CustomOps, payloadBytes int, used, total int) value.Value
	// Modify stores v into field i of block, recording the store for the
	// collector when block is older than v.
	Modify(block value.Value, i int, v value.Value)
	// Collect forces a minor collection, or a full one when full is set.
	Collect(full bool)

	// Apply applies closure to args. The result is exception-encoded when
	// the closure raised.
	Apply(closure value.Value, args ...value.Value) value.Value
	// NamedValue looks up a value registered by name on the managed side.
	NamedValue(name string) (*roots.Global, bool)
	// ExceptionConstructor returns a predefined exception constructor:
	// "Failure", "Invalid_argument", "Not_found" or "Out_of_memory".
	ExceptionConstructor(name string) (value.Value, bool)

	// RegisterCustom registers an operations table and returns its index.
	RegisterCustom(ops *CustomOps) (int, error)
	// CustomOpsAt returns the operations table of a custom block index.
	CustomOpsAt(index int) (*CustomOps, bool)

	// ReleaseLock gives up the domain lock, parking the current local roots.
	ReleaseLock() *roots.Snapshot
	// AcquireLock takes the domain lock back and restores parked roots.
	AcquireLock(parked *roots.Snapshot)
}

// Finalizer runs when the collector frees a finalized block.
type Finalizer func(rt Runtime, v value.Value)

// FixedLength declares the serialized payload size of custom blocks whose
// payload does not vary.
type FixedLength struct {
	Bsize32 int
	Bsize64 int
}

// CustomOps is the operations table of a custom block type. Identifier must
// be unique per table; nil functions mean "not supported".
type CustomOps struct {
	Finalize    Finalizer
	Compare     func(rt Runtime, a, b value.Value) int
	Hash        func(rt Runtime, v value.Value) int64
	Serialize   func(rt Runtime, v value.Value) []byte
	Deserialize func(rt Runtime, data []byte, v value.Value)
	CompareExt  func(rt Runtime, a, b value.Value) int
	FixedLength *FixedLength
	Identifier  string
}
