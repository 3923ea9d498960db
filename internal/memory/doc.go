// Package memory provides the mlbridge.Memory implementations the managed
// heap can live in.
//
// Wasm adapts a wazero api.Memory, so the heap is a WebAssembly linear
// memory instantiated by package engine:
//
//	mem := memory.WrapWasm(module.ExportedMemory("memory"))
//
// Slice is a plain Go byte slice, used when no wasm engine is wanted:
//
//	mem := memory.NewSlice(1 << 20)
//
// Reads of both return views that alias the underlying storage; callers
// that keep bytes past the next heap mutation must copy them.
package memory
