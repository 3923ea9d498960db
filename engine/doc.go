// Package engine hosts the managed heap in WebAssembly linear memory.
//
// The heap needs a flat, bounds-checked, byte-addressed space whose offsets
// fit in 32 bits. A wazero module with a single exported memory and no code
// provides exactly that. The engine compiles such a module on demand and
// instantiates one per runtime:
//
//	WazeroEngine - owns the wazero runtime
//	HeapMemory   - one instantiated memory module, exposed as mlbridge.Memory
//
// Usage:
//
//	eng, err := engine.NewWazeroEngine(ctx)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close(ctx)
//
//	hm, err := eng.NewHeapMemory(ctx, "domain-0", 4<<20)
//	if err != nil {
//	    return err
//	}
//	view := heap.New(hm.Memory())
package engine
