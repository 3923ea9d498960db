// Package runtime is the managed runtime native code is bridged to.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	// Register a native function; the managed side applies its closure
//	add, err := rt.RegisterFunc("add", func(a, b int) int { return a + b })
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res := rt.Apply(add, value.OfInt(1), value.OfInt(2))
//	fmt.Println(res.Int()) // 3
//
// # Heap
//
// The heap is one flat memory (wazero linear memory by default):
//
//	[ static atoms | minor heap | major semispace A | major semispace B ]
//
// Blocks of up to 256 fields are bump-allocated in the minor heap; larger
// blocks go directly to the major heap. A minor collection copies live
// young blocks into the major heap; a full collection copies everything
// live into the other semispace. Both move blocks, so every Value held
// across an allocation must be a registered root.
//
// Roots are the local chain of the goroutine holding the domain lock,
// chains parked by ReleaseLock, and global roots. Stores of young values
// into old blocks must go through Modify, which records the field for the
// next minor collection.
//
// # Domain Lock
//
// New returns with the calling goroutine holding the lock. Every entry
// point asserts it. Other goroutines enter with Lock/Unlock or Do; native
// code that blocks gives the lock up with ffi.Blocking.
//
// # Managed Functions
//
// Define and Func add managed-side functions to the code table;
// RegisterExternal, RegisterFunc and RegisterHost add native primitives.
// Apply handles partial and over-application, and returns raised
// exceptions exception-encoded.
package runtime
