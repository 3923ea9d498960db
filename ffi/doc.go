// Package ffi is the native side of the bridge.
//
// Runtime is the foreign runtime as native code sees it: allocation that may
// move every block, the write barrier, local and global roots, closure
// application and the domain lock. Package runtime provides the
// implementation; everything in this package and in conv and derive is
// written against the interface only.
//
// # Allocation
//
// Every allocation may collect, so every Value held in a Go variable across
// an allocation must be registered on rt.LocalRoots() first. The helpers in
// alloc.go root their own inputs:
//
//	var head value.Value
//	defer roots.Enter(rt.LocalRoots(), &head).Leave()
//	head = ffi.AllocString(rt, "x")
//	list := ffi.Cons(rt, head, value.EmptyList)
//
// # Calling managed code
//
// Call1, Call2, Call3 and CallN apply a closure and return a *Exception error
// when it raised:
//
//	res, err := ffi.Call1(rt, closure, value.OfInt(1))
//	var exn *ffi.Exception
//	if errors.As(err, &exn) {
//	    defer exn.Release()
//	}
//
// # Being called from managed code
//
// A Primitive bundles a fixed-arity entry point (up to five arguments) and a
// bytecode entry point (argument array plus count). Primitive bodies run
// inside Guard, which performs the one-time setup and converts a Go panic
// into a managed Failure exception instead of letting it unwind into the
// runtime.
package ffi
