// Package mlbridge provides a Go bridge to a managed runtime whose heap is
// made of tagged machine words and is traced and moved by a garbage
// collector.
//
// Native (Go) code reads and writes managed values, keeps them alive across
// allocations by registering roots, calls managed closures and is called by
// managed code. The hard part is keeping the collector's view of live data
// correct while the collector is free to relocate every block on any
// allocation.
//
// # Architecture Overview
//
//	mlbridge/           Root package with the Memory interface
//	├── value/          Tagged words, headers, tags, exception-result encoding
//	├── heap/           The only package doing offset arithmetic on blocks
//	├── roots/          Local root frames and long-lived global handles
//	├── ffi/            Native-side API: allocation, calls, primitives, exceptions
//	├── conv/           Codecs between Go values and managed values
//	├── derive/         Record and variant codecs, reflect-based exports
//	│   └── gen/        Source generator driven by YAML declarations
//	├── runtime/        The managed runtime: domain lock, collector, closures
//	├── engine/         wazero linear memory hosting the managed heap
//	├── resource/       Handle table for Go values referenced from the heap
//	├── errors/         Structured error types
//	└── cmd/            mlrun (call externals), mlderive (code generator)
//
// # Quick Start
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	prim := derive.MustExport("add", func(a, b int) int { return a + b })
//	add, err := rt.RegisterExternal(prim)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res := rt.Apply(add, value.OfInt(2), value.OfInt(3))
//	fmt.Println(res.Int()) // 5
//
// # Rooting
//
// Any value held in a Go variable across a call that may allocate must be
// registered first:
//
//	var s, l value.Value
//	defer roots.Enter(rt.LocalRoots(), &s, &l).Leave()
//
//	s = conv.String().Encode(rt, "hello")
//	l = ffi.Cons(rt, s, value.EmptyList) // s is still valid here
//
// # Thread Safety
//
// A Runtime is one domain. Every operation that touches values requires the
// domain lock, which the goroutine running native code holds. Use
// ffi.Blocking to release it around long-running work. Global handles may be
// registered and released from any goroutine.
package mlbridge
