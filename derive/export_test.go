package derive_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/wippyai/mlbridge/conv"
	"github.com/wippyai/mlbridge/derive"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

func TestExport_Call(t *testing.T) {
	rt := newRuntime(t)
	add, err := rt.RegisterFunc("add", func(a, b int) int { return a + b })
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	got, err := ffi.Call2(rt, add, value.OfInt(10), value.OfInt(20))
	if err != nil {
		t.Fatalf("Call2: %v", err)
	}
	if got.Int() != 30 {
		t.Errorf("add = %d, want 30", got.Int())
	}
}

func TestExport_RuntimeAndRecord(t *testing.T) {
	rt := newRuntime(t)
	var seen ffi.Runtime
	scale, err := rt.RegisterFunc("scale", func(r ffi.Runtime, p Point, k int) Point {
		seen = r
		return Point{X: p.X * k, Y: p.Y * k}
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	pc := derive.MustCodec[Point]()
	arg := pc.Encode(rt, Point{X: 1, Y: 2})
	// Encoding may have moved the closure.
	scale, _ = rt.External("scale")
	got, err := ffi.Call2(rt, scale, arg, value.OfInt(3))
	if err != nil {
		t.Fatalf("Call2: %v", err)
	}
	p, err := pc.Decode(rt, got)
	if err != nil || p != (Point{X: 3, Y: 6}) {
		t.Errorf("scale = %+v, %v", p, err)
	}
	if seen == nil {
		t.Error("runtime parameter not passed")
	}
}

func TestExport_ErrorRaisesFailure(t *testing.T) {
	rt := newRuntime(t)
	fail, err := rt.RegisterFunc("fail", func(s string) (int, error) {
		return 0, fmt.Errorf("bad input %q", s)
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	arg := conv.String().Encode(rt, "x")
	fail, _ = rt.External("fail")
	_, err = ffi.Call1(rt, fail, arg)
	var exn *ffi.Exception
	if !errors.As(err, &exn) {
		t.Fatalf("got %v, want *ffi.Exception", err)
	}
	defer exn.Release()
	if exn.Name() != "Failure" || !strings.Contains(exn.Message(), `bad input "x"`) {
		t.Errorf("exception = %s %q", exn.Name(), exn.Message())
	}
}

func TestExport_ForwardedExceptionReleasesRoot(t *testing.T) {
	rt := newRuntime(t)
	if _, err := rt.RegisterFunc("relay", func(r ffi.Runtime, f value.Value, x int) (int, error) {
		res, err := ffi.Call1(r, f, value.OfInt(int64(x)))
		if err != nil {
			return 0, err
		}
		return int(res.Int()), nil
	}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	var boom value.Value
	defer roots.Enter(rt.LocalRoots(), &boom).Leave()
	boom = rt.Func("boom", 1, func(rt *runtime.Runtime, _ *value.Value, args []value.Value) value.Value {
		ffi.Failwithf(rt, "boom %d", args[0].Int())
		return value.Unit
	})

	before := rt.GlobalRoots().Len()
	for i := 0; i < 200; i++ {
		relay, _ := rt.External("relay")
		_, err := ffi.Call2(rt, relay, boom, value.OfInt(int64(i)))
		var exn *ffi.Exception
		if !errors.As(err, &exn) {
			t.Fatalf("call %d: got %v, want *ffi.Exception", i, err)
		}
		if want := fmt.Sprintf("boom %d", i); exn.Name() != "Failure" || exn.Message() != want {
			t.Fatalf("call %d: exception %s %q", i, exn.Name(), exn.Message())
		}
		exn.Release()
	}
	if after := rt.GlobalRoots().Len(); after != before {
		t.Errorf("global roots grew from %d to %d", before, after)
	}
}

func TestExport_BadArgumentRaisesInvalidArgument(t *testing.T) {
	rt := newRuntime(t)
	neg, err := rt.RegisterFunc("neg", func(n int) int { return -n })
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	arg := conv.String().Encode(rt, "not an int")
	neg, _ = rt.External("neg")
	_, err = ffi.Call1(rt, neg, arg)
	var exn *ffi.Exception
	if !errors.As(err, &exn) {
		t.Fatalf("got %v, want *ffi.Exception", err)
	}
	defer exn.Release()
	if exn.Name() != "Invalid_argument" {
		t.Errorf("exception = %s", exn.Name())
	}
}

func TestExport_NoResult(t *testing.T) {
	rt := newRuntime(t)
	calls := 0
	tick, err := rt.RegisterFunc("tick", func() { calls++ })
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	got, err := ffi.Call1(rt, tick, value.Unit)
	if err != nil || got != value.Unit || calls != 1 {
		t.Errorf("tick = %#x, %v, calls %d", uint64(got), err, calls)
	}
}

func TestExport_BytecodeOnlyAboveFixedArity(t *testing.T) {
	sum6 := func(a, b, c, d, e, f int) int { return a + b + c + d + e + f }
	p, err := derive.Export("sum6", sum6)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if p.Arity != 6 || p.Native != nil || p.Bytecode == nil {
		t.Fatalf("primitive = arity %d native %v", p.Arity, p.Native != nil)
	}

	rt := newRuntime(t)
	clo, err := rt.RegisterExternal(p)
	if err != nil {
		t.Fatalf("RegisterExternal: %v", err)
	}
	args := make([]value.Value, 6)
	for i := range args {
		args[i] = value.OfInt(int64(i + 1))
	}
	got, err := ffi.CallN(rt, clo, args...)
	if err != nil || got.Int() != 21 {
		t.Errorf("sum6 = %d, %v", got.Int(), err)
	}
}

func TestExport_FixedArityEntry(t *testing.T) {
	p := derive.MustExport("twice", func(n int) int { return 2 * n })
	if _, ok := p.Native.(ffi.Fixed1); !ok {
		t.Fatalf("native entry is %T, want ffi.Fixed1", p.Native)
	}
	rt := newRuntime(t)
	if got := p.Invoke(rt, []value.Value{value.OfInt(21)}); got.Int() != 42 {
		t.Errorf("Invoke = %d", got.Int())
	}
	if got := p.InvokeBytecode(rt, []value.Value{value.OfInt(4)}); got.Int() != 8 {
		t.Errorf("InvokeBytecode = %d", got.Int())
	}
}

func TestExport_DeclarationErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   any
	}{
		{"nil", nil},
		{"not a function", 42},
		{"variadic", func(xs ...int) int { return len(xs) }},
		{"second result not error", func() (int, int) { return 0, 0 }},
		{"three results", func() (int, int, error) { return 0, 0, nil }},
		{"runtime not first", func(n int, rt ffi.Runtime) int { return n }},
		{"unsupported parameter", func(ch chan int) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := derive.Export("f", tt.fn)
			if !isKind(err, errors.PhaseExport, errors.KindDeclaration) {
				t.Errorf("got %v, want export declaration error", err)
			}
		})
	}
}
