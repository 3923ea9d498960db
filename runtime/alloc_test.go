package runtime

import (
	"testing"

	"go.uber.org/zap"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/heap"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

func TestAlloc_Placement(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)

	small := rt.Alloc(3, 0)
	if !rt.IsYoung(small) {
		t.Error("3-field block should be young")
	}
	for i := 0; i < 3; i++ {
		if f := rt.Heap().Field(small, i); f != value.Unit {
			t.Errorf("field %d = %#x, want unit", i, f)
		}
	}

	big := rt.Alloc(value.MaxYoungWosize+1, 0)
	if !rt.IsMajor(big) {
		t.Error("block above the young limit should go to the major heap")
	}
	if got := rt.Heap().Size(big); got != value.MaxYoungWosize+1 {
		t.Errorf("size = %d", got)
	}

	atom := rt.Alloc(0, 7)
	if atom != rt.Atom(7) {
		t.Error("zero-size allocation should return the atom")
	}
	if rt.Heap().Tag(atom) != 7 || rt.Heap().Size(atom) != 0 {
		t.Errorf("atom header: tag %d size %d", rt.Heap().Tag(atom), rt.Heap().Size(atom))
	}
	if rt.IsYoung(atom) || rt.IsMajor(atom) {
		t.Error("atoms live outside the collected heaps")
	}
}

func TestAlloc_Errors(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)

	if rec := recoverPanic(func() { rt.Alloc(-1, 0) }); !isKind(rec, errors.PhaseAlloc, errors.KindInvalidInput) {
		t.Errorf("negative size: %v", rec)
	}
	if rec := recoverPanic(func() { rt.AllocSmall(value.MaxYoungWosize+1, 0) }); !isKind(rec, errors.PhaseAlloc, errors.KindInvalidInput) {
		t.Errorf("oversized small allocation: %v", rec)
	}
	if rec := recoverPanic(func() { rt.AllocString(-1) }); !isKind(rec, errors.PhaseAlloc, errors.KindInvalidInput) {
		t.Errorf("negative string: %v", rec)
	}
}

func TestAlloc_NoScanBlocksKeepRawWords(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)

	s := rt.AllocString(11)
	if got := rt.Heap().StringLen(s); got != 11 {
		t.Errorf("string length = %d", got)
	}
	fa := rt.Alloc(2, value.DoubleArrayTag)
	rt.Heap().SetDoubleField(fa, 1, 2.5)
	if got := rt.Heap().DoubleField(fa, 1); got != 2.5 {
		t.Errorf("double field = %v", got)
	}
}

func TestModify_RemembersOldToYoung(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)

	var big, young value.Value
	defer roots.Enter(rt.LocalRoots(), &big).Leave()
	big = rt.Alloc(300, 0)
	young = ffi.AllocString(rt, "young")

	rt.Modify(big, 0, young)
	rt.Modify(big, 1, value.OfInt(9))
	if got := rt.Stats().RememberedSet; got != 1 {
		t.Fatalf("remembered = %d, want 1", got)
	}

	rt.Collect(false)

	if got := rt.Stats().RememberedSet; got != 0 {
		t.Errorf("remembered after minor = %d", got)
	}
	f := rt.Heap().Field(big, 0)
	if !rt.IsMajor(f) {
		t.Fatal("young value reachable only from an old block was not promoted")
	}
	if got := rt.Heap().String(f); got != "young" {
		t.Errorf("promoted string = %q", got)
	}
	if got := rt.Heap().Field(big, 1); got.Int() != 9 {
		t.Errorf("field 1 = %d", got.Int())
	}
}

func TestModify_Errors(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)

	b := rt.Alloc(2, 0)
	if rec := recoverPanic(func() { rt.Modify(value.OfInt(1), 0, value.Unit) }); !isKind(rec, errors.PhaseRuntime, errors.KindInvalidInput) {
		t.Errorf("modify immediate: %v", rec)
	}
	if rec := recoverPanic(func() { rt.Modify(b, 2, value.Unit) }); !isKind(rec, errors.PhaseRuntime, errors.KindOutOfBounds) {
		t.Errorf("modify past the end: %v", rec)
	}
	if rec := recoverPanic(func() { rt.Modify(b, -1, value.Unit) }); !isKind(rec, errors.PhaseRuntime, errors.KindOutOfBounds) {
		t.Errorf("modify negative index: %v", rec)
	}
}

func TestAlloc_OutOfMemoryRaises(t *testing.T) {
	log, logs := observed(zap.WarnLevel)
	rt := newTestRuntime(t, 512, 1024, log)

	var a value.Value
	defer roots.Enter(rt.LocalRoots(), &a).Leave()
	a = rt.Alloc(300, 0)
	if !rt.IsMajor(a) {
		t.Fatal("first large block should fit")
	}

	before := rt.Stats().MajorCollections
	rec := recoverPanic(func() { rt.Alloc(300, 0) })
	if name := raisedName(t, rt, rec); name != "Out_of_memory" {
		t.Fatalf("raised %q, want Out_of_memory", name)
	}
	if rt.Stats().MajorCollections <= before {
		t.Error("a full collection should run before giving up")
	}
	if logs.FilterMessage("heap exhausted").Len() != 1 {
		t.Errorf("expected one heap exhausted warning, got %d", logs.Len())
	}

	// The runtime stays usable after the failed allocation.
	s := ffi.AllocString(rt, "still alive")
	if got := rt.Heap().String(s); got != "still alive" {
		t.Errorf("string = %q", got)
	}
	if got := rt.Heap().Size(a); got != 300 {
		t.Errorf("rooted block size = %d", got)
	}
}

func TestAlloc_OutOfMemoryThroughApply(t *testing.T) {
	rt := newTestRuntime(t, 512, 1024, nil)

	var hog value.Value
	defer roots.Enter(rt.LocalRoots(), &hog).Leave()
	hog = rt.Func("hog", 1, func(rt *Runtime, _ *value.Value, _ []value.Value) value.Value {
		var a value.Value
		defer roots.Enter(rt.LocalRoots(), &a).Leave()
		a = rt.Alloc(300, 0)
		return rt.Alloc(300, 0)
	})

	res := rt.Apply(hog, value.Unit)
	if !res.IsExceptionResult() {
		t.Fatal("expected an exception result")
	}
	if name := ffi.ExceptionName(rt, res.Exception()); name != "Out_of_memory" {
		t.Errorf("exception = %q", name)
	}
	if d := rt.LocalRoots().Depth(); d != 1 {
		t.Errorf("root depth after unwinding = %d, want 1", d)
	}
}

func TestAlloc_RecoversAfterOutOfMemory(t *testing.T) {
	rt := newTestRuntime(t, 512, 1024, nil)

	list := value.EmptyList
	defer roots.Enter(rt.LocalRoots(), &list).Leave()

	cells := 0
	rec := recoverPanic(func() {
		for {
			list = ffi.Cons(rt, value.OfInt(int64(cells)), list)
			cells++
		}
	})
	if name := raisedName(t, rt, rec); name != "Out_of_memory" {
		t.Fatalf("raised %q, want Out_of_memory", name)
	}
	if cells < 100 {
		t.Errorf("heap exhausted after only %d cells", cells)
	}
	if rt.collecting {
		t.Fatal("collection still marked as running after out of memory")
	}
	if d := rt.LocalRoots().Depth(); d != 1 {
		t.Errorf("root depth after unwinding = %d, want 1", d)
	}

	list = value.EmptyList
	const n = 200
	for round := 0; round < 3; round++ {
		for i := 0; i < n; i++ {
			list = ffi.Cons(rt, value.OfInt(int64(i)), list)
		}
		count := 0
		for cur := list; cur != value.EmptyList; cur = rt.Heap().Field(cur, 1) {
			count++
		}
		if count != n {
			t.Fatalf("round %d: list has %d cells, want %d", round, count, n)
		}
		list = value.EmptyList
	}
}

func TestCollection_MarkClearedAfterPanic(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)

	rec := recoverPanic(func() {
		defer rt.enterCollection()()
		panic("mid-collection")
	})
	if rec != "mid-collection" {
		t.Fatalf("recovered %v", rec)
	}
	if rt.collecting {
		t.Fatal("collection mark survived the panic")
	}
	rt.Collect(true)
	if rt.Stats().MajorCollections == 0 {
		t.Error("collection refused after a panic")
	}
}

func TestAllocCustom_RegistersOps(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)

	ops := &ffi.CustomOps{Identifier: "test.counter"}
	v := rt.AllocCustom(ops, 12, 0, 0)
	if rt.Heap().Tag(v) != value.CustomTag {
		t.Fatalf("tag = %d", rt.Heap().Tag(v))
	}
	got, ok := rt.CustomOpsAt(rt.Heap().CustomIndex(v))
	if !ok || got != ops {
		t.Fatal("custom block does not point at its operations")
	}
	if w := rt.Heap().PayloadWord(v, 1); w != 0 {
		t.Errorf("payload not zeroed: %#x", w)
	}
	if rt.Heap().Size(v) != 1+heap.PayloadWords(12) {
		t.Errorf("size = %d", rt.Heap().Size(v))
	}

	clash := &ffi.CustomOps{Identifier: "test.counter"}
	if rec := recoverPanic(func() { rt.AllocCustom(clash, 8, 0, 0) }); !isKind(rec, errors.PhaseRuntime, errors.KindRegistration) {
		t.Errorf("clashing identifier: %v", rec)
	}
}
