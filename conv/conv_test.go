package conv_test

import (
	"math"
	"reflect"
	"slices"
	"testing"

	"github.com/wippyai/mlbridge/conv"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

func roundTrip[T any](t *testing.T, rt ffi.Runtime, c conv.Codec[T], in T) T {
	t.Helper()
	got, err := c.Decode(rt, c.Encode(rt, in))
	if err != nil {
		t.Fatalf("%s: Decode(Encode(%v)): %v", c.MLType(), in, err)
	}
	return got
}

func TestInt_RoundTrip(t *testing.T) {
	rt := newRuntime(t)
	for _, n := range []int{0, 1, -1, 42, value.MaxInt, value.MinInt} {
		if got := roundTrip(t, rt, conv.Int(), n); got != n {
			t.Errorf("Int(%d) = %d", n, got)
		}
	}
}

func TestInt_Ranges(t *testing.T) {
	rt := newRuntime(t)

	if got := roundTrip(t, rt, conv.Int32(), math.MinInt32); got != math.MinInt32 {
		t.Errorf("Int32 = %d", got)
	}
	if got := roundTrip(t, rt, conv.Uint32(), math.MaxUint32); got != math.MaxUint32 {
		t.Errorf("Uint32 = %d", got)
	}

	tests := []struct {
		name   string
		decode func(v value.Value) error
		v      value.Value
	}{
		{"int32 above range", func(v value.Value) error { _, err := conv.Int32().Decode(rt, v); return err }, value.OfInt(math.MaxInt32 + 1)},
		{"uint32 negative", func(v value.Value) error { _, err := conv.Uint32().Decode(rt, v); return err }, value.OfInt(-1)},
		{"int16 below range", func(v value.Value) error { _, err := conv.Int16().Decode(rt, v); return err }, value.OfInt(math.MinInt16 - 1)},
		{"uint8 256", func(v value.Value) error { _, err := conv.Uint8().Decode(rt, v); return err }, value.OfInt(256)},
		{"char above max rune", func(v value.Value) error { _, err := conv.Char().Decode(rt, v); return err }, value.OfInt(0x110000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.decode(tt.v); !isKind(err, errors.PhaseDecode, errors.KindOverflow) {
				t.Errorf("got %v, want overflow", err)
			}
		})
	}
}

func TestInt_RejectsBlocks(t *testing.T) {
	rt := newRuntime(t)
	s := conv.String().Encode(rt, "7")
	_, err := conv.Int().Decode(rt, s)
	if !isKind(err, errors.PhaseDecode, errors.KindTypeMismatch) {
		t.Fatalf("got %v, want type mismatch", err)
	}
	var e *errors.Error
	if errors.As(err, &e) && e.MLType != "int" {
		t.Errorf("MLType = %q", e.MLType)
	}
}

func TestBoolUnitChar(t *testing.T) {
	rt := newRuntime(t)
	if conv.Bool().Encode(rt, true) != value.True || conv.Bool().Encode(rt, false) != value.False {
		t.Error("bool encoding")
	}
	if _, err := conv.Bool().Decode(rt, value.OfInt(2)); err == nil {
		t.Error("immediate 2 decoded as bool")
	}
	if _, err := conv.Unit().Decode(rt, value.True); err == nil {
		t.Error("true decoded as unit")
	}
	if got := roundTrip(t, rt, conv.Char(), 'λ'); got != 'λ' {
		t.Errorf("Char = %q", got)
	}
}

func TestInt64_Boxed(t *testing.T) {
	rt := newRuntime(t)
	for _, n := range []int64{math.MaxInt64, math.MinInt64, 0, -7} {
		v := conv.Int64().Encode(rt, n)
		if rt.Heap().Tag(v) != value.CustomTag {
			t.Fatalf("tag = %d, want custom", rt.Heap().Tag(v))
		}
		got, err := conv.Int64().Decode(rt, v)
		if err != nil || got != n {
			t.Errorf("Int64(%d) = %d, %v", n, got, err)
		}
	}

	ops := conv.Int64Ops
	a, b := value.Unit, value.Unit
	defer roots.Enter(rt.LocalRoots(), &a, &b).Leave()
	a = conv.AllocInt64(rt, -1)
	b = conv.AllocInt64(rt, 1)
	if ops.Compare(rt, a, b) != -1 || ops.Compare(rt, b, a) != 1 {
		t.Error("Compare order")
	}
	data := ops.Serialize(rt, b)
	if len(data) != 8 || data[7] != 1 {
		t.Errorf("Serialize = %v", data)
	}
	ops.Deserialize(rt, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe}, a)
	if got, _ := conv.Int64().Decode(rt, a); got != -2 {
		t.Errorf("Deserialize = %d", got)
	}

	_, err := conv.Int64().Decode(rt, ffi.Box(rt, "not an int64"))
	if !isKind(err, errors.PhaseDecode, errors.KindTypeMismatch) {
		t.Errorf("foreign custom block: got %v", err)
	}
}

func TestFloat(t *testing.T) {
	rt := newRuntime(t)
	for _, f := range []float64{0, -0.5, math.Pi, math.Inf(1), math.MaxFloat64} {
		if got := roundTrip(t, rt, conv.Float64(), f); got != f {
			t.Errorf("Float64(%v) = %v", f, got)
		}
	}
	if got := roundTrip(t, rt, conv.Float64(), math.NaN()); !math.IsNaN(got) {
		t.Errorf("NaN = %v", got)
	}
	if got := roundTrip(t, rt, conv.Float32(), float32(1.25)); got != 1.25 {
		t.Errorf("Float32 = %v", got)
	}

	fs := []float64{1, 2.5, -3}
	v := conv.FloatArray().Encode(rt, fs)
	if rt.Heap().Tag(v) != value.DoubleArrayTag {
		t.Errorf("float array tag = %d", rt.Heap().Tag(v))
	}
	if got := roundTrip(t, rt, conv.FloatArray(), fs); !slices.Equal(got, fs) {
		t.Errorf("FloatArray = %v", got)
	}
	if got := roundTrip(t, rt, conv.FloatArray(), nil); len(got) != 0 || got == nil {
		t.Errorf("empty FloatArray = %#v", got)
	}
}

func TestString_Bytes(t *testing.T) {
	rt := newRuntime(t)
	for _, s := range []string{"", "hello", "with\x00nul", "\xff\xfe invalid utf-8", string(make([]byte, 1000))} {
		if got := roundTrip(t, rt, conv.String(), s); got != s {
			t.Errorf("String(%q) = %q", s, got)
		}
	}
	for n := 0; n < 17; n++ {
		s := string(make([]byte, n))
		v := conv.String().Encode(rt, s)
		if got := rt.Heap().StringLen(v); got != n {
			t.Errorf("StringLen(%d bytes) = %d", n, got)
		}
	}

	b := []byte{1, 2, 3}
	v := conv.Bytes().Encode(rt, b)
	got, err := conv.Bytes().Decode(rt, v)
	if err != nil || !slices.Equal(got, b) {
		t.Fatalf("Bytes = %v, %v", got, err)
	}
	got[0] = 9
	if rt.Heap().Bytes(v)[0] != 1 {
		t.Error("Bytes decode aliases the heap")
	}

	view, err := conv.BorrowString().Decode(rt, v)
	if err != nil {
		t.Fatal(err)
	}
	view[0] = 7
	if rt.Heap().Bytes(v)[0] != 7 {
		t.Error("BorrowString did not alias the heap")
	}
}

func TestList_OrderAcrossCollections(t *testing.T) {
	rt := newRuntime(t)
	c := conv.List(conv.String())

	in := make([]string, 2000)
	for i := range in {
		in[i] = string(rune('a' + i%26))
	}
	v := c.Encode(rt, in)
	if rt.Stats().MinorCollections == 0 {
		t.Fatal("expected minor collections during encoding")
	}
	got, err := c.Decode(rt, v)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, in) {
		t.Error("list order not preserved")
	}

	empty := c.Encode(rt, nil)
	if empty != value.EmptyList {
		t.Errorf("empty list = %#x", uint64(empty))
	}
}

func TestList_DecodeErrors(t *testing.T) {
	rt := newRuntime(t)
	c := conv.List(conv.Int())

	v := conv.List(conv.Value()).Encode(rt, []value.Value{value.OfInt(1), value.True})
	if _, err := c.Decode(rt, v); err != nil {
		t.Fatalf("ints and bools share a representation: %v", err)
	}

	bad := conv.Pair(conv.Int(), conv.Int()).Encode(rt, conv.T2[int, int]{First: 1, Second: 2})
	_, err := c.Decode(rt, bad)
	var e *errors.Error
	if !errors.As(err, &e) || !slices.Equal(e.Path, []string{"[1]"}) {
		t.Errorf("tail that is not a list: got %v", err)
	}
}

func TestArray(t *testing.T) {
	rt := newRuntime(t)
	c := conv.Array(conv.Int())
	in := []int{5, 6, 7}
	v := c.Encode(rt, in)
	if rt.Heap().Size(v) != 3 {
		t.Fatalf("size = %d", rt.Heap().Size(v))
	}
	if got := roundTrip(t, rt, c, in); !slices.Equal(got, in) {
		t.Errorf("Array = %v", got)
	}

	big := make([]int, 300)
	for i := range big {
		big[i] = i
	}
	if got := roundTrip(t, rt, c, big); !slices.Equal(got, big) {
		t.Error("major heap array differs")
	}

	for i, want := range in {
		got, err := conv.Index(rt, conv.Int(), v, i)
		if err != nil || got != want {
			t.Errorf("Index(%d) = %d, %v", i, got, err)
		}
	}
	if _, err := conv.Index(rt, conv.Int(), v, 3); !isKind(err, errors.PhaseDecode, errors.KindOutOfBounds) {
		t.Errorf("Index past end: got %v", err)
	}
	if _, err := conv.Index(rt, conv.Int(), v, -1); !isKind(err, errors.PhaseDecode, errors.KindOutOfBounds) {
		t.Errorf("negative Index: got %v", err)
	}
}

func TestFixedArray(t *testing.T) {
	rt := newRuntime(t)
	c := conv.FixedArray(conv.Int(), 2)
	if got := roundTrip(t, rt, c, []int{1, 2}); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("FixedArray = %v", got)
	}

	three := conv.Array(conv.Int()).Encode(rt, []int{1, 2, 3})
	if _, err := c.Decode(rt, three); !isKind(err, errors.PhaseDecode, errors.KindOutOfBounds) {
		t.Errorf("decode wrong size: got %v", err)
	}

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !isKind(err, errors.PhaseEncode, errors.KindOutOfBounds) {
			t.Errorf("encode wrong size: recovered %v", r)
		}
	}()
	c.Encode(rt, []int{1})
}

func TestOption(t *testing.T) {
	rt := newRuntime(t)
	c := conv.Option(conv.Int())

	if v := c.Encode(rt, nil); v != value.None {
		t.Errorf("None = %#x", uint64(v))
	}
	three := 3
	v := c.Encode(rt, &three)
	if rt.Heap().Tag(v) != 0 || rt.Heap().Size(v) != 1 || rt.Heap().Field(v, 0).Int() != 3 {
		t.Fatalf("Some 3 = %s", rt.Describe(v))
	}
	got, err := c.Decode(rt, v)
	if err != nil || got == nil || *got != 3 {
		t.Errorf("Decode(Some 3) = %v, %v", got, err)
	}
	got, err = c.Decode(rt, value.None)
	if err != nil || got != nil {
		t.Errorf("Decode(None) = %v, %v", got, err)
	}
}

func TestResult(t *testing.T) {
	rt := newRuntime(t)
	c := conv.Result(conv.Int(), conv.String())

	ok := roundTrip(t, rt, c, conv.Ok[int, string](5))
	if ok.IsError || ok.Value != 5 {
		t.Errorf("Ok = %+v", ok)
	}
	fail := roundTrip(t, rt, c, conv.Err[int]("boom"))
	if !fail.IsError || fail.Err != "boom" {
		t.Errorf("Err = %+v", fail)
	}

	bad := rt.Alloc(1, 2)
	if _, err := c.Decode(rt, bad); !isKind(err, errors.PhaseDecode, errors.KindInvalidVariant) {
		t.Errorf("tag 2: got %v", err)
	}
}

func TestTuples(t *testing.T) {
	rt := newRuntime(t)
	pair := conv.Pair(conv.Int(), conv.String())
	if got := roundTrip(t, rt, pair, conv.T2[int, string]{First: 1, Second: "one"}); got.First != 1 || got.Second != "one" {
		t.Errorf("Pair = %+v", got)
	}
	if pair.MLType() != "int * string" {
		t.Errorf("MLType = %q", pair.MLType())
	}

	triple := conv.Triple(conv.Bool(), conv.Float64(), conv.Int())
	in3 := conv.T3[bool, float64, int]{First: true, Second: 0.5, Third: -1}
	if got := roundTrip(t, rt, triple, in3); got != in3 {
		t.Errorf("Triple = %+v", got)
	}

	quad := conv.Tuple4(conv.Int(), conv.Int(), conv.Int(), conv.String())
	in4 := conv.T4[int, int, int, string]{First: 1, Second: 2, Third: 3, Fourth: "four"}
	if got := roundTrip(t, rt, quad, in4); got != in4 {
		t.Errorf("Tuple4 = %+v", got)
	}

	v := pair.Encode(rt, conv.T2[int, string]{First: 1, Second: "x"})
	if _, err := triple.Decode(rt, v); !isKind(err, errors.PhaseDecode, errors.KindOutOfBounds) {
		t.Errorf("pair as triple: got %v", err)
	}
}

func TestMap(t *testing.T) {
	rt := newRuntime(t)
	c := conv.Map(conv.String(), conv.Int())
	in := map[string]int{"b": 2, "a": 1, "c": 3}

	v := c.Encode(rt, in)
	h := rt.Heap()
	var keys []string
	for l := v; l != value.EmptyList; l = h.Field(l, 1) {
		keys = append(keys, h.String(h.Field(h.Field(l, 0), 0)))
	}
	if !slices.Equal(keys, []string{"a", "b", "c"}) {
		t.Errorf("keys = %v, want sorted", keys)
	}
	if got := roundTrip(t, rt, c, in); !reflect.DeepEqual(got, in) {
		t.Errorf("Map = %v", got)
	}

	dup := conv.List(conv.Pair(conv.String(), conv.Int())).Encode(rt, []conv.T2[string, int]{
		{First: "a", Second: 1},
		{First: "a", Second: 2},
	})
	if _, err := c.Decode(rt, dup); !isKind(err, errors.PhaseDecode, errors.KindInvalidData) {
		t.Errorf("duplicate keys: got %v", err)
	}
}

type celsius float64

func (c celsius) ToValue(rt ffi.Runtime) value.Value {
	return ffi.AllocFloat(rt, float64(c))
}

func (c *celsius) FromValue(rt ffi.Runtime, v value.Value) error {
	f, err := conv.Float64().Decode(rt, v)
	if err != nil {
		return err
	}
	*c = celsius(f)
	return nil
}

func TestSelf(t *testing.T) {
	rt := newRuntime(t)
	c := conv.Self[celsius]("celsius")
	if got := roundTrip(t, rt, c, celsius(21.5)); got != 21.5 {
		t.Errorf("Self = %v", got)
	}

	lc := conv.List(c)
	_, err := lc.Decode(rt, conv.List(conv.Int()).Encode(rt, []int{1}))
	var e *errors.Error
	if !errors.As(err, &e) || !slices.Equal(e.Path, []string{"[0]"}) {
		t.Errorf("got %v, want error at [0]", err)
	}
}

func TestWithPath(t *testing.T) {
	base := errors.InvalidData(errors.PhaseDecode, []string{"x"}, "bad")
	got := conv.WithPath(base, []string{"outer"})
	var e *errors.Error
	if !errors.As(got, &e) || !slices.Equal(e.Path, []string{"outer", "x"}) {
		t.Errorf("path = %v", e.Path)
	}
	if !slices.Equal(base.Path, []string{"x"}) {
		t.Error("WithPath modified its argument")
	}
	if conv.WithPath(base, nil) != error(base) {
		t.Error("empty path should return err unchanged")
	}
}
