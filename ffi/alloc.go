package ffi

import (
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// AllocBlock allocates a block of len(fields) fields with the given tag and
// stores fields into it. The fields are rooted across the allocation.
func AllocBlock(rt Runtime, tag uint8, fields ...value.Value) value.Value {
	if len(fields) == 0 {
		return rt.Alloc(0, tag)
	}

	l := roots.Enter(rt.LocalRoots())
	defer l.Leave()
	for i := range fields {
		l.Add(&fields[i])
	}

	var b value.Value
	if len(fields) <= value.MaxYoungWosize {
		b = rt.AllocSmall(len(fields), tag)
		h := rt.Heap()
		for i, f := range fields {
			h.InitField(b, i, f)
		}
		return b
	}

	b = rt.Alloc(len(fields), tag)
	for i, f := range fields {
		rt.Modify(b, i, f)
	}
	return b
}

// AllocTuple allocates a tag 0 block holding fields.
func AllocTuple(rt Runtime, fields ...value.Value) value.Value {
	return AllocBlock(rt, 0, fields...)
}

// AllocString allocates a string block holding a copy of s.
func AllocString(rt Runtime, s string) value.Value {
	v := rt.AllocString(len(s))
	rt.Heap().WriteBytes(v, 0, []byte(s))
	return v
}

// AllocBytes allocates a string block holding a copy of b.
func AllocBytes(rt Runtime, b []byte) value.Value {
	v := rt.AllocString(len(b))
	rt.Heap().WriteBytes(v, 0, b)
	return v
}

// AllocFloat boxes f in a Double block.
func AllocFloat(rt Runtime, f float64) value.Value {
	v := rt.AllocSmall(1, value.DoubleTag)
	rt.Heap().SetDouble(v, f)
	return v
}

// AllocFloatArray allocates a DoubleArray block holding fs.
func AllocFloatArray(rt Runtime, fs []float64) value.Value {
	if len(fs) == 0 {
		return rt.Alloc(0, 0)
	}
	v := rt.Alloc(len(fs), value.DoubleArrayTag)
	h := rt.Heap()
	for i, f := range fs {
		h.SetDoubleField(v, i, f)
	}
	return v
}

// Some wraps v in an option block.
func Some(rt Runtime, v value.Value) value.Value {
	return AllocBlock(rt, 0, v)
}

// Cons prepends hd to the list tl.
func Cons(rt Runtime, hd, tl value.Value) value.Value {
	return AllocBlock(rt, 0, hd, tl)
}

// Field reads field i of v with a bounds check.
func Field(rt Runtime, v value.Value, i int) value.Value {
	return rt.Heap().Block(v).At(i)
}

// StringOf copies the contents of a string block.
func StringOf(rt Runtime, v value.Value) string {
	return rt.Heap().String(v)
}

// Tag returns the tag of a block, or -1 for immediates.
func Tag(rt Runtime, v value.Value) int {
	if v.IsInt() {
		return -1
	}
	return int(rt.Heap().Tag(v))
}
