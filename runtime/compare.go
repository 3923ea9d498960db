package runtime

import (
	"bytes"
	"cmp"

	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/value"
)

// Compare orders two values structurally: immediates before blocks,
// blocks by tag, then size, then fields left to right. Strings compare by
// bytes, floats numerically, custom blocks through their Compare (or
// CompareExt against an immediate). Functional values raise
// Invalid_argument.
func (r *Runtime) Compare(a, b value.Value) int {
	r.assertLocked("Compare")
	type pair struct{ a, b value.Value }
	h := r.view
	stack := []pair{{a, b}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.a == p.b {
			continue
		}

		switch {
		case p.a.IsInt() && p.b.IsInt():
			return cmp.Compare(p.a.Int(), p.b.Int())
		case p.a.IsInt():
			if c, ok := r.compareExt(p.b, p.a); ok {
				return -c
			}
			return -1
		case p.b.IsInt():
			if c, ok := r.compareExt(p.a, p.b); ok {
				return c
			}
			return 1
		}

		ta, tb := h.Tag(p.a), h.Tag(p.b)
		if ta == value.ClosureTag || tb == value.ClosureTag {
			ffi.InvalidArgument(r, "compare: functional value")
		}
		if ta != tb {
			return cmp.Compare(ta, tb)
		}

		switch ta {
		case value.StringTag:
			if c := bytes.Compare(h.Bytes(p.a), h.Bytes(p.b)); c != 0 {
				return c
			}
			continue
		case value.DoubleTag:
			if c := cmp.Compare(h.Double(p.a), h.Double(p.b)); c != 0 {
				return c
			}
			continue
		case value.CustomTag:
			ops, ok := r.CustomOpsAt(h.CustomIndex(p.a))
			other, _ := r.CustomOpsAt(h.CustomIndex(p.b))
			if !ok || ops != other || ops.Compare == nil {
				ffi.InvalidArgument(r, "compare: abstract value")
			}
			if c := ops.Compare(r, p.a, p.b); c != 0 {
				return c
			}
			continue
		case value.AbstractTag:
			ffi.InvalidArgument(r, "compare: abstract value")
		}

		sa, sb := h.Size(p.a), h.Size(p.b)
		if sa != sb {
			return cmp.Compare(sa, sb)
		}
		if ta == value.DoubleArrayTag {
			for i := 0; i < sa; i++ {
				if c := cmp.Compare(h.DoubleField(p.a, i), h.DoubleField(p.b, i)); c != 0 {
					return c
				}
			}
			continue
		}
		for i := sa - 1; i >= 0; i-- {
			stack = append(stack, pair{h.Field(p.a, i), h.Field(p.b, i)})
		}
	}
	return 0
}

func (r *Runtime) compareExt(custom, imm value.Value) (int, bool) {
	if r.view.Tag(custom) != value.CustomTag {
		return 0, false
	}
	ops, ok := r.CustomOpsAt(r.view.CustomIndex(custom))
	if !ok || ops.CompareExt == nil {
		return 0, false
	}
	return ops.CompareExt(r, custom, imm), true
}

// Equal compares two values structurally through heap.DeepEqual, using the
// custom operations' Compare for custom blocks.
func (r *Runtime) Equal(a, b value.Value) bool {
	return r.view.DeepEqual(a, b, func(x, y value.Value) (int, bool) {
		ops, ok := r.CustomOpsAt(r.view.CustomIndex(x))
		other, _ := r.CustomOpsAt(r.view.CustomIndex(y))
		if !ok || ops != other || ops.Compare == nil {
			return 0, false
		}
		return ops.Compare(r, x, y), true
	})
}

// Hash hashes a custom block through its operations' Hash.
func (r *Runtime) Hash(v value.Value) (int64, bool) {
	if v.IsInt() || r.view.Tag(v) != value.CustomTag {
		return 0, false
	}
	ops, ok := r.CustomOpsAt(r.view.CustomIndex(v))
	if !ok || ops.Hash == nil {
		return 0, false
	}
	return ops.Hash(r, v), true
}
