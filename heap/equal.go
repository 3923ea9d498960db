package heap

import (
	"bytes"

	"github.com/wippyai/mlbridge/value"
)

// CustomCompare compares two Custom blocks. ok is false when the blocks'
// operations have no comparator.
type CustomCompare func(a, b value.Value) (cmp int, ok bool)

// DeepEqual compares a and b structurally. Floats compare by bits, strings
// by content, custom blocks through custom (identity when custom is nil or
// declines). Closures and abstract blocks compare by identity.
func (h View) DeepEqual(a, b value.Value, custom CustomCompare) bool {
	type pair struct{ a, b value.Value }
	stack := []pair{{a, b}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.a == p.b {
			continue
		}
		if p.a.IsInt() || p.b.IsInt() {
			return false
		}

		ha, hb := h.Header(p.a), h.Header(p.b)
		if ha.Tag() != hb.Tag() || ha.Wosize() != hb.Wosize() {
			return false
		}

		switch ha.Tag() {
		case value.StringTag:
			if !bytes.Equal(h.Bytes(p.a), h.Bytes(p.b)) {
				return false
			}
		case value.DoubleTag, value.DoubleArrayTag:
			for i := 0; i < ha.Wosize(); i++ {
				if h.LoadWord(FieldAddr(p.a, i)) != h.LoadWord(FieldAddr(p.b, i)) {
					return false
				}
			}
		case value.CustomTag:
			if custom == nil {
				return false
			}
			cmp, ok := custom(p.a, p.b)
			if !ok || cmp != 0 {
				return false
			}
		case value.ClosureTag, value.AbstractTag, value.ObjectTag:
			return false
		default:
			for i := ha.Wosize() - 1; i >= 0; i-- {
				stack = append(stack, pair{h.Field(p.a, i), h.Field(p.b, i)})
			}
		}
	}
	return true
}
