package ffi

import (
	"cmp"
	"fmt"
	"reflect"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/resource"
	"github.com/wippyai/mlbridge/value"
)

// boxTypeID tags Go values stored by Box in the resource table.
const boxTypeID uint32 = 1

// BoxOps is the operations table of blocks made by Box. The payload is the
// resource handle; finalisation drops it from the table.
var BoxOps = &CustomOps{
	Identifier: "_gobox",
	Finalize: func(rt Runtime, v value.Value) {
		rt.Resources().Remove(boxHandle(rt, v))
	},
	Compare: func(rt Runtime, a, b value.Value) int {
		return cmp.Compare(boxHandle(rt, a), boxHandle(rt, b))
	},
	Hash: func(rt Runtime, v value.Value) int64 {
		return int64(boxHandle(rt, v))
	},
}

func boxHandle(rt Runtime, v value.Value) resource.Handle {
	return resource.Handle(rt.Heap().PayloadWord(v, 0))
}

// Box stores x in the runtime's resource table and returns a custom block
// referencing it. The table entry lives until the block is collected.
func Box(rt Runtime, x any) value.Value {
	h := rt.Resources().Insert(boxTypeID, x)
	ok := false
	defer func() {
		if !ok {
			rt.Resources().Remove(h)
		}
	}()

	v := rt.AllocCustom(BoxOps, value.WordSize, 1, 1<<20)
	rt.Heap().SetPayloadWord(v, 0, uint64(h))
	ok = true
	return v
}

// Unbox returns the Go value stored by Box.
func Unbox[T any](rt Runtime, v value.Value) (T, error) {
	var zero T
	if v.IsInt() || rt.Heap().Tag(v) != value.CustomTag {
		return zero, errors.UnexpectedTag(errors.PhaseDecode, nil, "boxed Go value", DescribeShape(rt, v))
	}
	ops, ok := rt.CustomOpsAt(rt.Heap().CustomIndex(v))
	if !ok || ops != BoxOps {
		return zero, errors.UnexpectedTag(errors.PhaseDecode, nil, "boxed Go value", "foreign custom block")
	}

	x, ok := rt.Resources().GetTyped(boxHandle(rt, v), boxTypeID)
	if !ok {
		return zero, errors.InvalidData(errors.PhaseDecode, nil, "boxed value already finalized")
	}
	t, ok := x.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseDecode, nil, reflect.TypeFor[T]().String(), fmt.Sprintf("boxed %T", x))
	}
	return t, nil
}

// DescribeShape renders the shape of v for error messages.
func DescribeShape(rt Runtime, v value.Value) string {
	if v.IsInt() {
		return "immediate"
	}
	tag := rt.Heap().Tag(v)
	if name := value.TagName(tag); name != "" {
		return name + " block"
	}
	return fmt.Sprintf("block tag %d", tag)
}
