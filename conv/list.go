package conv

import (
	"strconv"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

func indexPath(path []string, i int) []string {
	return errors.PathWith(path, "["+strconv.Itoa(i)+"]")
}

// List maps a slice to a managed list, built by prepending from the last
// element so the order is preserved.
func List[T any](c Codec[T]) Codec[[]T] {
	return Func(c.MLType()+" list",
		func(rt ffi.Runtime, xs []T) value.Value {
			list, elem := value.EmptyList, value.Unit
			defer roots.Enter(rt.LocalRoots(), &list, &elem).Leave()
			for i := len(xs) - 1; i >= 0; i-- {
				elem = c.Encode(rt, xs[i])
				list = ffi.Cons(rt, elem, list)
			}
			return list
		},
		func(rt ffi.Runtime, v value.Value, path []string) ([]T, error) {
			h := rt.Heap()
			out := []T{}
			for i := 0; v != value.EmptyList; i++ {
				if !isBlock(rt, v, 0) || h.Size(v) != 2 {
					return nil, mismatch(rt, v, indexPath(path, i), c.MLType()+" list")
				}
				x, err := c.DecodePath(rt, h.Field(v, 0), indexPath(path, i))
				if err != nil {
					return nil, err
				}
				out = append(out, x)
				v = h.Field(v, 1)
			}
			return out, nil
		})
}

func encodeArray[T any](rt ffi.Runtime, c Codec[T], xs []T) value.Value {
	if len(xs) == 0 {
		return rt.Alloc(0, 0)
	}
	arr, elem := value.Unit, value.Unit
	defer roots.Enter(rt.LocalRoots(), &arr, &elem).Leave()
	arr = rt.Alloc(len(xs), 0)
	for i, x := range xs {
		elem = c.Encode(rt, x)
		rt.Modify(arr, i, elem)
	}
	return arr
}

func decodeArray[T any](rt ffi.Runtime, c Codec[T], v value.Value, path []string, want int) ([]T, error) {
	if !isBlock(rt, v, 0) {
		return nil, mismatch(rt, v, path, c.MLType()+" array")
	}
	b := rt.Heap().Block(v)
	if want >= 0 && b.Len() != want {
		return nil, errors.SizeMismatch(errors.PhaseDecode, path, want, b.Len())
	}
	out := make([]T, b.Len())
	for i := range out {
		x, err := c.DecodePath(rt, b.At(i), indexPath(path, i))
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// Array maps a slice to a managed array: one tag 0 block holding the
// elements.
func Array[T any](c Codec[T]) Codec[[]T] {
	return Func(c.MLType()+" array",
		func(rt ffi.Runtime, xs []T) value.Value {
			return encodeArray(rt, c, xs)
		},
		func(rt ffi.Runtime, v value.Value, path []string) ([]T, error) {
			return decodeArray(rt, c, v, path, -1)
		})
}

// FixedArray is Array for arrays of exactly n elements. Decoding an array
// of another size is a size-mismatch error; encoding a slice of another
// length panics with the same error.
func FixedArray[T any](c Codec[T], n int) Codec[[]T] {
	return Func(c.MLType()+" array",
		func(rt ffi.Runtime, xs []T) value.Value {
			if len(xs) != n {
				panic(errors.SizeMismatch(errors.PhaseEncode, nil, n, len(xs)))
			}
			return encodeArray(rt, c, xs)
		},
		func(rt ffi.Runtime, v value.Value, path []string) ([]T, error) {
			return decodeArray(rt, c, v, path, n)
		})
}

// Index decodes element i of a managed array, returning an out-of-bounds
// error past its end.
func Index[T any](rt ffi.Runtime, c Codec[T], v value.Value, i int) (T, error) {
	var zero T
	if !isBlock(rt, v, 0) {
		return zero, mismatch(rt, v, nil, c.MLType()+" array")
	}
	size := rt.Heap().Size(v)
	if i < 0 || i >= size {
		return zero, errors.OutOfBounds(errors.PhaseDecode, nil, i, size)
	}
	return c.DecodePath(rt, rt.Heap().Field(v, i), indexPath(nil, i))
}
