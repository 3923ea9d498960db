package conv

import (
	"strings"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// Tuple element holders.
type (
	T2[A, B any] struct {
		First  A
		Second B
	}
	T3[A, B, C any] struct {
		First  A
		Second B
		Third  C
	}
	T4[A, B, C, D any] struct {
		First  A
		Second B
		Third  C
		Fourth D
	}
)

func tupleType(parts ...string) string {
	return strings.Join(parts, " * ")
}

func tupleFields(rt ffi.Runtime, v value.Value, path []string, n int, mlType string) ([]value.Value, error) {
	return Fields(rt, v, path, 0, n, mlType)
}

// Fields checks that v is a block with the given tag and n fields and
// returns the fields. Generated decoders use it for records and variant
// cases.
func Fields(rt ffi.Runtime, v value.Value, path []string, tag uint8, n int, mlType string) ([]value.Value, error) {
	if !isBlock(rt, v, tag) {
		return nil, mismatch(rt, v, path, mlType)
	}
	b := rt.Heap().Block(v)
	if b.Len() != n {
		return nil, errors.SizeMismatch(errors.PhaseDecode, path, n, b.Len())
	}
	fields := make([]value.Value, n)
	for i := range fields {
		fields[i] = b.At(i)
	}
	return fields, nil
}

// Pair maps T2 to a two-field tuple.
func Pair[A, B any](ca Codec[A], cb Codec[B]) Codec[T2[A, B]] {
	mlType := tupleType(ca.MLType(), cb.MLType())
	return Func(mlType,
		func(rt ffi.Runtime, x T2[A, B]) value.Value {
			var a, b value.Value
			defer roots.Enter(rt.LocalRoots(), &a, &b).Leave()
			a = ca.Encode(rt, x.First)
			b = cb.Encode(rt, x.Second)
			return ffi.AllocTuple(rt, a, b)
		},
		func(rt ffi.Runtime, v value.Value, path []string) (T2[A, B], error) {
			var out T2[A, B]
			f, err := tupleFields(rt, v, path, 2, mlType)
			if err != nil {
				return out, err
			}
			if out.First, err = ca.DecodePath(rt, f[0], indexPath(path, 0)); err != nil {
				return out, err
			}
			if out.Second, err = cb.DecodePath(rt, f[1], indexPath(path, 1)); err != nil {
				return out, err
			}
			return out, nil
		})
}

// Triple maps T3 to a three-field tuple.
func Triple[A, B, C any](ca Codec[A], cb Codec[B], cc Codec[C]) Codec[T3[A, B, C]] {
	mlType := tupleType(ca.MLType(), cb.MLType(), cc.MLType())
	return Func(mlType,
		func(rt ffi.Runtime, x T3[A, B, C]) value.Value {
			var a, b, c value.Value
			defer roots.Enter(rt.LocalRoots(), &a, &b, &c).Leave()
			a = ca.Encode(rt, x.First)
			b = cb.Encode(rt, x.Second)
			c = cc.Encode(rt, x.Third)
			return ffi.AllocTuple(rt, a, b, c)
		},
		func(rt ffi.Runtime, v value.Value, path []string) (T3[A, B, C], error) {
			var out T3[A, B, C]
			f, err := tupleFields(rt, v, path, 3, mlType)
			if err != nil {
				return out, err
			}
			if out.First, err = ca.DecodePath(rt, f[0], indexPath(path, 0)); err != nil {
				return out, err
			}
			if out.Second, err = cb.DecodePath(rt, f[1], indexPath(path, 1)); err != nil {
				return out, err
			}
			if out.Third, err = cc.DecodePath(rt, f[2], indexPath(path, 2)); err != nil {
				return out, err
			}
			return out, nil
		})
}

// Tuple4 maps T4 to a four-field tuple.
func Tuple4[A, B, C, D any](ca Codec[A], cb Codec[B], cc Codec[C], cd Codec[D]) Codec[T4[A, B, C, D]] {
	mlType := tupleType(ca.MLType(), cb.MLType(), cc.MLType(), cd.MLType())
	return Func(mlType,
		func(rt ffi.Runtime, x T4[A, B, C, D]) value.Value {
			var a, b, c, d value.Value
			defer roots.Enter(rt.LocalRoots(), &a, &b, &c, &d).Leave()
			a = ca.Encode(rt, x.First)
			b = cb.Encode(rt, x.Second)
			c = cc.Encode(rt, x.Third)
			d = cd.Encode(rt, x.Fourth)
			return ffi.AllocTuple(rt, a, b, c, d)
		},
		func(rt ffi.Runtime, v value.Value, path []string) (T4[A, B, C, D], error) {
			var out T4[A, B, C, D]
			f, err := tupleFields(rt, v, path, 4, mlType)
			if err != nil {
				return out, err
			}
			if out.First, err = ca.DecodePath(rt, f[0], indexPath(path, 0)); err != nil {
				return out, err
			}
			if out.Second, err = cb.DecodePath(rt, f[1], indexPath(path, 1)); err != nil {
				return out, err
			}
			if out.Third, err = cc.DecodePath(rt, f[2], indexPath(path, 2)); err != nil {
				return out, err
			}
			if out.Fourth, err = cd.DecodePath(rt, f[3], indexPath(path, 3)); err != nil {
				return out, err
			}
			return out, nil
		})
}
