package conv

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// Option maps a nil pointer to None and a non-nil one to Some of its
// target.
func Option[T any](c Codec[T]) Codec[*T] {
	return Func(c.MLType()+" option",
		func(rt ffi.Runtime, x *T) value.Value {
			if x == nil {
				return value.None
			}
			inner := c.Encode(rt, *x)
			return ffi.Some(rt, inner)
		},
		func(rt ffi.Runtime, v value.Value, path []string) (*T, error) {
			if v == value.None {
				return nil, nil
			}
			if !isBlock(rt, v, 0) || rt.Heap().Size(v) != 1 {
				return nil, mismatch(rt, v, path, c.MLType()+" option")
			}
			x, err := c.DecodePath(rt, rt.Heap().Field(v, 0), errors.PathWith(path, "Some"))
			if err != nil {
				return nil, err
			}
			return &x, nil
		})
}

// ResultOf is a value of a managed result type: Ok carries Value, Error
// carries Err.
type ResultOf[T, E any] struct {
	Value   T
	Err     E
	IsError bool
}

// Ok builds the Ok case.
func Ok[T, E any](v T) ResultOf[T, E] {
	return ResultOf[T, E]{Value: v}
}

// Err builds the Error case.
func Err[T, E any](e E) ResultOf[T, E] {
	return ResultOf[T, E]{Err: e, IsError: true}
}

// Result maps ResultOf to Ok (tag 0) and Error (tag 1) blocks.
func Result[T, E any](ok Codec[T], fail Codec[E]) Codec[ResultOf[T, E]] {
	mlType := "(" + ok.MLType() + ", " + fail.MLType() + ") result"
	return Func(mlType,
		func(rt ffi.Runtime, x ResultOf[T, E]) value.Value {
			var inner value.Value
			defer roots.Enter(rt.LocalRoots(), &inner).Leave()
			if x.IsError {
				inner = fail.Encode(rt, x.Err)
				return ffi.AllocBlock(rt, 1, inner)
			}
			inner = ok.Encode(rt, x.Value)
			return ffi.AllocBlock(rt, 0, inner)
		},
		func(rt ffi.Runtime, v value.Value, path []string) (ResultOf[T, E], error) {
			var out ResultOf[T, E]
			if v.IsInt() || rt.Heap().Size(v) != 1 {
				return out, mismatch(rt, v, path, mlType)
			}
			payload := rt.Heap().Field(v, 0)
			switch tag := rt.Heap().Tag(v); tag {
			case 0:
				x, err := ok.DecodePath(rt, payload, errors.PathWith(path, "Ok"))
				if err != nil {
					return out, err
				}
				out.Value = x
			case 1:
				e, err := fail.DecodePath(rt, payload, errors.PathWith(path, "Error"))
				if err != nil {
					return out, err
				}
				out.Err = e
				out.IsError = true
			default:
				return out, errors.InvalidDiscriminant(errors.PhaseDecode, path, int(tag), false, 1)
			}
			return out, nil
		})
}
