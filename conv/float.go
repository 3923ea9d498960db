package conv

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/value"
)

func decodeDouble(rt ffi.Runtime, v value.Value, path []string) (float64, error) {
	if !isBlock(rt, v, value.DoubleTag) {
		return 0, mismatch(rt, v, path, "float")
	}
	return rt.Heap().Double(v), nil
}

var float64Codec = Func("float",
	ffi.AllocFloat,
	decodeDouble)

// Float64 maps float64 to a boxed double.
func Float64() Codec[float64] { return float64Codec }

var float32Codec = Func("float",
	func(rt ffi.Runtime, x float32) value.Value { return ffi.AllocFloat(rt, float64(x)) },
	func(rt ffi.Runtime, v value.Value, path []string) (float32, error) {
		f, err := decodeDouble(rt, v, path)
		return float32(f), err
	})

// Float32 maps float32 to a boxed double.
func Float32() Codec[float32] { return float32Codec }

var floatArrayCodec = Func("float array",
	ffi.AllocFloatArray,
	func(rt ffi.Runtime, v value.Value, path []string) ([]float64, error) {
		if v.IsBlock() && rt.Heap().Size(v) == 0 {
			return []float64{}, nil
		}
		if !isBlock(rt, v, value.DoubleArrayTag) {
			return nil, mismatch(rt, v, path, "float array")
		}
		h := rt.Heap()
		out := make([]float64, h.Size(v))
		for i := range out {
			out[i] = h.DoubleField(v, i)
		}
		return out, nil
	})

// FloatArray maps []float64 to an unboxed DoubleArray block.
func FloatArray() Codec[[]float64] { return floatArrayCodec }

// FloatFields checks that v is a DoubleArray block of n elements and
// returns them.
func FloatFields(rt ffi.Runtime, v value.Value, path []string, n int, mlType string) ([]float64, error) {
	if !isBlock(rt, v, value.DoubleArrayTag) {
		return nil, mismatch(rt, v, path, mlType)
	}
	h := rt.Heap()
	if h.Size(v) != n {
		return nil, errors.SizeMismatch(errors.PhaseDecode, path, n, h.Size(v))
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = h.DoubleField(v, i)
	}
	return out, nil
}
