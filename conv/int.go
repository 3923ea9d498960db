package conv

import (
	"math"
	"unicode/utf8"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/value"
)

func decodeImmediate(rt ffi.Runtime, v value.Value, path []string, mlType string) (int64, error) {
	if !v.IsInt() {
		return 0, mismatch(rt, v, path, mlType)
	}
	return v.Int(), nil
}

func decodeRange(rt ffi.Runtime, v value.Value, path []string, lo, hi int64, goType string) (int64, error) {
	n, err := decodeImmediate(rt, v, path, "int")
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, errors.Overflow(errors.PhaseDecode, path, n, goType)
	}
	return n, nil
}

var intCodec = Func("int",
	func(_ ffi.Runtime, x int) value.Value { return value.OfInt(int64(x)) },
	func(rt ffi.Runtime, v value.Value, path []string) (int, error) {
		n, err := decodeImmediate(rt, v, path, "int")
		return int(n), err
	})

// Int maps Go int to the 63-bit immediate integer. Encoding wraps values
// outside value.MinInt..value.MaxInt.
func Int() Codec[int] { return intCodec }

var int32Codec = Func("int",
	func(_ ffi.Runtime, x int32) value.Value { return value.OfInt(int64(x)) },
	func(rt ffi.Runtime, v value.Value, path []string) (int32, error) {
		n, err := decodeRange(rt, v, path, math.MinInt32, math.MaxInt32, "int32")
		return int32(n), err
	})

// Int32 maps int32 to an immediate, rejecting out-of-range values on
// decode.
func Int32() Codec[int32] { return int32Codec }

var uint32Codec = Func("int",
	func(_ ffi.Runtime, x uint32) value.Value { return value.OfInt(int64(x)) },
	func(rt ffi.Runtime, v value.Value, path []string) (uint32, error) {
		n, err := decodeRange(rt, v, path, 0, math.MaxUint32, "uint32")
		return uint32(n), err
	})

// Uint32 maps uint32 to an immediate.
func Uint32() Codec[uint32] { return uint32Codec }

var int16Codec = Func("int",
	func(_ ffi.Runtime, x int16) value.Value { return value.OfInt(int64(x)) },
	func(rt ffi.Runtime, v value.Value, path []string) (int16, error) {
		n, err := decodeRange(rt, v, path, math.MinInt16, math.MaxInt16, "int16")
		return int16(n), err
	})

// Int16 maps int16 to an immediate.
func Int16() Codec[int16] { return int16Codec }

var uint8Codec = Func("int",
	func(_ ffi.Runtime, x uint8) value.Value { return value.OfInt(int64(x)) },
	func(rt ffi.Runtime, v value.Value, path []string) (uint8, error) {
		n, err := decodeRange(rt, v, path, 0, math.MaxUint8, "uint8")
		return uint8(n), err
	})

// Uint8 maps a byte to an immediate.
func Uint8() Codec[uint8] { return uint8Codec }

var charCodec = Func("char",
	func(_ ffi.Runtime, x rune) value.Value { return value.OfInt(int64(x)) },
	func(rt ffi.Runtime, v value.Value, path []string) (rune, error) {
		n, err := decodeImmediate(rt, v, path, "char")
		if err != nil {
			return 0, err
		}
		if n < 0 || n > utf8.MaxRune {
			return 0, errors.Overflow(errors.PhaseDecode, path, n, "rune")
		}
		return rune(n), nil
	})

// Char maps a rune to its code point as an immediate.
func Char() Codec[rune] { return charCodec }

var boolCodec = Func("bool",
	func(_ ffi.Runtime, x bool) value.Value { return value.OfBool(x) },
	func(rt ffi.Runtime, v value.Value, path []string) (bool, error) {
		if v != value.True && v != value.False {
			return false, mismatch(rt, v, path, "bool")
		}
		return v == value.True, nil
	})

// Bool maps bool to the immediates true and false.
func Bool() Codec[bool] { return boolCodec }

var unitCodec = Func("unit",
	func(_ ffi.Runtime, _ struct{}) value.Value { return value.Unit },
	func(rt ffi.Runtime, v value.Value, path []string) (struct{}, error) {
		if v != value.Unit {
			return struct{}{}, mismatch(rt, v, path, "unit")
		}
		return struct{}{}, nil
	})

// Unit maps struct{} to ().
func Unit() Codec[struct{}] { return unitCodec }
