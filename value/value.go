package value

import "math"

// Value is a tagged machine word.
type Value uint64

// Integer range of immediates.
const (
	MaxInt = math.MaxInt64 >> 1
	MinInt = math.MinInt64 >> 1
)

// Immediate constants. Several managed-side constructors share a word.
const (
	Unit      Value = 1 // ()
	False     Value = 1 // false
	True      Value = 3 // true
	None      Value = 1 // None
	EmptyList Value = 1 // []
)

// OfInt tags n as an immediate. Bits beyond the 63-bit range are lost.
func OfInt(n int64) Value {
	return Value(uint64(n)<<1 | 1)
}

// OfBool returns True or False.
func OfBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// OfPointer makes a block value from the offset of its first field.
func OfPointer(offset uint32) Value {
	return Value(offset)
}

// IsInt reports whether v is an immediate integer.
func (v Value) IsInt() bool {
	return v&1 == 1
}

// IsBlock reports whether v points to a heap block.
func (v Value) IsBlock() bool {
	return v&1 == 0
}

// Int untags an immediate. Not meaningful for blocks.
func (v Value) Int() int64 {
	return int64(v) >> 1
}

// Bool reads an immediate boolean.
func (v Value) Bool() bool {
	return v != False
}

// Pointer is the byte offset of the block's first field.
func (v Value) Pointer() uint32 {
	return uint32(v)
}

// Exception-result encoding: a callback that raised returns exn|2.
const exceptionBits Value = 2

// ExceptionResult marks exn as a raised exception rather than a result.
func ExceptionResult(exn Value) Value {
	return exn | exceptionBits
}

// IsExceptionResult reports whether a word returned by a callback carries
// an exception.
func (v Value) IsExceptionResult() bool {
	return v&3 == exceptionBits
}

// Exception recovers the exception value from an exception result.
func (v Value) Exception() Value {
	return v &^ 3
}
