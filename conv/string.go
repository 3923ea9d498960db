package conv

import (
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/value"
)

var stringCodec = Func("string",
	ffi.AllocString,
	func(rt ffi.Runtime, v value.Value, path []string) (string, error) {
		if !isBlock(rt, v, value.StringTag) {
			return "", mismatch(rt, v, path, "string")
		}
		return rt.Heap().String(v), nil
	})

// String copies strings in both directions. Contents are bytes; invalid
// UTF-8 and NUL bytes survive unchanged.
func String() Codec[string] { return stringCodec }

var bytesCodec = Func("bytes",
	ffi.AllocBytes,
	func(rt ffi.Runtime, v value.Value, path []string) ([]byte, error) {
		if !isBlock(rt, v, value.StringTag) {
			return nil, mismatch(rt, v, path, "bytes")
		}
		return append([]byte{}, rt.Heap().Bytes(v)...), nil
	})

// Bytes copies byte slices in both directions.
func Bytes() Codec[[]byte] { return bytesCodec }

var borrowCodec = Func("string",
	ffi.AllocBytes,
	func(rt ffi.Runtime, v value.Value, path []string) ([]byte, error) {
		if !isBlock(rt, v, value.StringTag) {
			return nil, mismatch(rt, v, path, "string")
		}
		return rt.Heap().Bytes(v), nil
	})

// BorrowString decodes to a view of the string's bytes without copying.
// The view aliases the heap and is invalid after the next allocation.
func BorrowString() Codec[[]byte] { return borrowCodec }
