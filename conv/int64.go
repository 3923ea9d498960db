package conv

import (
	"cmp"
	"encoding/binary"

	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/value"
)

func int64Payload(rt ffi.Runtime, v value.Value) int64 {
	return int64(rt.Heap().PayloadWord(v, 0))
}

// Int64Ops is the operations table of boxed 64-bit integers.
var Int64Ops = &ffi.CustomOps{
	Identifier: "_j",
	Compare: func(rt ffi.Runtime, a, b value.Value) int {
		return cmp.Compare(int64Payload(rt, a), int64Payload(rt, b))
	},
	Hash: func(rt ffi.Runtime, v value.Value) int64 {
		n := int64Payload(rt, v)
		return int64(uint32(n)) ^ int64(uint32(n>>32))
	},
	Serialize: func(rt ffi.Runtime, v value.Value) []byte {
		return binary.BigEndian.AppendUint64(nil, uint64(int64Payload(rt, v)))
	},
	Deserialize: func(rt ffi.Runtime, data []byte, v value.Value) {
		rt.Heap().SetPayloadWord(v, 0, binary.BigEndian.Uint64(data))
	},
	FixedLength: &ffi.FixedLength{Bsize32: 8, Bsize64: 8},
}

// AllocInt64 boxes n in a custom block.
func AllocInt64(rt ffi.Runtime, n int64) value.Value {
	v := rt.AllocCustom(Int64Ops, 8, 0, 1)
	rt.Heap().SetPayloadWord(v, 0, uint64(n))
	return v
}

var int64Codec = Func("int64",
	AllocInt64,
	func(rt ffi.Runtime, v value.Value, path []string) (int64, error) {
		if !isBlock(rt, v, value.CustomTag) {
			return 0, mismatch(rt, v, path, "int64")
		}
		ops, ok := rt.CustomOpsAt(rt.Heap().CustomIndex(v))
		if !ok || ops != Int64Ops {
			return 0, mismatch(rt, v, path, "int64")
		}
		return int64Payload(rt, v), nil
	})

// Int64 maps int64 to a boxed custom block, keeping all 64 bits.
func Int64() Codec[int64] { return int64Codec }
