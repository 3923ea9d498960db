package heap

import (
	"github.com/wippyai/mlbridge/value"
)

// StringWosize is the number of words a string of n bytes occupies,
// including the padding byte.
func StringWosize(n int) int {
	return (n + word) / word
}

// InitString writes the trailing padding byte of a freshly allocated
// string block of n bytes so that StringLen recovers n.
func (h View) InitString(v value.Value, n int) {
	wosize := StringWosize(n)
	last := FieldAddr(v, wosize) - 1
	h.StoreWord(FieldAddr(v, wosize-1), 0)
	pad := uint8(wosize*word - 1 - n)
	if err := h.mem.WriteU8(last, pad); err != nil {
		fault("store", last, err)
	}
}

// StringLen returns the byte length of a String block.
func (h View) StringLen(v value.Value) int {
	wosize := h.Size(v)
	if wosize == 0 {
		return 0
	}
	last := FieldAddr(v, wosize) - 1
	pad, err := h.mem.ReadU8(last)
	if err != nil {
		fault("load", last, err)
	}
	return wosize*word - 1 - int(pad)
}

// Bytes returns a view of the contents of a String block. The view aliases
// the heap: it is only valid until the next allocation, which may move or
// overwrite the block.
func (h View) Bytes(v value.Value) []byte {
	n := h.StringLen(v)
	if n == 0 {
		return nil
	}
	b, err := h.mem.Read(v.Pointer(), uint32(n))
	if err != nil {
		fault("load", v.Pointer(), err)
	}
	return b
}

// String copies the contents of a String block.
func (h View) String(v value.Value) string {
	return string(h.Bytes(v))
}

// WriteBytes copies b into a String block starting at byte offset at.
func (h View) WriteBytes(v value.Value, at int, b []byte) {
	if len(b) == 0 {
		return
	}
	offset := v.Pointer() + uint32(at)
	if err := h.mem.Write(offset, b); err != nil {
		fault("store", offset, err)
	}
}

// Custom blocks keep the operations-table index in field 0; the payload
// starts at field 1.

// CustomIndex returns the operations-table index of a Custom block.
func (h View) CustomIndex(v value.Value) int {
	return int(h.Field(v, 0).Int())
}

// PayloadWord reads payload word i of a Custom block.
func (h View) PayloadWord(v value.Value, i int) uint64 {
	return h.LoadWord(FieldAddr(v, 1+i))
}

// SetPayloadWord writes payload word i of a Custom block.
func (h View) SetPayloadWord(v value.Value, i int, w uint64) {
	h.StoreWord(FieldAddr(v, 1+i), w)
}

// Payload returns a view of the first n payload bytes of a Custom block.
func (h View) Payload(v value.Value, n int) []byte {
	if n == 0 {
		return nil
	}
	offset := FieldAddr(v, 1)
	b, err := h.mem.Read(offset, uint32(n))
	if err != nil {
		fault("load", offset, err)
	}
	return b
}

// PayloadWords is the number of words a payload of n bytes needs.
func PayloadWords(n int) int {
	return (n + word - 1) / word
}
