package heap

import (
	"math"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

const word = value.WordSize

// View reads and writes blocks stored in a Memory.
type View struct {
	mem mlbridge.Memory
}

// New returns a view over mem.
func New(mem mlbridge.Memory) View {
	return View{mem: mem}
}

// Memory returns the underlying memory.
func (h View) Memory() mlbridge.Memory {
	return h.mem
}

func fault(op string, offset uint32, cause error) {
	panic(errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
		Detail("%s at offset %d", op, offset).
		Cause(cause).
		Build())
}

// LoadWord reads the raw word at offset.
func (h View) LoadWord(offset uint32) uint64 {
	w, err := h.mem.ReadU64(offset)
	if err != nil {
		fault("load", offset, err)
	}
	return w
}

// StoreWord writes the raw word at offset.
func (h View) StoreWord(offset uint32, w uint64) {
	if err := h.mem.WriteU64(offset, w); err != nil {
		fault("store", offset, err)
	}
}

// Header reads the header of block v.
func (h View) Header(v value.Value) value.Header {
	return value.Header(h.LoadWord(v.Pointer() - word))
}

// SetHeader overwrites the header of block v.
func (h View) SetHeader(v value.Value, hd value.Header) {
	h.StoreWord(v.Pointer()-word, uint64(hd))
}

// Tag returns the tag byte of block v.
func (h View) Tag(v value.Value) uint8 {
	return h.Header(v).Tag()
}

// Size returns the number of fields in block v.
func (h View) Size(v value.Value) int {
	return h.Header(v).Wosize()
}

// FieldAddr returns the offset of field i of block v.
func FieldAddr(v value.Value, i int) uint32 {
	return v.Pointer() + uint32(i)*word
}

// Field reads field i of block v without checking i against the size.
func (h View) Field(v value.Value, i int) value.Value {
	return value.Value(h.LoadWord(FieldAddr(v, i)))
}

// InitField stores x into field i of block v bypassing the write barrier.
func (h View) InitField(v value.Value, i int, x value.Value) {
	h.StoreWord(FieldAddr(v, i), uint64(x))
}

// Block is a bounds-aware handle on one block, for code iterating fields.
type Block struct {
	h    View
	v    value.Value
	size int
}

// Block reads the header of v once and returns a checked handle.
func (h View) Block(v value.Value) Block {
	return Block{h: h, v: v, size: h.Size(v)}
}

// Len is the number of fields.
func (b Block) Len() int { return b.size }

// Value is the block itself.
func (b Block) Value() value.Value { return b.v }

// At reads field i, panicking with an out-of-bounds error past the end.
func (b Block) At(i int) value.Value {
	if i < 0 || i >= b.size {
		panic(errors.OutOfBounds(errors.PhaseRuntime, nil, i, b.size))
	}
	return b.h.Field(b.v, i)
}

// Double reads the unboxed float of a Double block.
func (h View) Double(v value.Value) float64 {
	return math.Float64frombits(h.LoadWord(v.Pointer()))
}

// SetDouble writes the float of a Double block.
func (h View) SetDouble(v value.Value, f float64) {
	h.StoreWord(v.Pointer(), math.Float64bits(f))
}

// DoubleField reads element i of a DoubleArray block.
func (h View) DoubleField(v value.Value, i int) float64 {
	return math.Float64frombits(h.LoadWord(FieldAddr(v, i)))
}

// SetDoubleField writes element i of a DoubleArray block.
func (h View) SetDoubleField(v value.Value, i int, f float64) {
	h.StoreWord(FieldAddr(v, i), math.Float64bits(f))
}
