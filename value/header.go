package value

// Block tags with a fixed meaning. Tags below NoScanTag denote structured
// blocks (tuples, records, constructors) told apart by convention only.
const (
	LazyTag        uint8 = 246
	ClosureTag     uint8 = 247
	ObjectTag      uint8 = 248
	InfixTag       uint8 = 249
	ForwardTag     uint8 = 250
	NoScanTag      uint8 = 251
	AbstractTag    uint8 = 251
	StringTag      uint8 = 252
	DoubleTag      uint8 = 253
	DoubleArrayTag uint8 = 254
	CustomTag      uint8 = 255
)

// MaxYoungWosize is the largest block the minor heap serves.
const MaxYoungWosize = 256

// WordSize is the size of a field in bytes.
const WordSize = 8

// Header is a block header word: wosize<<10 | color<<8 | tag.
type Header uint64

// Color is the collector's mark state stored in the header.
type Color uint8

const (
	White Color = 0
	Gray  Color = 1
	Blue  Color = 2
	Black Color = 3
)

// MakeHeader packs a header.
func MakeHeader(wosize int, tag uint8, color Color) Header {
	return Header(uint64(wosize)<<10 | uint64(color&3)<<8 | uint64(tag))
}

// Wosize is the number of fields in the block.
func (h Header) Wosize() int {
	return int(h >> 10)
}

// Tag is the block tag byte.
func (h Header) Tag() uint8 {
	return uint8(h)
}

// Color is the collector color bits.
func (h Header) Color() Color {
	return Color(h>>8) & 3
}

// Scannable reports whether the collector traces this block's fields.
func (h Header) Scannable() bool {
	return h.Tag() < NoScanTag
}

// TagName returns a short name for fixed tags, or "" for structured tags.
func TagName(tag uint8) string {
	switch tag {
	case LazyTag:
		return "lazy"
	case ClosureTag:
		return "closure"
	case ObjectTag:
		return "object"
	case InfixTag:
		return "infix"
	case ForwardTag:
		return "forward"
	case AbstractTag:
		return "abstract"
	case StringTag:
		return "string"
	case DoubleTag:
		return "double"
	case DoubleArrayTag:
		return "double array"
	case CustomTag:
		return "custom"
	default:
		return ""
	}
}
