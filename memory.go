package mlbridge

// Memory is the byte-addressed space the managed heap lives in.
// Offsets are the same numbers that appear in pointer-tagged values.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of the memory in bytes.
type MemorySizer interface {
	Size() uint32
}
