package memory

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/mlbridge"
)

// Slice is an in-process memory backed by a byte slice.
type Slice struct {
	buf []byte
}

var (
	_ mlbridge.Memory      = (*Slice)(nil)
	_ mlbridge.MemorySizer = (*Slice)(nil)
)

// NewSlice allocates a zeroed memory of size bytes.
func NewSlice(size uint32) *Slice {
	return &Slice{buf: make([]byte, size)}
}

func (m *Slice) check(offset, length uint32) bool {
	end := uint64(offset) + uint64(length)
	return end <= uint64(len(m.buf))
}

// Read returns a view of length bytes at offset.
func (m *Slice) Read(offset uint32, length uint32) ([]byte, error) {
	if !m.check(offset, length) {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return m.buf[offset : offset+length : offset+length], nil
}

// Write copies data to offset.
func (m *Slice) Write(offset uint32, data []byte) error {
	if !m.check(offset, uint32(len(data))) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	copy(m.buf[offset:], data)
	return nil
}

// ReadU8 reads one byte.
func (m *Slice) ReadU8(offset uint32) (uint8, error) {
	if !m.check(offset, 1) {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return m.buf[offset], nil
}

// ReadU64 reads a little-endian word.
func (m *Slice) ReadU64(offset uint32) (uint64, error) {
	if !m.check(offset, 8) {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), nil
}

// WriteU8 writes one byte.
func (m *Slice) WriteU8(offset uint32, value uint8) error {
	if !m.check(offset, 1) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	m.buf[offset] = value
	return nil
}

// WriteU64 writes a little-endian word.
func (m *Slice) WriteU64(offset uint32, value uint64) error {
	if !m.check(offset, 8) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	binary.LittleEndian.PutUint64(m.buf[offset:], value)
	return nil
}

// Size is the memory size in bytes.
func (m *Slice) Size() uint32 {
	return uint32(len(m.buf))
}
