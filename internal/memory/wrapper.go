package memory

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/mlbridge"
)

// WrapWasm wraps a wazero api.Memory to implement mlbridge.Memory.
func WrapWasm(mem api.Memory) *Wasm {
	if mem == nil {
		return nil
	}
	return &Wasm{Mem: mem}
}

// Wasm adapts wazero api.Memory to the mlbridge.Memory interface.
type Wasm struct {
	Mem api.Memory
}

var (
	_ mlbridge.Memory      = (*Wasm)(nil)
	_ mlbridge.MemorySizer = (*Wasm)(nil)
)

// Read returns a view of length bytes at offset.
func (m *Wasm) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

// Write copies data to offset.
func (m *Wasm) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// ReadU8 reads one byte.
func (m *Wasm) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU64 reads a little-endian word.
func (m *Wasm) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// WriteU8 writes one byte.
func (m *Wasm) WriteU8(offset uint32, value uint8) error {
	if !m.Mem.WriteByte(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU64 writes a little-endian word.
func (m *Wasm) WriteU64(offset uint32, value uint64) error {
	if !m.Mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// Size is the current linear memory size in bytes.
func (m *Wasm) Size() uint32 {
	return m.Mem.Size()
}
