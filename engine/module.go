package engine

import (
	"bytes"
)

// PageSize is the WebAssembly page size in bytes.
const PageSize = 65536

// Binary format constants for the memory-only module.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

const (
	sectionMemory = 0x05
	sectionExport = 0x07

	limitsMin    = 0x00
	limitsMinMax = 0x01

	exportKindMemory = 0x02
)

// MemoryExport is the name under which the module exports its memory.
const MemoryExport = "memory"

// PagesFor returns the number of pages holding n bytes.
func PagesFor(n uint64) uint32 {
	return uint32((n + PageSize - 1) / PageSize)
}

// memoryModule encodes a module that declares and exports one memory of
// minPages pages, limited to maxPages when maxPages is non-zero.
func memoryModule(minPages, maxPages uint32) []byte {
	var out bytes.Buffer
	out.Write(wasmMagic)

	var mem bytes.Buffer
	writeLEB128u(&mem, 1)
	if maxPages > 0 {
		mem.WriteByte(limitsMinMax)
		writeLEB128u(&mem, minPages)
		writeLEB128u(&mem, maxPages)
	} else {
		mem.WriteByte(limitsMin)
		writeLEB128u(&mem, minPages)
	}
	writeSection(&out, sectionMemory, mem.Bytes())

	var exp bytes.Buffer
	writeLEB128u(&exp, 1)
	writeLEB128u(&exp, uint32(len(MemoryExport)))
	exp.WriteString(MemoryExport)
	exp.WriteByte(exportKindMemory)
	writeLEB128u(&exp, 0)
	writeSection(&out, sectionExport, exp.Bytes())

	return out.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, body []byte) {
	w.WriteByte(id)
	writeLEB128u(w, uint32(len(body)))
	w.Write(body)
}

// writeLEB128u writes an unsigned LEB128 value
func writeLEB128u(w *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			break
		}
	}
}
