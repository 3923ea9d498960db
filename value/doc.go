// Package value defines the tagged machine word shared by native code and
// the managed runtime.
//
// A Value whose low bit is set is an immediate integer n stored as n<<1|1,
// so the integer range is one bit narrower than the word. A Value whose low
// bit is clear is the byte offset of the first field of a heap block; the
// block header is the word immediately before it.
//
// Nothing in this package touches memory. Reading a block's header or
// fields goes through package heap.
package value
