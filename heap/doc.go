// Package heap is the narrow unsafe accessor over managed blocks.
//
// It is the only package that turns a Value into memory offsets. Every
// operation trusts the caller about the shape of the block: reading a field
// of an immediate, or a field past the block's size, reads whatever memory
// is there. A read or write outside the Memory panics with an
// *errors.Error of kind KindOutOfBounds, the equivalent of a segmentation
// fault, and is never returned as an error.
//
//	v := heap.New(mem)
//	if x.IsBlock() && v.Tag(x) == 0 && v.Size(x) == 2 {
//	    a := v.Field(x, 0)
//	    b := v.Field(x, 1)
//	}
//
// Stores through InitField bypass the write barrier and are only correct
// for blocks that were just allocated; everything else must go through the
// runtime's Modify.
package heap
