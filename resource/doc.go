// Package resource holds Go values that managed blocks refer to by handle.
//
// Go pointers cannot be stored in the managed heap: the heap is a linear
// memory the Go collector does not scan. A boxed Go value instead lives in a
// Table and the managed custom block carries its integer Handle. The block's
// finalizer removes the entry when the collector frees the block.
//
//	table := resource.NewTable()
//	h := table.Insert(typeID, conn)
//	v, ok := table.GetTyped(h, typeID)
//	table.Remove(h) // calls Drop() when the value implements Dropper
//
// Handle 0 is never issued. Handles are reused after removal.
package resource
