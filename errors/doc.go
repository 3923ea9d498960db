// Package errors provides structured error types for the mlbridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the value path, Go and managed type
// names, the offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
//		Path("point", "x").
//		GoType("float64").
//		MLType("int").
//		Detail("expected a boxed float").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseDecode, path, "string", "int")
//	err := errors.OutOfBounds(errors.PhaseDecode, path, 10, 5)
//	err := errors.NotCallable(tag)
//
// Memory-safety violations (unbalanced root frames, use of a released
// global root, touching the heap without the domain lock) are not returned;
// they panic with an *Error of kind KindRootCorruption or KindLock.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
