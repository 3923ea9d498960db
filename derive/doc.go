// Package derive compiles Go type declarations into managed-value codecs.
//
// Structs become records: one tag 0 block holding the fields in
// declaration order. A sum type is a Go interface whose cases are struct
// types registered with Variant:
//
//	type Shape interface{ isShape() }
//	type Point struct{}
//	type Circle struct{ R float64 }
//	type Rect struct{ W, H float64 }
//
//	shapes, err := derive.Variant[Shape](
//	    derive.Case[Point](),  // immediate 0
//	    derive.Case[Circle](), // block tag 0
//	    derive.Case[Rect](),   // block tag 1
//	)
//
// Cases without fields are numbered as immediates and cases with fields as
// block tags, each counter starting at 0 and advancing in declaration
// order independently of the other.
//
// Record options select other encodings. Unboxed represents a one-field
// type by its field's value. FloatArray stores an all-float64 record as a
// flat DoubleArray block. Misuse is reported when the type is declared,
// never at encode time.
//
// For compiles any other supported Go type: integers, floats, bool,
// string, []byte, slices (lists, or arrays with the `ml:"array"` field
// tag), Go arrays (fixed-size arrays), maps (sorted association lists),
// pointers (options), value.Value, and types implementing conv.ToValuer
// and conv.FromValuer. Compiled codecs are cached per type.
//
// Export wraps a Go function into an ffi.Primitive, compiling its
// parameter and result types the same way.
package derive
