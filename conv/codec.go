package conv

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/value"
)

// Codec converts between T and managed values.
type Codec[T any] interface {
	// Encode allocates the managed representation of x.
	Encode(rt ffi.Runtime, x T) value.Value
	// Decode reads v into a T.
	Decode(rt ffi.Runtime, v value.Value) (T, error)
	// DecodePath is Decode reporting errors under path.
	DecodePath(rt ffi.Runtime, v value.Value, path []string) (T, error)
	// MLType names the managed type for error messages.
	MLType() string
}

// ToValuer is implemented by types that encode themselves.
type ToValuer interface {
	ToValue(rt ffi.Runtime) value.Value
}

// FromValuer is implemented by pointers to types that decode themselves.
type FromValuer interface {
	FromValue(rt ffi.Runtime, v value.Value) error
}

// EncodeFunc and DecodeFunc are the halves of a codec built by Func.
type (
	EncodeFunc[T any] func(rt ffi.Runtime, x T) value.Value
	DecodeFunc[T any] func(rt ffi.Runtime, v value.Value, path []string) (T, error)
)

type funcCodec[T any] struct {
	enc    EncodeFunc[T]
	dec    DecodeFunc[T]
	mlType string
}

// Func builds a codec from an encoder and a path-aware decoder.
func Func[T any](mlType string, enc EncodeFunc[T], dec DecodeFunc[T]) Codec[T] {
	return &funcCodec[T]{enc: enc, dec: dec, mlType: mlType}
}

func (c *funcCodec[T]) Encode(rt ffi.Runtime, x T) value.Value {
	return c.enc(rt, x)
}

func (c *funcCodec[T]) Decode(rt ffi.Runtime, v value.Value) (T, error) {
	return c.dec(rt, v, nil)
}

func (c *funcCodec[T]) DecodePath(rt ffi.Runtime, v value.Value, path []string) (T, error) {
	return c.dec(rt, v, path)
}

func (c *funcCodec[T]) MLType() string {
	return c.mlType
}

// Self is the codec of a type implementing ToValuer, whose pointer
// implements FromValuer.
func Self[T ToValuer, P interface {
	*T
	FromValuer
}](mlType string) Codec[T] {
	return Func(mlType,
		func(rt ffi.Runtime, x T) value.Value {
			return x.ToValue(rt)
		},
		func(rt ffi.Runtime, v value.Value, path []string) (T, error) {
			var x T
			if err := P(&x).FromValue(rt, v); err != nil {
				return x, WithPath(err, path)
			}
			return x, nil
		})
}

// Value is the identity codec.
func Value() Codec[value.Value] {
	return valueCodec
}

var valueCodec = Func("'a",
	func(_ ffi.Runtime, x value.Value) value.Value { return x },
	func(_ ffi.Runtime, v value.Value, _ []string) (value.Value, error) { return v, nil })

// WithPath prefixes the path of a structured error with path.
func WithPath(err error, path []string) error {
	if len(path) == 0 {
		return err
	}
	e, ok := err.(*errors.Error)
	if !ok {
		w := errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "")
		w.Path = append([]string(nil), path...)
		return w
	}
	cp := *e
	cp.Path = append(append([]string(nil), path...), e.Path...)
	return &cp
}

// mismatch reports a value of the wrong shape.
func mismatch(rt ffi.Runtime, v value.Value, path []string, mlType string) error {
	return errors.UnexpectedTag(errors.PhaseDecode, path, mlType, ffi.DescribeShape(rt, v))
}

// isBlock reports whether v is a block with the given tag.
func isBlock(rt ffi.Runtime, v value.Value, tag uint8) bool {
	return v.IsBlock() && rt.Heap().Tag(v) == tag
}
