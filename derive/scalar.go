package derive

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/wippyai/mlbridge/conv"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/value"
)

func fillIdentity(p *plan) {
	p.enc = func(_ ffi.Runtime, x reflect.Value) value.Value {
		return value.Value(x.Uint())
	}
	p.dec = func(_ ffi.Runtime, v value.Value, _ []string, out reflect.Value) error {
		out.SetUint(uint64(v))
		return nil
	}
}

// fillSelf defers to the type's own ToValue and FromValue methods.
func fillSelf(p *plan) {
	p.enc = func(rt ffi.Runtime, x reflect.Value) value.Value {
		return x.Interface().(conv.ToValuer).ToValue(rt)
	}
	p.dec = func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error {
		if err := out.Addr().Interface().(conv.FromValuer).FromValue(rt, v); err != nil {
			return conv.WithPath(err, path)
		}
		return nil
	}
}

// fillScalar adapts a conv codec, converting through T so named types
// with T's underlying type share it.
func fillScalar[T any](p *plan, c conv.Codec[T]) {
	tt := reflect.TypeFor[T]()
	p.enc = func(rt ffi.Runtime, x reflect.Value) value.Value {
		return c.Encode(rt, x.Convert(tt).Interface().(T))
	}
	p.dec = func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error {
		x, err := c.DecodePath(rt, v, path)
		if err != nil {
			return err
		}
		out.Set(reflect.ValueOf(x).Convert(out.Type()))
		return nil
	}
}

// fillImmediate covers the integer kinds without a dedicated codec.
// Encoding an unsigned value above value.MaxInt panics with an overflow
// error.
func fillImmediate(p *plan) {
	signed := p.goType.Kind() == reflect.Int8
	p.enc = func(_ ffi.Runtime, x reflect.Value) value.Value {
		if signed {
			return value.OfInt(x.Int())
		}
		u := x.Uint()
		if u > value.MaxInt {
			panic(errors.Overflow(errors.PhaseEncode, nil, u, "int"))
		}
		return value.OfInt(int64(u))
	}
	p.dec = func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error {
		if !v.IsInt() {
			return errors.UnexpectedTag(errors.PhaseDecode, path, "int", ffi.DescribeShape(rt, v))
		}
		n := v.Int()
		if signed {
			if out.OverflowInt(n) {
				return errors.Overflow(errors.PhaseDecode, path, n, out.Type().String())
			}
			out.SetInt(n)
			return nil
		}
		if n < 0 || out.OverflowUint(uint64(n)) {
			return errors.Overflow(errors.PhaseDecode, path, n, out.Type().String())
		}
		out.SetUint(uint64(n))
		return nil
	}
}

func isFloatKind(t reflect.Type) bool {
	return t.Kind() == reflect.Float64 || t.Kind() == reflect.Float32
}

// mlTypeName names t the way error messages print managed types.
func mlTypeName(t reflect.Type, h hint) string {
	if t == valueType {
		return "'a"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return "int"
	case reflect.Int64:
		return "int64"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.String:
		return "string"
	}
	if t.Name() != "" {
		return SnakeCase(t.Name())
	}
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && h == hintNone {
			return "bytes"
		}
		if h != hintNone {
			return mlTypeName(t.Elem(), hintNone) + " array"
		}
		return mlTypeName(t.Elem(), hintNone) + " list"
	case reflect.Array:
		return mlTypeName(t.Elem(), hintNone) + " array"
	case reflect.Map:
		return "(" + mlTypeName(t.Key(), hintNone) + " * " + mlTypeName(t.Elem(), hintNone) + ") list"
	case reflect.Pointer:
		return mlTypeName(t.Elem(), hintNone) + " option"
	case reflect.Struct:
		if t == emptyStructType {
			return "unit"
		}
		return "record"
	}
	return t.String()
}

// SnakeCase converts a Go identifier to snake_case: "HTTPServer" becomes
// "http_server".
func SnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
