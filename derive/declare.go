package derive

import (
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/wippyai/mlbridge/conv"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

// maxBlockCases is the number of block tags available to constructors
// with arguments.
const maxBlockCases = int(value.LazyTag)

// declaration records how a struct or sum interface is represented.
type declaration struct {
	cases      []reflect.Type
	unboxed    bool
	floatArray bool
}

func (d *declaration) equal(o *declaration) bool {
	return d.unboxed == o.unboxed && d.floatArray == o.floatArray && slices.Equal(d.cases, o.cases)
}

// Decl is an option or case passed to Record and Variant.
type Decl interface {
	apply(d *declaration)
}

type optionDecl func(d *declaration)

func (f optionDecl) apply(d *declaration) { f(d) }

// Unboxed represents a type with exactly one field by that field's value.
func Unboxed() Decl {
	return optionDecl(func(d *declaration) { d.unboxed = true })
}

// FloatArray stores a type whose fields are all floats as a flat
// DoubleArray block.
func FloatArray() Decl {
	return optionDecl(func(d *declaration) { d.floatArray = true })
}

type caseDecl struct {
	t reflect.Type
}

func (c caseDecl) apply(d *declaration) { d.cases = append(d.cases, c.t) }

// Case declares C, a struct type or pointer to one, as the next
// constructor of a variant.
func Case[C any]() Decl {
	return caseDecl{t: reflect.TypeFor[C]()}
}

// Record declares the struct T as a record on the default compiler and
// returns its codec.
func Record[T any](opts ...Decl) (conv.Codec[T], error) {
	if err := std.Declare(reflect.TypeFor[T](), opts...); err != nil {
		return nil, err
	}
	return codecFrom[T](std)
}

// MustRecord is Record panicking on a declaration error.
func MustRecord[T any](opts ...Decl) conv.Codec[T] {
	c, err := Record[T](opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Variant declares the interface T as a sum type with the given cases on
// the default compiler and returns its codec.
func Variant[T any](decls ...Decl) (conv.Codec[T], error) {
	if err := std.Declare(reflect.TypeFor[T](), decls...); err != nil {
		return nil, err
	}
	return codecFrom[T](std)
}

// MustVariant is Variant panicking on a declaration error.
func MustVariant[T any](decls ...Decl) conv.Codec[T] {
	c, err := Variant[T](decls...)
	if err != nil {
		panic(err)
	}
	return c
}

// Declare registers the representation of t, a struct or interface type.
// Repeating an identical declaration is allowed.
func (c *Compiler) Declare(t reflect.Type, decls ...Decl) error {
	d := &declaration{}
	for _, x := range decls {
		x.apply(d)
	}
	if err := checkDeclaration(t, d); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.decls[t]; ok {
		if prev.equal(d) {
			return nil
		}
		return declError(t, "declared twice with different options")
	}
	if _, used := c.cache.Load(cacheKey{goType: t}); used && (d.unboxed || d.floatArray) {
		return declError(t, "declared after its first use")
	}
	c.decls[t] = d
	return nil
}

func (c *Compiler) declaration(t reflect.Type) *declaration {
	if d, ok := c.decls[t]; ok {
		return d
	}
	return &declaration{}
}

func declError(t reflect.Type, detail string) error {
	return errors.Declaration(errors.PhaseDerive, t.String(), detail)
}

func checkDeclaration(t reflect.Type, d *declaration) error {
	if t == nil {
		return errors.Declaration(errors.PhaseDerive, "<nil>", "type cannot be nil")
	}
	if d.unboxed && d.floatArray {
		return declError(t, "unboxed and float_array cannot be combined")
	}

	switch t.Kind() {
	case reflect.Struct:
		if len(d.cases) > 0 {
			return declError(t, "a record has no cases")
		}
		fields, err := recordFields(t)
		if err != nil {
			return err
		}
		return checkShape(t, d, fields)

	case reflect.Interface:
		if len(d.cases) == 0 {
			return declError(t, "a variant needs at least one case")
		}
		if (d.unboxed || d.floatArray) && len(d.cases) > 1 {
			return declError(t, "unboxed and float_array variants take exactly one case, got "+strconv.Itoa(len(d.cases)))
		}
		seen := make(map[reflect.Type]bool, len(d.cases))
		blocks := 0
		for _, ct := range d.cases {
			st := ct
			if st.Kind() == reflect.Pointer {
				st = st.Elem()
			}
			if st.Kind() != reflect.Struct {
				return declError(t, "case "+ct.String()+" is not a struct")
			}
			if !ct.Implements(t) {
				return declError(t, "case "+ct.String()+" does not implement "+t.String())
			}
			if seen[ct] {
				return declError(t, "case "+ct.String()+" declared twice")
			}
			seen[ct] = true
			fields, err := recordFields(st)
			if err != nil {
				return err
			}
			if len(fields) > 0 {
				blocks++
			}
			if err := checkShape(ct, d, fields); err != nil {
				return err
			}
		}
		if blocks > maxBlockCases {
			return declError(t, "more than "+strconv.Itoa(maxBlockCases)+" cases with fields")
		}
		return nil
	}
	return declError(t, "only structs and interfaces can be declared")
}

// checkShape applies the unboxed and float_array field rules.
func checkShape(t reflect.Type, d *declaration, fields []field) error {
	if d.unboxed && len(fields) != 1 {
		return declError(t, "unboxed needs exactly one field, got "+strconv.Itoa(len(fields)))
	}
	if d.floatArray {
		if len(fields) == 0 {
			return declError(t, "float_array needs at least one field")
		}
		for _, f := range fields {
			if !isFloatKind(f.typ) {
				return declError(t, "float_array field "+f.goName+" is "+f.typ.String()+", not a float")
			}
		}
	}
	return nil
}

// field is one encoded struct field.
type field struct {
	index  int
	goName string
	name   string
	typ    reflect.Type
	hint   hint
}

// recordFields lists the exported fields of st in declaration order,
// skipping those tagged `ml:"-"`.
func recordFields(st reflect.Type) ([]field, error) {
	var out []field
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("ml")
		if tag == "-" {
			continue
		}
		f := field{index: i, goName: sf.Name, name: SnakeCase(sf.Name), typ: sf.Type}
		for _, opt := range strings.Split(tag, ",") {
			switch opt {
			case "":
			case "array":
				f.hint = hintArray
			case "float":
				f.hint = hintFloat
			default:
				return nil, declError(st, "field "+sf.Name+": unknown ml tag option "+strconv.Quote(opt))
			}
		}
		out = append(out, f)
	}
	return out, nil
}
