package derive

import (
	"reflect"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/value"
)

// variantCase is one constructor. tag is the immediate for constant cases
// and the block tag otherwise.
type variantCase struct {
	typ      reflect.Type // declared case type, a struct or pointer to one
	ptr      bool
	name     string
	constant bool
	tag      int
	shape    *shape
}

// newValue returns a settable case value and the struct inside it.
func (vc *variantCase) newValue() (caseValue, structValue reflect.Value) {
	if vc.ptr {
		p := reflect.New(vc.shape.goType)
		return p, p.Elem()
	}
	s := reflect.New(vc.shape.goType).Elem()
	return s, s
}

// fillVariant compiles a declared sum interface. Constant cases and cases
// with fields are numbered by separate counters.
func (c *Compiler) fillVariant(p *plan, t reflect.Type) error {
	d, ok := c.decls[t]
	if !ok {
		return declError(t, "interface is not declared as a variant")
	}

	var consts, blocks []*variantCase
	byType := make(map[reflect.Type]*variantCase, len(d.cases))
	for _, ct := range d.cases {
		st := ct
		if ct.Kind() == reflect.Pointer {
			st = ct.Elem()
		}
		s, err := c.compileShape(st, d)
		if err != nil {
			return err
		}
		vc := &variantCase{typ: ct, ptr: ct != st, name: st.Name(), shape: s}
		if len(s.fields) == 0 {
			vc.constant = true
			vc.tag = len(consts)
			consts = append(consts, vc)
		} else {
			vc.tag = len(blocks)
			blocks = append(blocks, vc)
		}
		byType[ct] = vc
	}
	direct := d.unboxed || d.floatArray

	p.enc = func(rt ffi.Runtime, x reflect.Value) value.Value {
		if x.Kind() == reflect.Interface {
			if x.IsNil() {
				panic(errors.InvalidInput(errors.PhaseEncode, "nil "+t.String()))
			}
			x = x.Elem()
		}
		vc, ok := byType[x.Type()]
		if !ok {
			panic(errors.InvalidInput(errors.PhaseEncode, x.Type().String()+" is not a declared case of "+t.String()))
		}
		if vc.ptr {
			if x.IsNil() {
				panic(errors.InvalidInput(errors.PhaseEncode, "nil "+x.Type().String()))
			}
			x = x.Elem()
		}
		if vc.constant {
			return value.OfInt(int64(vc.tag))
		}
		return vc.shape.encode(rt, uint8(vc.tag), x)
	}

	p.dec = func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error {
		var vc *variantCase
		switch {
		case direct:
			vc = blocks[0]
		case v.IsInt():
			n := v.Int()
			if n < 0 || n >= int64(len(consts)) {
				return errors.InvalidDiscriminant(errors.PhaseDecode, path, int(n), true, len(consts)-1)
			}
			cv, _ := consts[n].newValue()
			out.Set(cv)
			return nil
		default:
			tag := int(rt.Heap().Tag(v))
			if tag >= len(blocks) {
				return errors.InvalidDiscriminant(errors.PhaseDecode, path, tag, false, len(blocks)-1)
			}
			vc = blocks[tag]
		}

		cv, sv := vc.newValue()
		if err := vc.shape.decode(rt, v, uint8(vc.tag), errors.PathWith(path, vc.name), p.mlType, sv); err != nil {
			return err
		}
		out.Set(cv)
		return nil
	}
	return nil
}
