package derive

import (
	"reflect"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// fieldPlan is a struct field with its compiled plan.
type fieldPlan struct {
	field
	plan *plan
}

// shape is the compiled layout of a record or of one variant case.
type shape struct {
	goType     reflect.Type
	fields     []fieldPlan
	unboxed    bool
	floatArray bool
}

func (c *Compiler) compileShape(st reflect.Type, d *declaration) (*shape, error) {
	fields, err := recordFields(st)
	if err != nil {
		return nil, err
	}
	s := &shape{goType: st, fields: make([]fieldPlan, len(fields)), unboxed: d.unboxed, floatArray: d.floatArray}
	for i, f := range fields {
		if s.floatArray {
			s.fields[i] = fieldPlan{field: f}
			continue
		}
		fp, err := c.compile(f.typ, f.hint)
		if err != nil {
			return nil, err
		}
		s.fields[i] = fieldPlan{field: f, plan: fp}
	}
	return s, nil
}

// encode allocates x, a struct of the shape's type. tag applies to the
// boxed layout only.
func (s *shape) encode(rt ffi.Runtime, tag uint8, x reflect.Value) value.Value {
	switch {
	case s.unboxed:
		f := s.fields[0]
		return f.plan.enc(rt, x.Field(f.index))
	case s.floatArray:
		fs := make([]float64, len(s.fields))
		for i, f := range s.fields {
			fs[i] = x.Field(f.index).Float()
		}
		return ffi.AllocFloatArray(rt, fs)
	}

	buf := getFields(len(s.fields))
	defer putFields(buf)
	vals := *buf
	l := roots.Enter(rt.LocalRoots())
	defer l.Leave()
	for i := range vals {
		l.Add(&vals[i])
	}
	for i, f := range s.fields {
		vals[i] = f.plan.enc(rt, x.Field(f.index))
	}
	return ffi.AllocBlock(rt, tag, vals...)
}

// decode reads v into out, a settable struct of the shape's type. Skipped
// fields are left at their zero value.
func (s *shape) decode(rt ffi.Runtime, v value.Value, tag uint8, path []string, mlType string, out reflect.Value) error {
	out.Set(reflect.Zero(s.goType))
	h := rt.Heap()

	switch {
	case s.unboxed:
		f := s.fields[0]
		return f.plan.dec(rt, v, errors.PathWith(path, f.name), out.Field(f.index))
	case s.floatArray:
		if !isBlock(rt, v, value.DoubleArrayTag) {
			return mismatch(rt, v, path, mlType)
		}
		if h.Size(v) != len(s.fields) {
			return errors.SizeMismatch(errors.PhaseDecode, path, len(s.fields), h.Size(v))
		}
		for i, f := range s.fields {
			out.Field(f.index).SetFloat(h.DoubleField(v, i))
		}
		return nil
	}

	if !isBlock(rt, v, tag) {
		return mismatch(rt, v, path, mlType)
	}
	if h.Size(v) != len(s.fields) {
		return errors.SizeMismatch(errors.PhaseDecode, path, len(s.fields), h.Size(v))
	}
	for i, f := range s.fields {
		if err := f.plan.dec(rt, h.Field(v, i), errors.PathWith(path, f.name), out.Field(f.index)); err != nil {
			return err
		}
	}
	return nil
}

// fillRecord compiles a struct. A struct without encoded fields is unit.
func (c *Compiler) fillRecord(p *plan, t reflect.Type) error {
	s, err := c.compileShape(t, c.declaration(t))
	if err != nil {
		return err
	}

	if len(s.fields) == 0 {
		p.enc = func(ffi.Runtime, reflect.Value) value.Value { return value.Unit }
		p.dec = func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error {
			if v != value.Unit {
				return mismatch(rt, v, path, p.mlType)
			}
			out.Set(reflect.Zero(t))
			return nil
		}
		return nil
	}

	p.enc = func(rt ffi.Runtime, x reflect.Value) value.Value {
		return s.encode(rt, 0, x)
	}
	p.dec = func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error {
		return s.decode(rt, v, 0, path, p.mlType, out)
	}
	return nil
}
