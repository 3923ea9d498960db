package derive

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/value"
)

// exported is a Go function prepared for calls from managed code.
type exported struct {
	name    string
	fn      reflect.Value
	withRT  bool
	params  []*plan
	result  *plan // nil when the function returns only an error or nothing
	withErr bool
}

// Export wraps fn as a primitive using the default compiler.
//
// fn may take an ffi.Runtime first; its remaining parameters are the
// managed arguments. It returns nothing, one value, an error, or a value
// and an error. A returned error is raised: an *ffi.Exception re-raises
// its managed exception and any other error raises Failure. Arguments
// that do not decode raise Invalid_argument.
func Export(name string, fn any) (*ffi.Primitive, error) {
	return std.Export(name, fn)
}

// MustExport is Export panicking on a declaration error.
func MustExport(name string, fn any) *ffi.Primitive {
	p, err := Export(name, fn)
	if err != nil {
		panic(err)
	}
	return p
}

// Export wraps fn as a primitive, compiling its parameter and result
// types with c.
func (c *Compiler) Export(name string, fn any) (*ffi.Primitive, error) {
	e, err := c.prepare(name, fn)
	if err != nil {
		return nil, err
	}

	arity := len(e.params)
	var native any
	switch arity {
	case 0:
		native = ffi.Fixed0(func(rt ffi.Runtime) value.Value {
			return e.call(rt, nil)
		})
	case 1:
		native = ffi.Fixed1(func(rt ffi.Runtime, a value.Value) value.Value {
			return e.call(rt, []value.Value{a})
		})
	case 2:
		native = ffi.Fixed2(func(rt ffi.Runtime, a, b value.Value) value.Value {
			return e.call(rt, []value.Value{a, b})
		})
	case 3:
		native = ffi.Fixed3(func(rt ffi.Runtime, a, b, c value.Value) value.Value {
			return e.call(rt, []value.Value{a, b, c})
		})
	case 4:
		native = ffi.Fixed4(func(rt ffi.Runtime, a, b, c, d value.Value) value.Value {
			return e.call(rt, []value.Value{a, b, c, d})
		})
	case 5:
		native = ffi.Fixed5(func(rt ffi.Runtime, a, b, c, d, f value.Value) value.Value {
			return e.call(rt, []value.Value{a, b, c, d, f})
		})
	}

	bytecode := func(rt ffi.Runtime, argv []value.Value, argn int) value.Value {
		if argn != arity || len(argv) < argn {
			ffi.InvalidArgument(rt, fmt.Sprintf("%s expects %d arguments, got %d", name, arity, argn))
		}
		return e.call(rt, argv[:argn])
	}
	return ffi.NewPrimitive(name, arity, native, bytecode)
}

func (c *Compiler) prepare(name string, fn any) (*exported, error) {
	if fn == nil {
		return nil, errors.Declaration(errors.PhaseExport, name, "function is nil")
	}
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, errors.Declaration(errors.PhaseExport, ft.String(), name+" is not a function")
	}
	if ft.IsVariadic() {
		return nil, errors.Declaration(errors.PhaseExport, ft.String(), "variadic functions cannot be exported")
	}

	e := &exported{name: name, fn: fv}
	first := 0
	if ft.NumIn() > 0 && ft.In(0) == runtimeType {
		e.withRT = true
		first = 1
	}
	for i := first; i < ft.NumIn(); i++ {
		if ft.In(i) == runtimeType {
			return nil, errors.Declaration(errors.PhaseExport, ft.String(), "ffi.Runtime must be the first parameter")
		}
		p, err := c.plan(ft.In(i), hintNone)
		if err != nil {
			return nil, errors.Declaration(errors.PhaseExport, ft.String(),
				"parameter "+strconv.Itoa(i)+": "+err.Error())
		}
		e.params = append(e.params, p)
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			e.withErr = true
			break
		}
		p, err := c.plan(ft.Out(0), hintNone)
		if err != nil {
			return nil, errors.Declaration(errors.PhaseExport, ft.String(), "result: "+err.Error())
		}
		e.result = p
	case 2:
		if ft.Out(1) != errorType {
			return nil, errors.Declaration(errors.PhaseExport, ft.String(), "second result must be error")
		}
		p, err := c.plan(ft.Out(0), hintNone)
		if err != nil {
			return nil, errors.Declaration(errors.PhaseExport, ft.String(), "result: "+err.Error())
		}
		e.result = p
		e.withErr = true
	default:
		return nil, errors.Declaration(errors.PhaseExport, ft.String(), "at most one result plus an error")
	}
	return e, nil
}

// call decodes args, runs the function and encodes its result. Decoding
// does not allocate, so args need no rooting.
func (e *exported) call(rt ffi.Runtime, args []value.Value) value.Value {
	in := make([]reflect.Value, 0, len(args)+1)
	if e.withRT {
		in = append(in, reflect.ValueOf(&rt).Elem())
	}
	for i, p := range e.params {
		arg := reflect.New(p.goType).Elem()
		if err := p.dec(rt, args[i], []string{e.name, "arg" + strconv.Itoa(i)}, arg); err != nil {
			ffi.InvalidArgument(rt, err.Error())
		}
		in = append(in, arg)
	}

	out := e.fn.Call(in)

	if e.withErr {
		if errv := out[len(out)-1]; !errv.IsNil() {
			ffi.RaiseError(rt, errv.Interface().(error))
		}
	}
	if e.result == nil {
		return value.Unit
	}
	return e.result.enc(rt, out[0])
}
