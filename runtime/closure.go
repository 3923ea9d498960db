package runtime

import (
	"fmt"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// ManagedFunc is the body of a managed-side function. self and every entry
// of args are registered root slots: read them again after allocating. A
// managed exception is raised with ffi.Raise.
type ManagedFunc func(rt *Runtime, self *value.Value, args []value.Value) value.Value

// code is one entry of the code table a closure's field 0 indexes.
type code struct {
	prim *ffi.Primitive
	fn   ManagedFunc
	name string
}

// Function is a defined code pointer closures can be built from.
type Function struct {
	Name  string
	Arity int
	index int
}

func (r *Runtime) defineCode(c *code) int {
	r.codes = append(r.codes, c)
	return len(r.codes) - 1
}

// Define adds a managed function of the given arity to the code table.
func (r *Runtime) Define(name string, arity int, fn ManagedFunc) *Function {
	idx := r.defineCode(&code{name: name, fn: fn})
	return &Function{Name: name, Arity: arity, index: idx}
}

// Closure allocates a closure for f capturing env.
func (r *Runtime) Closure(f *Function, env ...value.Value) value.Value {
	return r.closure(f.index, f.Arity, env...)
}

// Func defines fn and returns a closure for it with no environment.
func (r *Runtime) Func(name string, arity int, fn ManagedFunc) value.Value {
	return r.Closure(r.Define(name, arity, fn))
}

func (r *Runtime) closure(codeIndex, arity int, env ...value.Value) value.Value {
	fields := make([]value.Value, 0, 2+len(env))
	fields = append(fields, value.OfInt(int64(codeIndex)), value.OfInt(int64(arity)))
	fields = append(fields, env...)
	return ffi.AllocBlock(r, value.ClosureTag, fields...)
}

// ClosureName returns the code name of a closure, "" for other values.
func (r *Runtime) ClosureName(v value.Value) string {
	if v.IsInt() || r.view.Tag(v) != value.ClosureTag {
		return ""
	}
	idx := int(r.view.Field(v, 0).Int())
	if idx < 0 || idx >= len(r.codes) {
		return ""
	}
	return r.codes[idx].name
}

// Arity returns the number of arguments a closure still expects.
func (r *Runtime) Arity(v value.Value) int {
	return int(r.view.Field(v, 1).Int())
}

// Apply applies closure to args. Fewer arguments than the closure's arity
// yield a partial application; more apply the result to the rest. A raised
// exception comes back exception-encoded.
func (r *Runtime) Apply(closure value.Value, args ...value.Value) (result value.Value) {
	r.assertLocked("Apply")
	args = append([]value.Value(nil), args...)

	l := roots.Enter(r.chain, &closure)
	for i := range args {
		l.Add(&args[i])
	}
	defer l.Leave()

	defer func() {
		if rec := recover(); rec != nil {
			exn, ok := ffi.AsRaised(rec)
			if !ok {
				panic(rec)
			}
			result = value.ExceptionResult(exn)
		}
	}()
	return r.apply(&closure, args)
}

// apply runs with closure and args already rooted. Exceptions propagate as
// panics.
func (r *Runtime) apply(closure *value.Value, args []value.Value) value.Value {
	for {
		if closure.IsInt() || r.view.Tag(*closure) != value.ClosureTag {
			ffi.InvalidArgument(r, "apply: value is not a function")
		}
		arity := r.Arity(*closure)
		switch {
		case len(args) < arity:
			return r.partial(*closure, args)
		case len(args) == arity:
			return r.enter(closure, args)
		default:
			*closure = r.enter(closure, args[:arity])
			args = args[arity:]
		}
	}
}

func (r *Runtime) enter(closure *value.Value, args []value.Value) value.Value {
	idx := int(r.view.Field(*closure, 0).Int())
	if idx < 0 || idx >= len(r.codes) {
		panic(errors.InvalidData(errors.PhaseRuntime, nil, fmt.Sprintf("closure code index %d", idx)))
	}
	c := r.codes[idx]
	if c.prim == nil {
		return c.fn(r, closure, args)
	}

	r.stats.PrimitiveCalls++
	res := c.prim.Invoke(r, args)
	if res.IsExceptionResult() {
		ffi.Raise(res.Exception())
	}
	return res
}

// partial builds [caml_curry, remaining arity, closure, args...].
func (r *Runtime) partial(closure value.Value, args []value.Value) value.Value {
	remaining := r.Arity(closure) - len(args)
	env := make([]value.Value, 0, 1+len(args))
	env = append(env, closure)
	env = append(env, args...)
	return r.closure(r.partialCode, remaining, env...)
}

func partialApply(rt *Runtime, self *value.Value, args []value.Value) value.Value {
	h := rt.view
	n := h.Size(*self)
	all := make([]value.Value, 0, n-3+len(args))
	for i := 3; i < n; i++ {
		all = append(all, h.Field(*self, i))
	}
	all = append(all, args...)
	target := h.Field(*self, 2)

	l := roots.Enter(rt.chain, &target)
	for i := range all {
		l.Add(&all[i])
	}
	defer l.Leave()
	return rt.apply(&target, all)
}
