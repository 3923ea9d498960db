package runtime

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// Predefined exception constructors, created when the runtime starts.
var predefinedExceptions = []string{
	"Out_of_memory",
	"Failure",
	"Invalid_argument",
	"Not_found",
	"Division_by_zero",
	"End_of_file",
	"Sys_error",
	"Exit",
}

func (r *Runtime) initExceptions() error {
	for _, name := range predefinedExceptions {
		if _, err := r.DefineException(name); err != nil {
			return err
		}
	}
	return nil
}

// DefineException creates a new exception constructor: an object block
// holding the name and a fresh identifier.
func (r *Runtime) DefineException(name string) (value.Value, error) {
	r.assertLocked("DefineException")
	if name == "" {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "exception name cannot be empty")
	}
	if _, ok := r.exnCtors[name]; ok {
		return 0, errors.Registration(errors.PhaseRuntime, "exception", name,
			errors.InvalidInput(errors.PhaseRuntime, "already defined"))
	}

	var s value.Value
	defer roots.Enter(r.chain, &s).Leave()
	s = ffi.AllocString(r, name)
	r.nextExnID++
	ctor := ffi.AllocBlock(r, value.ObjectTag, s, value.OfInt(r.nextExnID))

	r.exnCtors[name] = r.globals.Register(ctor)
	return ctor, nil
}

// ExceptionConstructor returns the constructor registered under name.
func (r *Runtime) ExceptionConstructor(name string) (value.Value, bool) {
	g, ok := r.exnCtors[name]
	if !ok {
		return 0, false
	}
	return g.Get(), true
}

// Raise raises exn on the managed side.
func (r *Runtime) Raise(exn value.Value) {
	ffi.Raise(exn)
}
