package ffi

import (
	"fmt"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// raised is the panic payload carrying a managed exception through Go
// frames up to the nearest boundary.
type raised struct {
	exn value.Value
}

// Raise raises exn as a managed exception. It does not return; the value
// unwinds the Go stack as a panic and is turned into an exception result by
// Guard or by runtime.Apply. exn must be a block: an immediate has no
// exception-result encoding.
func Raise(exn value.Value) {
	if !exn.IsBlock() {
		panic(errors.InvalidInput(errors.PhaseRuntime, "raised exception must be a block, got an immediate"))
	}
	panic(raised{exn: exn})
}

// AsRaised reports whether a recovered panic value carries a managed
// exception and returns it.
func AsRaised(r any) (value.Value, bool) {
	if e, ok := r.(raised); ok {
		return e.exn, true
	}
	return 0, false
}

// MakeException builds the exception value for the predefined constructor
// name applied to args. A constructor without arguments is its own
// exception value.
func MakeException(rt Runtime, name string, args ...value.Value) value.Value {
	ctor, ok := rt.ExceptionConstructor(name)
	if !ok {
		panic(errors.NotFound(errors.PhaseRuntime, "exception constructor", name))
	}
	if len(args) == 0 {
		return ctor
	}
	return AllocBlock(rt, 0, append([]value.Value{ctor}, args...)...)
}

// FailureValue builds Failure msg without raising it.
func FailureValue(rt Runtime, msg string) value.Value {
	var s value.Value
	defer roots.Enter(rt.LocalRoots(), &s).Leave()
	s = AllocString(rt, msg)
	return MakeException(rt, "Failure", s)
}

// Failwith raises Failure msg.
func Failwith(rt Runtime, msg string) {
	Raise(FailureValue(rt, msg))
}

// Failwithf raises Failure with a formatted message.
func Failwithf(rt Runtime, format string, args ...any) {
	Failwith(rt, fmt.Sprintf(format, args...))
}

// InvalidArgument raises Invalid_argument msg.
func InvalidArgument(rt Runtime, msg string) {
	var s value.Value
	defer roots.Enter(rt.LocalRoots(), &s).Leave()
	s = AllocString(rt, msg)
	Raise(MakeException(rt, "Invalid_argument", s))
}

// RaiseNotFound raises Not_found.
func RaiseNotFound(rt Runtime) {
	Raise(MakeException(rt, "Not_found"))
}

// RaiseError raises err on the managed side. An *Exception re-raises the
// value it carries and is released; any other error becomes Failure
// err.Error().
func RaiseError(rt Runtime, err error) {
	Raise(ErrorValue(rt, err))
}

// ErrorValue converts err into an exception value without raising it. An
// *Exception found in err is released: its value is handed over, and its
// Name and Message stay readable.
func ErrorValue(rt Runtime, err error) value.Value {
	var exn *Exception
	if errors.As(err, &exn) && !exn.root.Released() {
		v := exn.root.Get()
		exn.root.Release()
		return v
	}
	return FailureValue(rt, err.Error())
}

// Constructor returns the constructor block of an exception value.
func Constructor(rt Runtime, exn value.Value) value.Value {
	h := rt.Heap()
	if exn.IsBlock() && h.Tag(exn) == 0 && h.Size(exn) > 0 {
		if f := h.Field(exn, 0); f.IsBlock() && h.Tag(f) == value.ObjectTag {
			return f
		}
	}
	return exn
}

// ExceptionName returns the constructor name of an exception value, "" when
// exn is not shaped like an exception.
func ExceptionName(rt Runtime, exn value.Value) string {
	ctor := Constructor(rt, exn)
	h := rt.Heap()
	if ctor.IsInt() || h.Tag(ctor) != value.ObjectTag || h.Size(ctor) == 0 {
		return ""
	}
	name := h.Field(ctor, 0)
	if name.IsInt() || h.Tag(name) != value.StringTag {
		return ""
	}
	return h.String(name)
}

// ExceptionMessage returns the first argument of exn when it is a string.
func ExceptionMessage(rt Runtime, exn value.Value) string {
	if Constructor(rt, exn) == exn {
		return ""
	}
	h := rt.Heap()
	if h.Size(exn) < 2 {
		return ""
	}
	arg := h.Field(exn, 1)
	if arg.IsInt() || h.Tag(arg) != value.StringTag {
		return ""
	}
	return h.String(arg)
}

// Exception is a managed exception caught by native code. It keeps the
// exception value alive through a global root until Release.
type Exception struct {
	root    *roots.Global
	name    string
	message string
}

// NewException roots exn and captures its name and message.
func NewException(rt Runtime, exn value.Value) *Exception {
	return &Exception{
		root:    rt.GlobalRoots().Register(exn),
		name:    ExceptionName(rt, exn),
		message: ExceptionMessage(rt, exn),
	}
}

// Error implements the error interface.
func (e *Exception) Error() string {
	if e.message != "" {
		return fmt.Sprintf("managed exception %s: %s", e.name, e.message)
	}
	return "managed exception " + e.name
}

// Is matches foreign-exception errors built by errors.New.
func (e *Exception) Is(target error) bool {
	t, ok := target.(*errors.Error)
	return ok && t.Phase == errors.PhaseCall && t.Kind == errors.KindForeignException
}

// Name is the exception constructor name.
func (e *Exception) Name() string { return e.name }

// Message is the string argument of the exception, if any.
func (e *Exception) Message() string { return e.message }

// Value returns the exception value. Panics after Release.
func (e *Exception) Value() value.Value { return e.root.Get() }

// Reraise raises the captured exception again on the managed side.
func (e *Exception) Reraise() {
	exn := e.root.Get()
	e.root.Release()
	Raise(exn)
}

// Release drops the global root. The Exception keeps its name and message.
func (e *Exception) Release() {
	if !e.root.Released() {
		e.root.Release()
	}
}
