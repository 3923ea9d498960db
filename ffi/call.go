package ffi

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// Call1 applies closure to one argument.
func Call1(rt Runtime, closure, a value.Value) (value.Value, error) {
	return CallN(rt, closure, a)
}

// Call2 applies closure to two arguments.
func Call2(rt Runtime, closure, a, b value.Value) (value.Value, error) {
	return CallN(rt, closure, a, b)
}

// Call3 applies closure to three arguments.
func Call3(rt Runtime, closure, a, b, c value.Value) (value.Value, error) {
	return CallN(rt, closure, a, b, c)
}

// CallN applies closure to args. A closure that raised yields an
// *Exception error holding the exception until released; applying a value
// that is not a closure yields a not_callable error without calling
// anything.
func CallN(rt Runtime, closure value.Value, args ...value.Value) (value.Value, error) {
	if closure.IsInt() {
		return 0, errors.NotCallable(0, true)
	}
	if tag := rt.Heap().Tag(closure); tag != value.ClosureTag {
		return 0, errors.NotCallable(tag, false)
	}

	res := rt.Apply(closure, args...)
	if res.IsExceptionResult() {
		return 0, NewException(rt, res.Exception())
	}
	return res, nil
}

// Blocking runs fn without the domain lock. The local roots are parked and
// stay visible to the collector while another goroutine holds the lock. fn
// must not touch any Value.
func Blocking(rt Runtime, fn func()) {
	parked := rt.ReleaseLock()
	defer rt.AcquireLock(parked)
	fn()
}

// NamedValue looks up a value the managed side registered under name.
func NamedValue(rt Runtime, name string) (*roots.Global, bool) {
	return rt.NamedValue(name)
}
