package ffi

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

// translator turns a recovered non-managed panic into an exception value.
type translator func(rt Runtime, r any) value.Value

var installed atomic.Pointer[translator]

// Init installs the panic translator Guard uses. Only the first call
// installs it; concurrent and repeated calls return immediately.
func Init() {
	tr := translator(translate)
	if installed.CompareAndSwap(nil, &tr) {
		Logger().Debug("native panic translator installed")
	}
}

// Installed reports whether Init has run.
func Installed() bool {
	return installed.Load() != nil
}

// Guard runs body as the outermost frame of a primitive. A raised managed
// exception becomes an exception result; any other panic is logged and
// handed to the installed translator, which builds Failure with the panic
// message. Root corruption and lock misuse are not translated.
func Guard(rt Runtime, name string, body func() value.Value) (result value.Value) {
	Init()
	tr := *installed.Load()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if exn, ok := AsRaised(r); ok {
			result = value.ExceptionResult(exn)
			return
		}
		if fatal(r) {
			panic(r)
		}
		Logger().Warn("native panic translated to Failure",
			zap.String("primitive", name),
			zap.Any("panic", r))
		result = value.ExceptionResult(tr(rt, r))
	}()
	return body()
}

func fatal(r any) bool {
	err, ok := r.(*errors.Error)
	return ok && (err.Kind == errors.KindRootCorruption || err.Kind == errors.KindLock)
}

// translate builds Failure msg for a recovered panic. When building it
// raises (heap exhausted), that exception is returned instead.
func translate(rt Runtime, r any) (exn value.Value) {
	defer func() {
		if r2 := recover(); r2 != nil {
			if raisedExn, ok := AsRaised(r2); ok {
				exn = raisedExn
				return
			}
			panic(r2)
		}
	}()
	return FailureValue(rt, PanicMessage(r))
}

// PanicMessage renders a recovered panic value as a Failure message.
func PanicMessage(r any) string {
	switch p := r.(type) {
	case string:
		return p
	case error:
		return p.Error()
	case fmt.Stringer:
		return p.String()
	default:
		return fmt.Sprint(p)
	}
}
