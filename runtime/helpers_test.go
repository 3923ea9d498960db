package runtime

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
)

func newTestRuntime(t *testing.T, minor, major int, log *zap.Logger) *Runtime {
	t.Helper()
	rt, err := NewWithConfig(context.Background(), &Config{
		Logger:     log,
		Memory:     MemorySlice,
		MinorWords: minor,
		MajorWords: major,
		Poison:     true,
	})
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func observed(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func recoverPanic(fn func()) (rec any) {
	defer func() { rec = recover() }()
	fn()
	return nil
}

func isKind(rec any, phase errors.Phase, kind errors.Kind) bool {
	err, ok := rec.(error)
	return ok && errors.Is(err, errors.New(phase, kind).Build())
}

// raisedName returns the exception name carried by a recovered panic.
func raisedName(t *testing.T, rt *Runtime, rec any) string {
	t.Helper()
	exn, ok := ffi.AsRaised(rec)
	if !ok {
		t.Fatalf("expected a managed exception, got %v", rec)
	}
	return ffi.ExceptionName(rt, exn)
}
