package derive_test

import (
	"context"
	"testing"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
)

func newRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	rt, err := runtime.NewWithConfig(context.Background(), &runtime.Config{
		Memory:     runtime.MemorySlice,
		MinorWords: 1024,
		MajorWords: 64 << 10,
		Poison:     true,
	})
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func isKind(err error, phase errors.Phase, kind errors.Kind) bool {
	return errors.Is(err, errors.New(phase, kind).Build())
}
