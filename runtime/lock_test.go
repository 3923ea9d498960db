package runtime

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

func TestLock_HeldAfterNew(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)
	if !rt.Locked() {
		t.Fatal("New should return with the lock held")
	}

	rt.Unlock()
	if rt.Locked() {
		t.Error("lock still reported after Unlock")
	}
	if rec := recoverPanic(func() { rt.Alloc(1, 0) }); !isKind(rec, errors.PhaseRuntime, errors.KindLock) {
		t.Errorf("alloc without the lock: %v", rec)
	}
	if rec := recoverPanic(func() { rt.Apply(value.Unit) }); !isKind(rec, errors.PhaseRuntime, errors.KindLock) {
		t.Errorf("apply without the lock: %v", rec)
	}
	rt.Lock()
}

func TestUnlock_WithLiveFrames(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)

	var v value.Value
	l := roots.Enter(rt.LocalRoots(), &v)
	if rec := recoverPanic(rt.Unlock); !isKind(rec, errors.PhaseRuntime, errors.KindRootCorruption) {
		t.Errorf("unlock with a live frame: %v", rec)
	}
	if !rt.Locked() {
		t.Error("failed unlock released the lock")
	}
	l.Leave()
	rt.Unlock()
	rt.Lock()
}

func TestBlocking_ParksRoots(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)

	var s value.Value
	defer roots.Enter(rt.LocalRoots(), &s).Leave()
	s = ffi.AllocString(rt, "parked")
	before := s

	ffi.Blocking(rt, func() {
		if rt.Locked() {
			t.Error("lock held inside Blocking")
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			rt.Lock()
			defer rt.Unlock()
			if got := rt.Stats().ParkedChains; got != 1 {
				t.Errorf("parked chains = %d", got)
			}
			if got := rt.LocalRoots().Depth(); got != 0 {
				t.Errorf("other goroutine sees %d frames", got)
			}
			ffi.AllocString(rt, "garbage")
			rt.Collect(true)
		}()
		<-done
	})

	if !rt.Locked() {
		t.Fatal("lock not reacquired")
	}
	if s == before {
		t.Error("parked root was not updated by the collection")
	}
	if got := rt.Heap().String(s); got != "parked" {
		t.Errorf("string = %q", got)
	}
	st := rt.Stats()
	if st.ParkedChains != 0 || st.LocalRootDepth != 1 {
		t.Errorf("parked %d depth %d", st.ParkedChains, st.LocalRootDepth)
	}
}

func TestAcquireLock_UnknownSnapshot(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)

	rt.Unlock()
	rec := recoverPanic(func() { rt.AcquireLock(&roots.Snapshot{}) })
	if !isKind(rec, errors.PhaseRuntime, errors.KindRootCorruption) {
		t.Errorf("acquire with a foreign snapshot: %v", rec)
	}
}

func TestDo(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)
	rt.Unlock()

	sentinel := stderrors.New("done")
	err := rt.Do(func(rt *Runtime) error {
		if !rt.Locked() {
			t.Error("Do runs without the lock")
		}
		return sentinel
	})
	if !stderrors.Is(err, sentinel) {
		t.Errorf("Do returned %v", err)
	}
	if rt.Locked() {
		t.Error("Do kept the lock")
	}
	rt.Lock()
}

func TestDo_ConcurrentGoroutines(t *testing.T) {
	rt := newTestRuntime(t, 1024, 64<<10, nil)
	rt.Unlock()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				err := rt.Do(func(rt *Runtime) error {
					var s value.Value
					defer roots.Enter(rt.LocalRoots(), &s).Leave()
					want := fmt.Sprintf("g%d-%d", g, i)
					s = ffi.AllocString(rt, want)
					rt.Alloc(40, 0)
					if i%10 == 0 {
						rt.Collect(false)
					}
					if got := rt.Heap().String(s); got != want {
						return fmt.Errorf("got %q, want %q", got, want)
					}
					return nil
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	rt.Lock()
}
