package runtime

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/roots"
)

// Lock takes the domain lock for a goroutine entering the runtime with no
// local roots of its own.
func (r *Runtime) Lock() {
	r.lock.Lock()
	r.locked.Store(true)
}

// Unlock gives the domain lock up. Every local root frame must have been
// left.
func (r *Runtime) Unlock() {
	r.assertLocked("Unlock")
	if d := r.chain.Depth(); d != 0 {
		panic(errors.RootCorruption("unlock with live local root frames"))
	}
	r.locked.Store(false)
	r.lock.Unlock()
}

// Locked reports whether some goroutine holds the domain lock.
func (r *Runtime) Locked() bool {
	return r.locked.Load()
}

// ReleaseLock parks the current local roots and gives the lock up. The
// parked roots stay visible to the collector until AcquireLock.
func (r *Runtime) ReleaseLock() *roots.Snapshot {
	r.assertLocked("ReleaseLock")
	s := r.chain.Save()
	parked := &s
	r.parked[parked] = struct{}{}
	r.locked.Store(false)
	r.lock.Unlock()
	return parked
}

// AcquireLock takes the lock back and restores roots parked by ReleaseLock.
// Blocks while another goroutine holds the lock.
func (r *Runtime) AcquireLock(parked *roots.Snapshot) {
	r.lock.Lock()
	r.locked.Store(true)
	if _, ok := r.parked[parked]; !ok {
		panic(errors.RootCorruption("acquiring with roots that were not parked"))
	}
	delete(r.parked, parked)
	r.chain.Restore(*parked)
}

// Do runs fn holding the domain lock.
func (r *Runtime) Do(fn func(rt *Runtime) error) error {
	r.Lock()
	defer r.Unlock()
	return fn(r)
}

func (r *Runtime) assertLocked(op string) {
	if !r.locked.Load() {
		panic(errors.LockNotHeld(op))
	}
}
