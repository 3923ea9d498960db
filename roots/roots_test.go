package roots

import (
	"errors"
	"sync"
	"testing"

	mlerrors "github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

var errEarly = errors.New("early exit")

func expectCorruption(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, &mlerrors.Error{Phase: mlerrors.PhaseRuntime, Kind: mlerrors.KindRootCorruption}) {
			t.Fatalf("expected root corruption panic, got %v", r)
		}
	}()
	fn()
}

func collect(c *Chain) []value.Value {
	var out []value.Value
	c.Each(func(slot *value.Value) { out = append(out, *slot) })
	return out
}

func TestEnterLeave(t *testing.T) {
	c := NewChain()
	a, b := value.OfInt(1), value.OfInt(2)

	l := Enter(c, &a, &b)
	if c.Depth() != 1 || l.Len() != 2 {
		t.Fatalf("Depth=%d Len=%d", c.Depth(), l.Len())
	}
	got := collect(c)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("slots = %v", got)
	}
	l.Leave()
	if c.Head() != nil || c.Depth() != 0 {
		t.Fatal("chain not restored")
	}
}

func TestSlotsAreWrittenThrough(t *testing.T) {
	c := NewChain()
	x := value.OfPointer(64)
	defer Enter(c, &x).Leave()

	c.Each(func(slot *value.Value) { *slot = value.OfPointer(128) })
	if x != value.OfPointer(128) {
		t.Fatalf("relocation not visible in the rooted variable: %#x", uint64(x))
	}
}

func TestSpillBeyondFrameSlots(t *testing.T) {
	c := NewChain()
	vals := make([]value.Value, 12)
	slots := make([]*value.Value, len(vals))
	for i := range vals {
		vals[i] = value.OfInt(int64(i))
		slots[i] = &vals[i]
	}

	l := Enter(c, slots...)
	if c.Depth() != 3 {
		t.Errorf("Depth = %d, want 3 frames for 12 slots", c.Depth())
	}
	if l.Len() != 12 || len(collect(c)) != 12 {
		t.Errorf("Len = %d, scanned = %d", l.Len(), len(collect(c)))
	}
	extra := value.OfInt(99)
	l.Add(&extra)
	if len(collect(c)) != 13 {
		t.Error("Add did not register")
	}
	l.Leave()
	if c.Depth() != 0 || c.Head() != nil {
		t.Fatalf("Depth = %d after leave", c.Depth())
	}
}

func nested(c *Chain, depth int, failAt int) (err error) {
	if depth == 0 {
		return nil
	}
	v := value.OfInt(int64(depth))
	defer Enter(c, &v).Leave()
	if depth == failAt {
		return errEarly
	}
	if depth == -failAt {
		panic("boom")
	}
	return nested(c, depth-1, failAt)
}

func TestNestedAcquisitionsRestoreHead(t *testing.T) {
	tests := []struct {
		name   string
		failAt int
	}{
		{"all normal", 0},
		{"early error", 3},
		{"panic deep inside", -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChain()
			outer := value.OfInt(0)
			base := Enter(c, &outer)
			head := c.Head()

			func() {
				defer func() { _ = recover() }()
				_ = nested(c, 8, tt.failAt)
			}()

			if c.Head() != head || c.Depth() != 1 {
				t.Fatalf("head not restored: depth=%d", c.Depth())
			}
			base.Leave()
			if c.Head() != nil {
				t.Fatal("base not restored")
			}
		})
	}
}

func TestDoRestoresOnError(t *testing.T) {
	c := NewChain()
	err := Do(c, func(l *Local) error {
		v := value.OfInt(1)
		l.Add(&v)
		return errEarly
	})
	if !errors.Is(err, errEarly) {
		t.Fatalf("err = %v", err)
	}
	if c.Depth() != 0 {
		t.Fatal("Do leaked a frame")
	}
}

func TestUnbalancedLeavePanics(t *testing.T) {
	c := NewChain()
	outer := Enter(c)
	inner := Enter(c)
	expectCorruption(t, outer.Leave)
	inner.Leave()
	outer.Leave()
	expectCorruption(t, outer.Leave)
}

func TestSnapshot(t *testing.T) {
	c := NewChain()
	v := value.OfInt(5)
	l := Enter(c, &v)

	s := c.Save()
	if c.Head() != nil {
		t.Fatal("Save must detach frames")
	}
	var seen int
	s.Each(func(*value.Value) { seen++ })
	if seen != 1 {
		t.Fatalf("snapshot slots = %d", seen)
	}

	c.Restore(s)
	l.Leave()
	if c.Depth() != 0 {
		t.Fatal("restore")
	}

	other := Enter(c)
	expectCorruption(t, func() { c.Restore(s) })
	other.Leave()
}

func TestGlobals(t *testing.T) {
	g := NewGlobals()
	h := g.Register(value.OfInt(1))
	if g.Len() != 1 || h.Get() != value.OfInt(1) {
		t.Fatal("register")
	}

	g.Each(func(slot *value.Value) { *slot = value.OfInt(2) })
	if h.Get() != value.OfInt(2) {
		t.Fatal("relocation not visible through handle")
	}

	h.Set(value.OfInt(3))
	h.Release()
	if g.Len() != 0 || !h.Released() {
		t.Fatal("release")
	}
	expectCorruption(t, h.Release)
	expectCorruption(t, func() { h.Get() })
}

func TestGenerationalGlobals(t *testing.T) {
	g := NewGlobals()
	plain := g.Register(value.OfInt(1))
	gen := g.RegisterGenerational(value.OfInt(2))
	defer plain.Release()
	defer gen.Release()

	count := func() int {
		n := 0
		g.EachYoung(func(*value.Value) { n++ })
		return n
	}
	if count() != 2 {
		t.Fatal("fresh generational handle must be scanned")
	}
	if count() != 1 {
		t.Fatal("clean generational handle must be skipped")
	}
	gen.Set(value.OfInt(4))
	if count() != 2 {
		t.Fatal("Set must mark the handle for the next minor scan")
	}
}

func TestGlobalsConcurrentRegistration(t *testing.T) {
	g := NewGlobals()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := g.Register(value.OfInt(int64(i)))
			h.Release()
		}(i)
	}
	wg.Wait()
	if g.Len() != 0 {
		t.Fatalf("Len = %d", g.Len())
	}
}
