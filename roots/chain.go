package roots

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

// FrameSlots is the number of slots in one frame.
const FrameSlots = 5

// Frame is one node of a local root chain.
type Frame struct {
	prev  *Frame
	slots [FrameSlots]*value.Value
	n     int
}

// Chain is the current-frame pointer of one execution context.
type Chain struct {
	head  *Frame
	depth int
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Head returns the current top frame, nil when no frame is registered.
func (c *Chain) Head() *Frame {
	return c.head
}

// Depth returns the number of frames on the chain.
func (c *Chain) Depth() int {
	return c.depth
}

// Each calls fn for every registered slot, top frame first.
func (c *Chain) Each(fn func(slot *value.Value)) {
	for f := c.head; f != nil; f = f.prev {
		for i := 0; i < f.n; i++ {
			if f.slots[i] != nil {
				fn(f.slots[i])
			}
		}
	}
}

func (c *Chain) push() *Frame {
	f := &Frame{prev: c.head}
	c.head = f
	c.depth++
	return f
}

// Local is one scoped acquisition of roots. It remembers the head it
// replaced and the topmost frame it pushed.
type Local struct {
	chain *Chain
	saved *Frame
	top   *Frame
	count int
}

// Enter pushes a frame registering slots and returns the acquisition that
// must be left before the calling function returns. More than FrameSlots
// slots spill into additional frames.
func Enter(c *Chain, slots ...*value.Value) *Local {
	l := &Local{chain: c, saved: c.head}
	l.top = c.push()
	l.count = 1
	l.Add(slots...)
	return l
}

// Add registers more slots on this acquisition. The acquisition must still
// own the head of the chain.
func (l *Local) Add(slots ...*value.Value) {
	l.checkHead("add to")
	for _, s := range slots {
		if l.top.n == FrameSlots {
			l.top = l.chain.push()
			l.count++
		}
		l.top.slots[l.top.n] = s
		l.top.n++
	}
}

// Len returns the number of slots registered by this acquisition.
func (l *Local) Len() int {
	n := 0
	f := l.top
	for i := 0; i < l.count && f != nil; i++ {
		n += f.n
		f = f.prev
	}
	return n
}

// Leave pops every frame this acquisition pushed and restores the head it
// replaced.
func (l *Local) Leave() {
	if l.top == nil {
		panic(errors.RootCorruption("root frame left twice"))
	}
	l.checkHead("leave")
	l.chain.head = l.saved
	l.chain.depth -= l.count
	l.top = nil
}

func (l *Local) checkHead(op string) {
	if l.top == nil {
		panic(errors.RootCorruption("cannot " + op + " a released root frame"))
	}
	if l.chain.head != l.top {
		panic(errors.RootCorruption("cannot " + op + " a root frame that is not the head of its chain"))
	}
}

// Do runs fn inside a fresh acquisition and leaves it on every exit path.
func Do(c *Chain, fn func(l *Local) error) error {
	l := Enter(c)
	defer l.Leave()
	return fn(l)
}

// Snapshot is a saved chain head, used when an execution context gives up
// the domain lock and later resumes.
type Snapshot struct {
	head  *Frame
	depth int
}

// Save detaches the current frames from the chain.
func (c *Chain) Save() Snapshot {
	s := Snapshot{head: c.head, depth: c.depth}
	c.head = nil
	c.depth = 0
	return s
}

// Restore reattaches frames saved by Save. The chain must be empty.
func (c *Chain) Restore(s Snapshot) {
	if c.head != nil {
		panic(errors.RootCorruption("restoring roots over a non-empty chain"))
	}
	c.head = s.head
	c.depth = s.depth
}

// Each calls fn for every slot of a saved snapshot.
func (s Snapshot) Each(fn func(slot *value.Value)) {
	c := Chain{head: s.head}
	c.Each(fn)
}
