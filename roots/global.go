package roots

import (
	"sync"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

// Global is a long-lived root: a slot outside any frame, registered until
// Release is called.
type Global struct {
	owner        *Globals
	v            value.Value
	generational bool
	dirty        bool
	released     bool
}

// Globals is the registry of live global roots. Registration and release
// are safe from any goroutine; reading or writing a handle's value still
// requires the domain lock.
type Globals struct {
	entries map[*Global]struct{}
	mu      sync.Mutex
}

// NewGlobals returns an empty registry.
func NewGlobals() *Globals {
	return &Globals{entries: make(map[*Global]struct{})}
}

// Register roots v until the returned handle is released.
func (g *Globals) Register(v value.Value) *Global {
	return g.register(v, false)
}

// RegisterGenerational roots v like Register, but the collector only rescans
// the handle during a minor collection when it was Set since the previous
// one. Suited to handles that are written rarely.
func (g *Globals) RegisterGenerational(v value.Value) *Global {
	return g.register(v, true)
}

func (g *Globals) register(v value.Value, generational bool) *Global {
	h := &Global{owner: g, v: v, generational: generational, dirty: true}
	g.mu.Lock()
	g.entries[h] = struct{}{}
	g.mu.Unlock()
	return h
}

// Get returns the current, possibly relocated, value.
func (h *Global) Get() value.Value {
	if h.released {
		panic(errors.RootCorruption("use of a released global root"))
	}
	return h.v
}

// Set replaces the rooted value.
func (h *Global) Set(v value.Value) {
	if h.released {
		panic(errors.RootCorruption("use of a released global root"))
	}
	h.owner.mu.Lock()
	h.v = v
	h.dirty = true
	h.owner.mu.Unlock()
}

// Release deregisters the handle. Releasing twice panics.
func (h *Global) Release() {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	if h.released {
		panic(errors.RootCorruption("global root released twice"))
	}
	h.released = true
	delete(h.owner.entries, h)
}

// Released reports whether Release was called.
func (h *Global) Released() bool {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	return h.released
}

// Len returns the number of registered handles.
func (g *Globals) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Each calls fn with the slot of every registered handle.
func (g *Globals) Each(fn func(slot *value.Value)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for h := range g.entries {
		fn(&h.v)
	}
}

// EachYoung calls fn with the slots a minor collection must scan and clears
// the dirty marks of generational handles.
func (g *Globals) EachYoung(fn func(slot *value.Value)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for h := range g.entries {
		if h.generational && !h.dirty {
			continue
		}
		fn(&h.v)
		h.dirty = false
	}
}
