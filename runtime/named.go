package runtime

import (
	"sort"

	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// Register makes v reachable by name from native code, replacing any value
// already registered under name.
func (r *Runtime) Register(name string, v value.Value) {
	r.namedMu.Lock()
	defer r.namedMu.Unlock()

	if g, ok := r.named[name]; ok {
		g.Set(v)
		return
	}
	r.named[name] = r.globals.RegisterGenerational(v)
}

// Unregister drops the value registered under name.
func (r *Runtime) Unregister(name string) bool {
	r.namedMu.Lock()
	defer r.namedMu.Unlock()

	g, ok := r.named[name]
	if !ok {
		return false
	}
	g.Release()
	delete(r.named, name)
	return true
}

// NamedValue returns the root of the value registered under name.
func (r *Runtime) NamedValue(name string) (*roots.Global, bool) {
	r.namedMu.RLock()
	defer r.namedMu.RUnlock()

	g, ok := r.named[name]
	return g, ok
}

// Names lists registered names in order.
func (r *Runtime) Names() []string {
	r.namedMu.RLock()
	defer r.namedMu.RUnlock()

	names := make([]string, 0, len(r.named))
	for name := range r.named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
