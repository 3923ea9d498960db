package runtime

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/mlbridge/derive"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// Host is the interface for struct-based groups of externals.
// All exported methods (except Namespace) are registered as primitives.
type Host interface {
	// Namespace prefixes every primitive name (e.g., "math").
	Namespace() string
}

// ExplicitRegistrar allows hosts to provide exact primitive names when the
// automatic PascalCase-to-snake_case conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

type externalRegistry struct {
	entries map[string]*external
	mu      sync.RWMutex
}

type external struct {
	prim    *ffi.Primitive
	closure *roots.Global
}

func newExternalRegistry() *externalRegistry {
	return &externalRegistry{entries: make(map[string]*external)}
}

// RegisterExternal binds p into the code table and returns the closure the
// managed side applies to call it. A global root keeps the closure alive
// for the life of the runtime, but the returned Value is an unrooted copy
// that a collection may move: root it, or fetch the current value with
// External(name) after any allocation.
func (r *Runtime) RegisterExternal(p *ffi.Primitive) (value.Value, error) {
	r.assertLocked("RegisterExternal")
	if p == nil || p.Name == "" {
		return 0, errors.InvalidInput(errors.PhaseExport, "primitive name cannot be empty")
	}

	r.externals.mu.Lock()
	defer r.externals.mu.Unlock()

	if _, ok := r.externals.entries[p.Name]; ok {
		return 0, errors.Registration(errors.PhaseExport, "external", p.Name,
			errors.InvalidInput(errors.PhaseExport, "already registered"))
	}

	idx := r.defineCode(&code{name: p.Name, prim: p})
	arity := p.Arity
	if arity == 0 {
		// Zero-argument primitives are applied to unit.
		arity = 1
		p = zeroArity(p)
		r.codes[idx].prim = p
	}
	clo := r.closure(idx, arity)
	r.externals.entries[p.Name] = &external{prim: p, closure: r.globals.Register(clo)}
	return clo, nil
}

// zeroArity wraps a primitive taking no arguments so it can be applied to
// the unit value.
func zeroArity(p *ffi.Primitive) *ffi.Primitive {
	inner := p
	return &ffi.Primitive{
		Name:  p.Name,
		Arity: 1,
		Native: ffi.Fixed1(func(rt ffi.Runtime, _ value.Value) value.Value {
			return inner.InvokeBytecode(rt, nil)
		}),
		Bytecode: func(rt ffi.Runtime, _ []value.Value, _ int) value.Value {
			return inner.InvokeBytecode(rt, nil)
		},
	}
}

// RegisterFunc exports fn under name and registers it as an external.
func (r *Runtime) RegisterFunc(name string, fn any) (value.Value, error) {
	p, err := derive.Export(name, fn)
	if err != nil {
		return 0, err
	}
	return r.RegisterExternal(p)
}

// RegisterHost registers all exported methods of h as externals named
// namespace_method_name.
func (r *Runtime) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseExport, "namespace cannot be empty")
	}

	if er, ok := h.(ExplicitRegistrar); ok {
		funcs := er.Register()
		names := make([]string, 0, len(funcs))
		for name := range funcs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, err := r.RegisterFunc(ns+"_"+name, funcs[name]); err != nil {
				return errors.Registration(errors.PhaseExport, ns, name, err)
			}
		}
		return nil
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()

	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)

		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}

		name := ns + "_" + toSnakeCase(method.Name)
		if _, err := r.RegisterFunc(name, rv.Method(i).Interface()); err != nil {
			return errors.Registration(errors.PhaseExport, ns, method.Name, err)
		}
	}

	return nil
}

// External returns the closure registered under name.
func (r *Runtime) External(name string) (value.Value, bool) {
	r.externals.mu.RLock()
	defer r.externals.mu.RUnlock()

	e, ok := r.externals.entries[name]
	if !ok {
		return 0, false
	}
	return e.closure.Get(), true
}

// Primitive returns the primitive registered under name.
func (r *Runtime) Primitive(name string) (*ffi.Primitive, bool) {
	r.externals.mu.RLock()
	defer r.externals.mu.RUnlock()

	e, ok := r.externals.entries[name]
	if !ok {
		return nil, false
	}
	return e.prim, true
}

// Externals lists registered external names in order.
func (r *Runtime) Externals() []string {
	r.externals.mu.RLock()
	defer r.externals.mu.RUnlock()

	names := make([]string, 0, len(r.externals.entries))
	for name := range r.externals.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: GetHTTPStatus -> get_http_status
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('_')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1 // -1 because loop will increment
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
