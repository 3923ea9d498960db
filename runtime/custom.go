package runtime

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
)

// RegisterCustom registers ops and returns its index. Registering the same
// table again returns the same index; a different table under an
// identifier already taken is an error.
func (r *Runtime) RegisterCustom(ops *ffi.CustomOps) (int, error) {
	if ops == nil {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "nil custom operations")
	}
	if ops.Identifier == "" {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "custom operations need an identifier")
	}

	r.customMu.Lock()
	defer r.customMu.Unlock()

	if idx, ok := r.customIDs[ops.Identifier]; ok {
		if r.custom[idx] != ops {
			return 0, errors.Registration(errors.PhaseRuntime, "custom operations", ops.Identifier,
				errors.InvalidInput(errors.PhaseRuntime, "identifier already bound to a different table"))
		}
		return idx, nil
	}

	r.custom = append(r.custom, ops)
	idx := len(r.custom) - 1
	r.customIDs[ops.Identifier] = idx
	return idx, nil
}

// CustomOpsAt returns the table registered at index.
func (r *Runtime) CustomOpsAt(index int) (*ffi.CustomOps, bool) {
	r.customMu.Lock()
	defer r.customMu.Unlock()

	if index < 0 || index >= len(r.custom) {
		return nil, false
	}
	return r.custom[index], true
}

// CustomOpsByID returns the table registered under identifier.
func (r *Runtime) CustomOpsByID(identifier string) (*ffi.CustomOps, bool) {
	r.customMu.Lock()
	defer r.customMu.Unlock()

	idx, ok := r.customIDs[identifier]
	if !ok {
		return nil, false
	}
	return r.custom[idx], true
}
