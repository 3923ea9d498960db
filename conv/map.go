package conv

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

// Map maps a Go map to an association list of (key, value) pairs sorted by
// key. Decoding rejects duplicate keys.
func Map[K cmp.Ordered, V any](kc Codec[K], vc Codec[V]) Codec[map[K]V] {
	mlType := "(" + kc.MLType() + " * " + vc.MLType() + ") list"
	return Func(mlType,
		func(rt ffi.Runtime, m map[K]V) value.Value {
			keys := slices.Sorted(maps.Keys(m))
			list, k, v, pair := value.EmptyList, value.Unit, value.Unit, value.Unit
			defer roots.Enter(rt.LocalRoots(), &list, &k, &v, &pair).Leave()
			for i := len(keys) - 1; i >= 0; i-- {
				k = kc.Encode(rt, keys[i])
				v = vc.Encode(rt, m[keys[i]])
				pair = ffi.AllocTuple(rt, k, v)
				list = ffi.Cons(rt, pair, list)
			}
			return list
		},
		func(rt ffi.Runtime, list value.Value, path []string) (map[K]V, error) {
			h := rt.Heap()
			out := make(map[K]V)
			for i := 0; list != value.EmptyList; i++ {
				elemPath := indexPath(path, i)
				if !isBlock(rt, list, 0) || h.Size(list) != 2 {
					return nil, mismatch(rt, list, elemPath, mlType)
				}
				pair := h.Field(list, 0)
				f, err := tupleFields(rt, pair, elemPath, 2, kc.MLType()+" * "+vc.MLType())
				if err != nil {
					return nil, err
				}
				k, err := kc.DecodePath(rt, f[0], errors.PathWith(elemPath, "key"))
				if err != nil {
					return nil, err
				}
				if _, dup := out[k]; dup {
					return nil, errors.InvalidData(errors.PhaseDecode, elemPath, fmt.Sprintf("duplicate key %v", k))
				}
				v, err := vc.DecodePath(rt, f[1], errors.PathWith(elemPath, "value"))
				if err != nil {
					return nil, err
				}
				out[k] = v
				list = h.Field(list, 1)
			}
			return out, nil
		})
}
