package derive

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/value"
)

func indexPath(path []string, i int) []string {
	return errors.PathWith(path, "["+strconv.Itoa(i)+"]")
}

func isBlock(rt ffi.Runtime, v value.Value, tag uint8) bool {
	return v.IsBlock() && rt.Heap().Tag(v) == tag
}

func mismatch(rt ffi.Runtime, v value.Value, path []string, mlType string) error {
	return errors.UnexpectedTag(errors.PhaseDecode, path, mlType, ffi.DescribeShape(rt, v))
}

func (c *Compiler) fillSlice(p *plan, t reflect.Type, h hint) error {
	if h != hintNone && isFloatKind(t.Elem()) {
		fillFloatArray(p, -1)
		return nil
	}
	if h == hintFloat {
		return errors.Declaration(errors.PhaseDerive, t.String(), "float tag on a slice of non-float elements")
	}
	ep, err := c.compile(t.Elem(), hintNone)
	if err != nil {
		return err
	}
	if h == hintArray {
		fillBlockArray(p, ep, -1)
		return nil
	}

	p.enc = func(rt ffi.Runtime, x reflect.Value) value.Value {
		list, item := value.EmptyList, value.Unit
		defer roots.Enter(rt.LocalRoots(), &list, &item).Leave()
		for i := x.Len() - 1; i >= 0; i-- {
			item = ep.enc(rt, x.Index(i))
			list = ffi.Cons(rt, item, list)
		}
		return list
	}
	p.dec = func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error {
		hp := rt.Heap()
		s := reflect.MakeSlice(p.goType, 0, 0)
		for i := 0; v != value.EmptyList; i++ {
			if !isBlock(rt, v, 0) || hp.Size(v) != 2 {
				return mismatch(rt, v, indexPath(path, i), p.mlType)
			}
			elem := reflect.New(ep.goType).Elem()
			if err := ep.dec(rt, hp.Field(v, 0), indexPath(path, i), elem); err != nil {
				return err
			}
			s = reflect.Append(s, elem)
			v = hp.Field(v, 1)
		}
		out.Set(s)
		return nil
	}
	return nil
}

func (c *Compiler) fillArray(p *plan, t reflect.Type, h hint) error {
	if isFloatKind(t.Elem()) {
		fillFloatArray(p, t.Len())
		return nil
	}
	if h == hintFloat {
		return errors.Declaration(errors.PhaseDerive, t.String(), "float tag on an array of non-float elements")
	}
	ep, err := c.compile(t.Elem(), hintNone)
	if err != nil {
		return err
	}
	fillBlockArray(p, ep, t.Len())
	return nil
}

// fillBlockArray encodes a slice (want < 0) or a Go array of length want
// as one tag 0 block.
func fillBlockArray(p *plan, ep *plan, want int) {
	p.enc = func(rt ffi.Runtime, x reflect.Value) value.Value {
		n := x.Len()
		if n == 0 {
			return rt.Alloc(0, 0)
		}
		arr, item := value.Unit, value.Unit
		defer roots.Enter(rt.LocalRoots(), &arr, &item).Leave()
		arr = rt.Alloc(n, 0)
		for i := 0; i < n; i++ {
			item = ep.enc(rt, x.Index(i))
			rt.Modify(arr, i, item)
		}
		return arr
	}
	p.dec = func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error {
		if !isBlock(rt, v, 0) {
			return mismatch(rt, v, path, p.mlType)
		}
		b := rt.Heap().Block(v)
		if want >= 0 && b.Len() != want {
			return errors.SizeMismatch(errors.PhaseDecode, path, want, b.Len())
		}
		target := out
		if want < 0 {
			target = reflect.MakeSlice(p.goType, b.Len(), b.Len())
		}
		for i := 0; i < b.Len(); i++ {
			if err := ep.dec(rt, b.At(i), indexPath(path, i), target.Index(i)); err != nil {
				return err
			}
		}
		if want < 0 {
			out.Set(target)
		}
		return nil
	}
}

// fillFloatArray stores float elements flat in a DoubleArray block. The
// empty array is the size 0 atom.
func fillFloatArray(p *plan, want int) {
	p.enc = func(rt ffi.Runtime, x reflect.Value) value.Value {
		fs := make([]float64, x.Len())
		for i := range fs {
			fs[i] = x.Index(i).Float()
		}
		return ffi.AllocFloatArray(rt, fs)
	}
	p.dec = func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error {
		hp := rt.Heap()
		n := 0
		switch {
		case v.IsBlock() && hp.Size(v) == 0:
		case isBlock(rt, v, value.DoubleArrayTag):
			n = hp.Size(v)
		default:
			return mismatch(rt, v, path, p.mlType)
		}
		if want >= 0 && n != want {
			return errors.SizeMismatch(errors.PhaseDecode, path, want, n)
		}
		target := out
		if want < 0 {
			target = reflect.MakeSlice(p.goType, n, n)
		}
		for i := 0; i < n; i++ {
			target.Index(i).SetFloat(hp.DoubleField(v, i))
		}
		if want < 0 {
			out.Set(target)
		}
		return nil
	}
}

// keyCompare orders map keys of the sortable kinds.
func keyCompare(k reflect.Kind) func(a, b reflect.Value) int {
	switch k {
	case reflect.String:
		return func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) }
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) }
	case reflect.Float32, reflect.Float64:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) }
	case reflect.Bool:
		return func(a, b reflect.Value) int {
			if a.Bool() == b.Bool() {
				return 0
			}
			if b.Bool() {
				return -1
			}
			return 1
		}
	}
	return nil
}

// fillMap encodes a map as an association list sorted by key.
func (c *Compiler) fillMap(p *plan, t reflect.Type) error {
	compare := keyCompare(t.Key().Kind())
	if compare == nil {
		return errors.Declaration(errors.PhaseDerive, t.String(), "map keys must be strings, numbers or booleans")
	}
	kp, err := c.compile(t.Key(), hintNone)
	if err != nil {
		return err
	}
	vp, err := c.compile(t.Elem(), hintNone)
	if err != nil {
		return err
	}

	p.enc = func(rt ffi.Runtime, x reflect.Value) value.Value {
		keys := x.MapKeys()
		slices.SortFunc(keys, compare)
		list, k, v, pair := value.EmptyList, value.Unit, value.Unit, value.Unit
		defer roots.Enter(rt.LocalRoots(), &list, &k, &v, &pair).Leave()
		for i := len(keys) - 1; i >= 0; i-- {
			k = kp.enc(rt, keys[i])
			v = vp.enc(rt, x.MapIndex(keys[i]))
			pair = ffi.AllocTuple(rt, k, v)
			list = ffi.Cons(rt, pair, list)
		}
		return list
	}
	p.dec = func(rt ffi.Runtime, list value.Value, path []string, out reflect.Value) error {
		hp := rt.Heap()
		m := reflect.MakeMap(p.goType)
		for i := 0; list != value.EmptyList; i++ {
			elemPath := indexPath(path, i)
			if !isBlock(rt, list, 0) || hp.Size(list) != 2 {
				return mismatch(rt, list, elemPath, p.mlType)
			}
			pair := hp.Field(list, 0)
			if !isBlock(rt, pair, 0) || hp.Size(pair) != 2 {
				return mismatch(rt, pair, elemPath, kp.mlType+" * "+vp.mlType)
			}
			k := reflect.New(kp.goType).Elem()
			if err := kp.dec(rt, hp.Field(pair, 0), errors.PathWith(elemPath, "key"), k); err != nil {
				return err
			}
			if m.MapIndex(k).IsValid() {
				return errors.InvalidData(errors.PhaseDecode, elemPath, fmt.Sprintf("duplicate key %v", k.Interface()))
			}
			v := reflect.New(vp.goType).Elem()
			if err := vp.dec(rt, hp.Field(pair, 1), errors.PathWith(elemPath, "value"), v); err != nil {
				return err
			}
			m.SetMapIndex(k, v)
			list = hp.Field(list, 1)
		}
		out.Set(m)
		return nil
	}
	return nil
}

// fillOption maps a nil pointer to None and a non-nil one to Some.
func (c *Compiler) fillOption(p *plan, t reflect.Type) error {
	ep, err := c.compile(t.Elem(), hintNone)
	if err != nil {
		return err
	}
	p.enc = func(rt ffi.Runtime, x reflect.Value) value.Value {
		if x.IsNil() {
			return value.None
		}
		inner := ep.enc(rt, x.Elem())
		return ffi.Some(rt, inner)
	}
	p.dec = func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error {
		if v == value.None {
			out.Set(reflect.Zero(p.goType))
			return nil
		}
		if !isBlock(rt, v, 0) || rt.Heap().Size(v) != 1 {
			return mismatch(rt, v, path, p.mlType)
		}
		ptr := reflect.New(ep.goType)
		if err := ep.dec(rt, rt.Heap().Field(v, 0), errors.PathWith(path, "Some"), ptr.Elem()); err != nil {
			return err
		}
		out.Set(ptr)
		return nil
	}
	return nil
}
