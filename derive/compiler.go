package derive

import (
	"reflect"
	"sync"

	"github.com/wippyai/mlbridge/conv"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/value"
	"go.uber.org/zap"
)

// plan converts one Go type. enc and dec are read at call time, so a plan
// may be referenced before it is filled when compiling recursive types.
type plan struct {
	goType reflect.Type
	mlType string
	enc    func(rt ffi.Runtime, x reflect.Value) value.Value
	dec    func(rt ffi.Runtime, v value.Value, path []string, out reflect.Value) error
}

// hint selects an alternative representation requested by a field tag.
type hint uint8

const (
	hintNone hint = iota
	hintArray
	hintFloat
)

type cacheKey struct {
	goType reflect.Type
	hint   hint
}

// Compiler compiles and caches plans. Declarations made on one compiler
// are not visible to another.
type Compiler struct {
	cache sync.Map // cacheKey -> *plan

	mu      sync.Mutex
	decls   map[reflect.Type]*declaration
	session map[cacheKey]*plan
}

func NewCompiler() *Compiler {
	return &Compiler{decls: make(map[reflect.Type]*declaration)}
}

var std = NewCompiler()

// Default returns the compiler used by the package-level functions.
func Default() *Compiler { return std }

var (
	valueType       = reflect.TypeFor[value.Value]()
	toValuerType    = reflect.TypeFor[conv.ToValuer]()
	fromValuerType  = reflect.TypeFor[conv.FromValuer]()
	runtimeType     = reflect.TypeFor[ffi.Runtime]()
	errorType       = reflect.TypeFor[error]()
	emptyStructType = reflect.TypeFor[struct{}]()
)

// For compiles t with the default compiler.
func For(t reflect.Type) (*Plan, error) {
	return std.For(t)
}

// For compiles t, returning the cached plan when t was compiled before.
func (c *Compiler) For(t reflect.Type) (*Plan, error) {
	p, err := c.plan(t, hintNone)
	if err != nil {
		return nil, err
	}
	return &Plan{p: p}, nil
}

func (c *Compiler) plan(t reflect.Type, h hint) (*plan, error) {
	if t == nil {
		return nil, errors.Declaration(errors.PhaseDerive, "<nil>", "type cannot be nil")
	}
	key := cacheKey{goType: t, hint: h}
	if cached, ok := c.cache.Load(key); ok {
		return cached.(*plan), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = make(map[cacheKey]*plan)
	defer func() { c.session = nil }()

	p, err := c.compile(t, h)
	if err != nil {
		return nil, err
	}
	// Plans become visible only once the whole graph compiled.
	for k, sp := range c.session {
		c.cache.Store(k, sp)
	}
	return p, nil
}

// compile must be called with mu held during a session.
func (c *Compiler) compile(t reflect.Type, h hint) (*plan, error) {
	key := cacheKey{goType: t, hint: h}
	if cached, ok := c.cache.Load(key); ok {
		return cached.(*plan), nil
	}
	if p, ok := c.session[key]; ok {
		return p, nil
	}

	p := &plan{goType: t, mlType: mlTypeName(t, h)}
	c.session[key] = p
	if err := c.fill(p, t, h); err != nil {
		return nil, err
	}
	Logger().Debug("compiled plan", zap.Stringer("type", t), zap.String("ml_type", p.mlType))
	return p, nil
}

func (c *Compiler) fill(p *plan, t reflect.Type, h hint) error {
	if h != hintNone && t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return errors.Declaration(errors.PhaseDerive, t.String(), "array and float tags apply to slices and arrays")
	}

	switch {
	case t == valueType:
		fillIdentity(p)
		return nil
	case t.Implements(toValuerType) && reflect.PointerTo(t).Implements(fromValuerType):
		fillSelf(p)
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		fillScalar(p, conv.Bool())
	case reflect.Int:
		fillScalar(p, conv.Int())
	case reflect.Int16:
		fillScalar(p, conv.Int16())
	case reflect.Int32:
		fillScalar(p, conv.Int32())
	case reflect.Uint8:
		fillScalar(p, conv.Uint8())
	case reflect.Uint32:
		fillScalar(p, conv.Uint32())
	case reflect.Int8, reflect.Uint16, reflect.Uint, reflect.Uint64, reflect.Uintptr:
		fillImmediate(p)
	case reflect.Int64:
		fillScalar(p, conv.Int64())
	case reflect.Float32:
		fillScalar(p, conv.Float32())
	case reflect.Float64:
		fillScalar(p, conv.Float64())
	case reflect.String:
		fillScalar(p, conv.String())
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && h == hintNone {
			fillScalar(p, conv.Bytes())
			return nil
		}
		return c.fillSlice(p, t, h)
	case reflect.Array:
		return c.fillArray(p, t, h)
	case reflect.Map:
		return c.fillMap(p, t)
	case reflect.Pointer:
		return c.fillOption(p, t)
	case reflect.Struct:
		return c.fillRecord(p, t)
	case reflect.Interface:
		return c.fillVariant(p, t)
	default:
		return errors.Declaration(errors.PhaseDerive, t.String(), "unsupported kind "+t.Kind().String())
	}
	return nil
}

// Plan is a compiled codec for one Go type.
type Plan struct {
	p *plan
}

// GoType returns the compiled Go type.
func (p *Plan) GoType() reflect.Type { return p.p.goType }

// MLType names the managed type.
func (p *Plan) MLType() string { return p.p.mlType }

// Encode allocates the managed representation of x, which must be
// assignable to GoType.
func (p *Plan) Encode(rt ffi.Runtime, x any) value.Value {
	rv := reflect.New(p.p.goType).Elem()
	if x != nil {
		rv.Set(reflect.ValueOf(x))
	}
	return p.p.enc(rt, rv)
}

// Decode reads v into out, which must be a non-nil pointer to GoType.
func (p *Plan) Decode(rt ffi.Runtime, v value.Value, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != p.p.goType {
		return errors.InvalidInput(errors.PhaseDecode, "decode target must be a non-nil *"+p.p.goType.String())
	}
	return p.p.dec(rt, v, nil, rv.Elem())
}

// CodecOf compiles T with the default compiler.
func CodecOf[T any]() (conv.Codec[T], error) {
	return codecFrom[T](std)
}

// MustCodec is CodecOf panicking on a declaration error.
func MustCodec[T any]() conv.Codec[T] {
	c, err := CodecOf[T]()
	if err != nil {
		panic(err)
	}
	return c
}

func codecFrom[T any](c *Compiler) (conv.Codec[T], error) {
	p, err := c.plan(reflect.TypeFor[T](), hintNone)
	if err != nil {
		return nil, err
	}
	return planCodec[T](p), nil
}

// planCodec adapts a plan to conv.Codec.
func planCodec[T any](p *plan) conv.Codec[T] {
	return conv.Func(p.mlType,
		func(rt ffi.Runtime, x T) value.Value {
			return p.enc(rt, reflect.ValueOf(&x).Elem())
		},
		func(rt ffi.Runtime, v value.Value, path []string) (T, error) {
			out := reflect.New(p.goType)
			if err := p.dec(rt, v, path, out.Elem()); err != nil {
				var zero T
				return zero, err
			}
			return *out.Interface().(*T), nil
		})
}
