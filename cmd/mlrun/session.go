package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/mlbridge/derive"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

var (
	errorType   = reflect.TypeFor[error]()
	runtimeType = reflect.TypeFor[ffi.Runtime]()
)

type funcInfo struct {
	result *derive.Plan
	name   string
	params []paramInfo
}

type paramInfo struct {
	plan *derive.Plan
	name string
}

// callResult is what one call produced.
type callResult struct {
	described string
	decoded   string
	stats     runtime.Stats
}

// session is a runtime with the demo externals registered. The domain
// lock is released between calls.
type session struct {
	rt    *runtime.Runtime
	funcs []funcInfo
}

func newSession(ctx context.Context, cfg *runtime.Config) (*session, error) {
	rt, err := runtime.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	if err := rt.RegisterHost(demoHost{}); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("register externals: %w", err)
	}
	rt.Unlock()

	s := &session{rt: rt}
	for _, f := range demoFuncs {
		info, err := describeFunc("demo_"+f.name, f)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
		s.funcs = append(s.funcs, info)
	}
	return s, nil
}

func describeFunc(name string, f demoFunc) (funcInfo, error) {
	ft := reflect.TypeOf(f.fn)
	info := funcInfo{name: name}

	names := f.params
	for i := 0; i < ft.NumIn(); i++ {
		t := ft.In(i)
		if t == runtimeType {
			continue
		}
		p, err := derive.For(t)
		if err != nil {
			return funcInfo{}, err
		}
		pname := fmt.Sprintf("arg%d", len(info.params))
		if len(names) > 0 {
			pname, names = names[0], names[1:]
		}
		info.params = append(info.params, paramInfo{name: pname, plan: p})
	}
	if ft.NumOut() > 0 && ft.Out(0) != errorType {
		p, err := derive.For(ft.Out(0))
		if err != nil {
			return funcInfo{}, err
		}
		info.result = p
	}
	return info, nil
}

func (s *session) find(name string) (funcInfo, bool) {
	for _, f := range s.funcs {
		if f.name == name || f.name == "demo_"+name {
			return f, true
		}
	}
	return funcInfo{}, false
}

func (s *session) close(ctx context.Context) error {
	return s.rt.Close(ctx)
}

// call parses raw as YAML values of the parameter types, applies the
// external and decodes its result.
func (s *session) call(name string, raw []string) (callResult, error) {
	f, ok := s.find(name)
	if !ok {
		return callResult{}, fmt.Errorf("unknown function %q", name)
	}
	if len(raw) != len(f.params) {
		return callResult{}, fmt.Errorf("%s takes %d arguments, got %d", f.name, len(f.params), len(raw))
	}
	goArgs := make([]reflect.Value, len(raw))
	for i, r := range raw {
		v, err := parseArg(r, f.params[i].plan.GoType())
		if err != nil {
			return callResult{}, fmt.Errorf("argument %s: %w", f.params[i].name, err)
		}
		goArgs[i] = v
	}

	var res callResult
	err := s.rt.Do(func(rt *runtime.Runtime) error {
		args := make([]value.Value, max(len(goArgs), 1))
		args[0] = value.Unit
		l := roots.Enter(rt.LocalRoots())
		defer l.Leave()
		for i := range args {
			l.Add(&args[i])
		}
		for i, a := range goArgs {
			args[i] = f.params[i].plan.Encode(rt, a.Interface())
		}

		clo, ok := rt.External(f.name)
		if !ok {
			return fmt.Errorf("external %s is not registered", f.name)
		}
		out, err := ffi.CallN(rt, clo, args...)
		if err != nil {
			var exn *ffi.Exception
			if stderrors.As(err, &exn) {
				exn.Release()
			}
			return err
		}

		runtime.Logger().Debug("called external", zap.String("name", f.name), zap.Int("args", len(goArgs)))
		res.described = rt.Describe(out)
		if f.result != nil {
			dst := reflect.New(f.result.GoType())
			if err := f.result.Decode(rt, out, dst.Interface()); err != nil {
				return err
			}
			res.decoded = formatGo(dst.Elem())
		}
		res.stats = rt.Stats()
		return nil
	})
	return res, err
}

// parseArg decodes a YAML scalar or flow collection into a new value of t.
// Struct fields match their lowercased names.
func parseArg(raw string, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Interface {
		return reflect.Value{}, fmt.Errorf("%s arguments cannot be parsed", t)
	}
	dst := reflect.New(t)
	if strings.TrimSpace(raw) == "" {
		return dst.Elem(), nil
	}
	if err := yaml.Unmarshal([]byte(raw), dst.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("parse %q as %s: %w", raw, t, err)
	}
	return dst.Elem(), nil
}

func formatGo(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return "None"
		}
		return "Some " + formatGo(v.Elem())
	case reflect.Interface:
		if v.IsNil() {
			return "nil"
		}
		return fmt.Sprintf("%T%+v", v.Elem().Interface(), v.Elem().Interface())
	default:
		return fmt.Sprintf("%+v", v.Interface())
	}
}

func (f funcInfo) signature() string {
	var params []string
	for _, p := range f.params {
		params = append(params, p.name+": "+p.plan.MLType())
	}
	sig := f.name + "(" + strings.Join(params, ", ") + ")"
	if f.result != nil {
		sig += " -> " + f.result.MLType()
	}
	return sig
}

func formatStats(st runtime.Stats) string {
	return fmt.Sprintf(
		"collections: %d minor, %d major\n"+
			"allocated:   %d minor words, %d major words, %d promoted\n"+
			"heap:        minor %d/%d words, major %d/%d words\n"+
			"roots:       %d global, %d remembered\n"+
			"calls:       %d primitive, %d finalizers run\n"+
			"boxes:       %d live, %d created, %d dropped",
		st.MinorCollections, st.MajorCollections,
		st.MinorWordsAllocated, st.MajorWordsAllocated, st.PromotedWords,
		st.MinorUsedWords, st.MinorHeapWords, st.MajorUsedWords, st.MajorHeapWords,
		st.GlobalRoots, st.RememberedSet,
		st.PrimitiveCalls, st.FinalizersRun,
		st.Resources, st.BoxesCreated, st.BoxesDropped)
}
