package ffi

import (
	"fmt"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

// MaxFixedArity is the largest arity with a fixed-arity entry point.
const MaxFixedArity = 5

// Fixed-arity entry points.
type (
	Fixed0 func(rt Runtime) value.Value
	Fixed1 func(rt Runtime, a value.Value) value.Value
	Fixed2 func(rt Runtime, a, b value.Value) value.Value
	Fixed3 func(rt Runtime, a, b, c value.Value) value.Value
	Fixed4 func(rt Runtime, a, b, c, d value.Value) value.Value
	Fixed5 func(rt Runtime, a, b, c, d, e value.Value) value.Value
)

// Bytecode is the array entry point: argn arguments in argv.
type Bytecode func(rt Runtime, argv []value.Value, argn int) value.Value

// Primitive is a native function callable from managed code.
type Primitive struct {
	// Native is one of Fixed0..Fixed5 matching Arity, nil above
	// MaxFixedArity.
	Native   any
	Bytecode Bytecode
	Name     string
	Arity    int
}

// NewPrimitive checks that native matches arity and fills in the bytecode
// entry from native when bytecode is nil.
func NewPrimitive(name string, arity int, native any, bytecode Bytecode) (*Primitive, error) {
	if arity < 0 {
		return nil, errors.Declaration(errors.PhaseExport, name, "negative arity")
	}
	if native == nil && bytecode == nil {
		return nil, errors.Declaration(errors.PhaseExport, name, "primitive has no entry point")
	}
	if native != nil {
		if arity > MaxFixedArity {
			return nil, errors.Declaration(errors.PhaseExport, name,
				fmt.Sprintf("arity %d has no fixed-arity entry point", arity))
		}
		if got := fixedArity(native); got != arity {
			return nil, errors.Declaration(errors.PhaseExport, name,
				fmt.Sprintf("native entry %T does not have arity %d", native, arity))
		}
	}
	if bytecode == nil {
		bytecode = BytecodeOf(native)
	}
	return &Primitive{Name: name, Arity: arity, Native: native, Bytecode: bytecode}, nil
}

// MustPrimitive is NewPrimitive that panics on declaration errors.
func MustPrimitive(name string, arity int, native any, bytecode Bytecode) *Primitive {
	p, err := NewPrimitive(name, arity, native, bytecode)
	if err != nil {
		panic(err)
	}
	return p
}

func fixedArity(native any) int {
	switch native.(type) {
	case Fixed0, func(Runtime) value.Value:
		return 0
	case Fixed1, func(Runtime, value.Value) value.Value:
		return 1
	case Fixed2, func(Runtime, value.Value, value.Value) value.Value:
		return 2
	case Fixed3, func(Runtime, value.Value, value.Value, value.Value) value.Value:
		return 3
	case Fixed4, func(Runtime, value.Value, value.Value, value.Value, value.Value) value.Value:
		return 4
	case Fixed5, func(Runtime, value.Value, value.Value, value.Value, value.Value, value.Value) value.Value:
		return 5
	default:
		return -1
	}
}

// callFixed dispatches args to a fixed-arity entry point.
func callFixed(rt Runtime, native any, args []value.Value) value.Value {
	switch fn := native.(type) {
	case Fixed0:
		return fn(rt)
	case func(Runtime) value.Value:
		return fn(rt)
	case Fixed1:
		return fn(rt, args[0])
	case func(Runtime, value.Value) value.Value:
		return fn(rt, args[0])
	case Fixed2:
		return fn(rt, args[0], args[1])
	case func(Runtime, value.Value, value.Value) value.Value:
		return fn(rt, args[0], args[1])
	case Fixed3:
		return fn(rt, args[0], args[1], args[2])
	case func(Runtime, value.Value, value.Value, value.Value) value.Value:
		return fn(rt, args[0], args[1], args[2])
	case Fixed4:
		return fn(rt, args[0], args[1], args[2], args[3])
	case func(Runtime, value.Value, value.Value, value.Value, value.Value) value.Value:
		return fn(rt, args[0], args[1], args[2], args[3])
	case Fixed5:
		return fn(rt, args[0], args[1], args[2], args[3], args[4])
	case func(Runtime, value.Value, value.Value, value.Value, value.Value, value.Value) value.Value:
		return fn(rt, args[0], args[1], args[2], args[3], args[4])
	default:
		panic(errors.Unsupported(errors.PhaseExport, fmt.Sprintf("entry point %T", native)))
	}
}

// BytecodeOf adapts a fixed-arity entry point to the array calling
// convention.
func BytecodeOf(native any) Bytecode {
	arity := fixedArity(native)
	return func(rt Runtime, argv []value.Value, argn int) value.Value {
		if argn != arity || len(argv) < argn {
			InvalidArgument(rt, fmt.Sprintf("expected %d arguments, got %d", arity, argn))
		}
		return callFixed(rt, native, argv[:argn])
	}
}

// Invoke calls the primitive through its fixed-arity entry point when it
// has one, through the bytecode entry otherwise.
func (p *Primitive) Invoke(rt Runtime, args []value.Value) value.Value {
	if p.Native == nil {
		return p.InvokeBytecode(rt, args)
	}
	return Guard(rt, p.Name, func() value.Value {
		if len(args) != p.Arity {
			InvalidArgument(rt, fmt.Sprintf("%s expects %d arguments, got %d", p.Name, p.Arity, len(args)))
		}
		return callFixed(rt, p.Native, args)
	})
}

// InvokeBytecode calls the primitive through its bytecode entry point.
func (p *Primitive) InvokeBytecode(rt Runtime, args []value.Value) value.Value {
	return Guard(rt, p.Name, func() value.Value {
		return p.Bytecode(rt, args, len(args))
	})
}
