package main

import (
	"errors"
	"math"
	"strings"

	"github.com/wippyai/mlbridge/derive"
	"github.com/wippyai/mlbridge/ffi"
)

// Point is a record of two floats.
type Point struct {
	X float64
	Y float64
}

// Shape is a variant: Dot is immediate 0, Circle block tag 0, Rect block
// tag 1.
type Shape interface{ isShape() }

type Dot struct{}

type Circle struct{ R float64 }

type Rect struct{ W, H float64 }

func (Dot) isShape()    {}
func (Circle) isShape() {}
func (Rect) isShape()   {}

var _ = derive.MustVariant[Shape](
	derive.Case[Dot](),
	derive.Case[Circle](),
	derive.Case[Rect](),
)

// demoFunc is one sample external with named parameters.
type demoFunc struct {
	fn     any
	name   string
	params []string
}

var demoFuncs = []demoFunc{
	{name: "add", params: []string{"a", "b"}, fn: func(a, b int) int { return a + b }},
	{name: "div", params: []string{"a", "b"}, fn: func(a, b int) (int, error) {
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return a / b, nil
	}},
	{name: "concat", params: []string{"a", "b"}, fn: func(a, b string) string { return a + b }},
	{name: "split", params: []string{"s", "sep"}, fn: func(s, sep string) []string {
		if s == "" {
			return nil
		}
		return strings.Split(s, sep)
	}},
	{name: "tally", params: []string{"words"}, fn: func(words []string) map[string]int {
		counts := make(map[string]int, len(words))
		for _, w := range words {
			counts[w]++
		}
		return counts
	}},
	{name: "norm", params: []string{"p"}, fn: func(p Point) float64 { return math.Hypot(p.X, p.Y) }},
	{name: "centroid", params: []string{"points"}, fn: func(points []Point) *Point {
		if len(points) == 0 {
			return nil
		}
		var c Point
		for _, p := range points {
			c.X += p.X
			c.Y += p.Y
		}
		n := float64(len(points))
		return &Point{X: c.X / n, Y: c.Y / n}
	}},
	{name: "shape", params: []string{"w", "h"}, fn: func(w, h float64) Shape {
		switch {
		case w == 0 && h == 0:
			return Dot{}
		case h == 0:
			return Circle{R: w}
		default:
			return Rect{W: w, H: h}
		}
	}},
	{name: "churn", params: []string{"n"}, fn: func(rt ffi.Runtime, n int) int {
		for i := 0; i < n; i++ {
			ffi.AllocString(rt, strings.Repeat("x", i%64))
		}
		return n
	}},
}

// demoHost registers demoFuncs as demo_<name>.
type demoHost struct{}

func (demoHost) Namespace() string { return "demo" }

func (demoHost) Register() map[string]any {
	funcs := make(map[string]any, len(demoFuncs))
	for _, f := range demoFuncs {
		funcs[f.name] = f.fn
	}
	return funcs
}
