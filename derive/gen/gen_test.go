package gen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/mlbridge/errors"
)

const shapesYAML = `
package: shapes
types:
  - name: Point
    kind: record
    fields:
      - {name: X, type: int}
      - {name: Y, type: int}
  - name: Shape
    kind: variant
    cases:
      - name: Origin
      - name: Circle
        fields: [{name: Center, type: Point}, {name: R, type: float}]
      - name: Empty
      - name: Poly
        fields: [{name: Points, type: Point list}]
  - name: Meters
    kind: record
    unboxed: true
    fields: [{name: V, type: float}]
  - name: Vec
    kind: record
    float_array: true
    fields: [{name: X, type: float}, {name: Y, type: float}]
  - name: Tree
    kind: record
    fields:
      - {name: Label, type: string}
      - {name: Kids, type: Tree list}
      - {name: Parent, type: Tree option}
`

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f
}

func TestParse(t *testing.T) {
	f := mustParse(t, shapesYAML)
	if f.Package != "shapes" || len(f.Types) != 5 {
		t.Fatalf("got package %q with %d types", f.Package, len(f.Types))
	}
	if !f.Types[2].Unboxed || !f.Types[3].FloatArray {
		t.Error("options not parsed")
	}
	if got := f.Types[1].Cases[1].Fields[0].Type; got != "Point" {
		t.Errorf("case field type = %q", got)
	}
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte("package: p\ntypes:\n  - name: A\n    kind: record\n    boxed: true\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestGenerate_Source(t *testing.T) {
	src, err := Generate(mustParse(t, shapesYAML))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	file, err := parser.ParseFile(token.NewFileSet(), "shapes_ml.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}
	if file.Name.Name != "shapes" {
		t.Errorf("package = %s", file.Name.Name)
	}

	decls := make(map[string]bool)
	ast.Inspect(file, func(n ast.Node) bool {
		switch d := n.(type) {
		case *ast.TypeSpec:
			decls["type "+d.Name.Name] = true
		case *ast.FuncDecl:
			decls["func "+d.Name.Name] = true
		}
		return true
	})
	for _, want := range []string{
		"type Point", "type Shape", "type Origin", "type Circle", "type Poly",
		"func encodePoint", "func decodeShape", "func pointCodec", "func ToValue", "func FromValue",
	} {
		if !decls[want] {
			t.Errorf("missing %s", want)
		}
	}

	s := string(src)
	for _, want := range []string{
		"// Code generated by mlderive. DO NOT EDIT.",
		`"github.com/wippyai/mlbridge/roots"`,
		"return value.OfInt(1)",              // Empty, the second constant case
		"return ffi.AllocBlock(rt, 1, f0)",   // Poly, the second block case
		"conv.List(pointCodec())",            // Point list
		"conv.Option(treeCodec())",           // Tree option
		"ffi.AllocFloatArray(rt, []float64{x.X, x.Y})",
		"conv.FloatFields(rt, v, path, 2, \"vec\")",
		"return conv.Float64().Encode(rt, x.V)", // unboxed Meters
	} {
		if !strings.Contains(s, want) {
			t.Errorf("generated source lacks %q", want)
		}
	}
}

func TestGenerate_OmitsUnusedImports(t *testing.T) {
	src, err := Generate(mustParse(t, `
package: flat
types:
  - name: Vec
    kind: record
    float_array: true
    fields: [{name: X, type: float}]
`))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	s := string(src)
	if strings.Contains(s, "mlbridge/roots") || strings.Contains(s, "mlbridge/errors") {
		t.Errorf("unused imports emitted:\n%s", s)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad package", "package: 1x\ntypes: [{name: A, kind: record, fields: [{name: X, type: int}]}]", "invalid package name"},
		{"no types", "package: p\n", "no types declared"},
		{"unknown kind", "package: p\ntypes: [{name: A, kind: enum}]", "kind must be record or variant"},
		{"unexported name", "package: p\ntypes: [{name: a, kind: record, fields: [{name: X, type: int}]}]", "exported identifier"},
		{"duplicate type", "package: p\ntypes: [{name: A, kind: record, fields: [{name: X, type: int}]}, {name: A, kind: record, fields: [{name: X, type: int}]}]", "declared twice"},
		{"unknown field type", "package: p\ntypes: [{name: A, kind: record, fields: [{name: X, type: Nope}]}]", "unknown type"},
		{"unknown constructor", "package: p\ntypes: [{name: A, kind: record, fields: [{name: X, type: int set}]}]", "unknown type constructor"},
		{"unboxed and float array", "package: p\ntypes: [{name: A, kind: record, unboxed: true, float_array: true, fields: [{name: X, type: float}]}]", "cannot be combined"},
		{"unboxed two fields", "package: p\ntypes: [{name: A, kind: record, unboxed: true, fields: [{name: X, type: int}, {name: Y, type: int}]}]", "exactly one field"},
		{"float array int field", "package: p\ntypes: [{name: A, kind: record, float_array: true, fields: [{name: X, type: int}]}]", "not float"},
		{"unboxed multi case variant", "package: p\ntypes: [{name: V, kind: variant, unboxed: true, cases: [{name: A, fields: [{name: X, type: int}]}, {name: B}]}]", "exactly one case"},
		{"variant without cases", "package: p\ntypes: [{name: V, kind: variant}]", "at least one case"},
		{"case collides with type", "package: p\ntypes: [{name: V, kind: variant, cases: [{name: V}]}]", "declared twice"},
		{"self containing record", "package: p\ntypes: [{name: A, kind: record, fields: [{name: Me, type: A}]}]", "contains itself"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mustParse(t, tt.yaml).Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
			if !errors.Is(err, errors.New(errors.PhaseGenerate, errors.KindDeclaration).Build()) {
				t.Errorf("error is not a generate declaration error: %v", err)
			}
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	err := mustParse(t, "package: p\ntypes: [{name: A, kind: record, fields: [{name: X, type: Nope}, {name: X, type: int}]}]").Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	if msg := err.Error(); !strings.Contains(msg, "unknown type") || !strings.Contains(msg, "declared twice") {
		t.Errorf("not all errors reported: %v", err)
	}
}

const shapesRoundTripTest = `package shapes

import (
	"context"
	"reflect"
	"testing"

	"github.com/wippyai/mlbridge/conv"
	"github.com/wippyai/mlbridge/roots"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

func roundTrip[T any](t *testing.T, rt *runtime.Runtime, c conv.Codec[T], x T) {
	t.Helper()
	v := c.Encode(rt, x)
	defer roots.Enter(rt.LocalRoots(), &v).Leave()
	rt.Collect(true)
	got, err := c.Decode(rt, v)
	if err != nil {
		t.Fatalf("decode %s: %v", c.MLType(), err)
	}
	if !reflect.DeepEqual(got, x) {
		t.Errorf("%s: got %#v, want %#v", c.MLType(), got, x)
	}
}

func TestRoundTrip(t *testing.T) {
	rt, err := runtime.NewWithConfig(context.Background(), &runtime.Config{
		Memory:     runtime.MemorySlice,
		MinorWords: 1024,
		MajorWords: 64 << 10,
		Poison:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close(context.Background())

	roundTrip(t, rt, PointCodec, Point{X: 1, Y: -2})
	for _, s := range []Shape{
		Origin{},
		Circle{Center: Point{X: 3, Y: 4}, R: 1.5},
		Empty{},
		Poly{Points: []Point{{X: 0, Y: 0}, {X: 1, Y: 1}}},
		Poly{Points: []Point{}},
	} {
		roundTrip(t, rt, ShapeCodec, s)
	}
	roundTrip(t, rt, MetersCodec, Meters{V: 2.5})
	roundTrip(t, rt, VecCodec, Vec{X: 0.5, Y: -0.25})

	leaf := Tree{Label: "leaf", Kids: []Tree{}}
	roundTrip(t, rt, TreeCodec, Tree{
		Label:  "root",
		Kids:   []Tree{leaf, {Label: "mid", Kids: []Tree{leaf}}},
		Parent: &Tree{Label: "up", Kids: []Tree{}},
	})

	if v := (Meters{V: 2.5}).ToValue(rt); rt.Heap().Tag(v) != value.DoubleTag {
		t.Error("unboxed record should encode as its field")
	}
	if v := (Vec{X: 1, Y: 2}).ToValue(rt); rt.Heap().Tag(v) != value.DoubleArrayTag {
		t.Errorf("float array tag = %d", rt.Heap().Tag(v))
	}
	if v := (Empty{}).ToValue(rt); v != value.OfInt(1) {
		t.Errorf("constant case = %#x", uint64(v))
	}

	var p Point
	if err := p.FromValue(rt, value.OfInt(0)); err == nil {
		t.Error("decoded an immediate as a record")
	}
}
`

func TestGenerate_CompilesAndRoundTrips(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a generated package")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not on PATH")
	}

	src, err := Generate(mustParse(t, shapesYAML))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// The package lives inside the module so it resolves mlbridge and its
	// dependencies without a go.mod of its own.
	dir, err := os.MkdirTemp(".", "shapes")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	if err := os.WriteFile(filepath.Join(dir, "shapes_ml.go"), src, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shapes_test.go"), []byte(shapesRoundTripTest), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command(goBin, "test", "-count=1", "./"+filepath.Base(dir))
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("generated package failed: %v\n%s\n--- source ---\n%s", err, out, src)
	}
}
