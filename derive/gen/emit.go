package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"strconv"
	"strings"
	"text/template"

	"github.com/wippyai/mlbridge/derive"
	"github.com/wippyai/mlbridge/errors"
	"go.uber.org/zap"
)

const modulePath = "github.com/wippyai/mlbridge"

type fieldModel struct {
	Name   string
	MLName string
	GoType string
	Codec  string
}

type caseModel struct {
	Name   string
	Fields []fieldModel
}

type typeModel struct {
	Name      string
	MLName    string
	CodecFunc string
	Variant   bool
	Fields    []fieldModel
	Cases     []caseModel
	Encode    string
	Decode    string
}

type fileModel struct {
	Package string
	Imports []string
	Types   []typeModel
}

var fileTmpl = template.Must(template.New("file").Parse(`// Code generated by mlderive. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{range .Types}}{{$t := .}}
{{- if .Variant}}
// {{.Name}} is the {{.MLName}} variant.
type {{.Name}} interface {
	is{{.Name}}()
	ToValue(rt ffi.Runtime) value.Value
}
{{range .Cases}}
// {{.Name}} is a case of {{$t.Name}}.
type {{.Name}} struct {
{{- range .Fields}}
	{{.Name}} {{.GoType}}
{{- end}}
}

func ({{.Name}}) is{{$t.Name}}() {}

// ToValue encodes x as a {{$t.MLName}}.
func (x {{.Name}}) ToValue(rt ffi.Runtime) value.Value {
	return encode{{$t.Name}}(rt, x)
}
{{end}}
{{- else}}
// {{.Name}} is the {{.MLName}} record.
type {{.Name}} struct {
{{- range .Fields}}
	{{.Name}} {{.GoType}}
{{- end}}
}

// ToValue encodes x.
func (x {{.Name}}) ToValue(rt ffi.Runtime) value.Value {
	return encode{{.Name}}(rt, x)
}

// FromValue decodes v into x.
func (x *{{.Name}}) FromValue(rt ffi.Runtime, v value.Value) error {
	out, err := decode{{.Name}}(rt, v, nil)
	if err != nil {
		return err
	}
	*x = out
	return nil
}
{{end}}
// {{.Name}}Codec converts {{.Name}} values.
var {{.Name}}Codec = {{.CodecFunc}}()

func {{.CodecFunc}}() conv.Codec[{{.Name}}] {
	return conv.Func({{printf "%q" .MLName}}, encode{{.Name}}, decode{{.Name}})
}

func encode{{.Name}}(rt ffi.Runtime, x {{.Name}}) value.Value {
{{.Encode}}}

func decode{{.Name}}(rt ffi.Runtime, v value.Value, path []string) ({{.Name}}, error) {
{{.Decode}}}
{{end}}`))

// emitter builds function bodies and records the imports they need.
type emitter struct {
	declared map[string]bool
	imports  map[string]bool
}

// Generate validates f and returns gofmt-ed Go source for its types.
func Generate(f *File) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	e := &emitter{declared: make(map[string]bool), imports: map[string]bool{"conv": true, "ffi": true, "value": true}}
	for _, t := range f.Types {
		e.declared[t.Name] = true
	}

	m := fileModel{Package: f.Package}
	for _, t := range f.Types {
		tm, err := e.typeModel(t)
		if err != nil {
			return nil, err
		}
		m.Types = append(m.Types, tm)
	}
	for _, pkg := range []string{"conv", "errors", "ffi", "roots", "value"} {
		if e.imports[pkg] {
			m.Imports = append(m.Imports, modulePath+"/"+pkg)
		}
	}

	var buf bytes.Buffer
	if err := fileTmpl.Execute(&buf, m); err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidData, err, "execute template")
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidData, err, "format generated source")
	}
	Logger().Debug("generated source",
		zap.String("package", f.Package),
		zap.Int("types", len(f.Types)),
		zap.Int("bytes", len(src)))
	return src, nil
}

func (e *emitter) fields(decls []FieldDecl) ([]fieldModel, error) {
	out := make([]fieldModel, len(decls))
	for i, d := range decls {
		ft, err := parseType(d.Type, e.declared)
		if err != nil {
			return nil, err
		}
		out[i] = fieldModel{Name: d.Name, MLName: derive.SnakeCase(d.Name), GoType: ft.goType, Codec: ft.codec}
	}
	return out, nil
}

func (e *emitter) typeModel(t TypeDecl) (typeModel, error) {
	tm := typeModel{
		Name:      t.Name,
		MLName:    derive.SnakeCase(t.Name),
		CodecFunc: codecFunc(t.Name),
		Variant:   t.Kind == KindVariant,
	}
	sh := shape{unboxed: t.Unboxed, floatArray: t.FloatArray, mlName: tm.MLName}

	if !tm.Variant {
		fields, err := e.fields(t.Fields)
		if err != nil {
			return tm, err
		}
		tm.Fields = fields
		sh.fields = fields

		var enc, dec strings.Builder
		e.encodeShape(&enc, sh, 0)
		fmt.Fprintf(&dec, "var x %s\n", t.Name)
		e.decodeShape(&dec, sh, 0, "path", "x")
		dec.WriteString("return x, nil\n")
		tm.Encode, tm.Decode = enc.String(), dec.String()
		return tm, nil
	}

	e.imports["errors"] = true
	var consts, blocks []caseModel
	for _, c := range t.Cases {
		fields, err := e.fields(c.Fields)
		if err != nil {
			return tm, err
		}
		cm := caseModel{Name: c.Name, Fields: fields}
		tm.Cases = append(tm.Cases, cm)
		if len(fields) == 0 {
			consts = append(consts, cm)
		} else {
			blocks = append(blocks, cm)
		}
	}
	tm.Encode = e.encodeVariant(t, sh, consts, blocks)
	tm.Decode = e.decodeVariant(t, sh, consts, blocks)
	return tm, nil
}

// shape is the layout of a record or variant case.
type shape struct {
	fields     []fieldModel
	unboxed    bool
	floatArray bool
	mlName     string
}

func (e *emitter) encodeShape(b *strings.Builder, sh shape, tag int) {
	switch {
	case sh.unboxed:
		f := sh.fields[0]
		fmt.Fprintf(b, "return %s.Encode(rt, x.%s)\n", f.Codec, f.Name)
		return
	case sh.floatArray:
		parts := make([]string, len(sh.fields))
		for i, f := range sh.fields {
			parts[i] = "x." + f.Name
		}
		fmt.Fprintf(b, "return ffi.AllocFloatArray(rt, []float64{%s})\n", strings.Join(parts, ", "))
		return
	}

	e.imports["roots"] = true
	vars := make([]string, len(sh.fields))
	units := make([]string, len(sh.fields))
	refs := make([]string, len(sh.fields))
	for i := range sh.fields {
		vars[i] = "f" + strconv.Itoa(i)
		units[i] = "value.Unit"
		refs[i] = "&" + vars[i]
	}
	fmt.Fprintf(b, "%s := %s\n", strings.Join(vars, ", "), strings.Join(units, ", "))
	fmt.Fprintf(b, "defer roots.Enter(rt.LocalRoots(), %s).Leave()\n", strings.Join(refs, ", "))
	for i, f := range sh.fields {
		fmt.Fprintf(b, "%s = %s.Encode(rt, x.%s)\n", vars[i], f.Codec, f.Name)
	}
	fmt.Fprintf(b, "return ffi.AllocBlock(rt, %d, %s)\n", tag, strings.Join(vars, ", "))
}

// decodeShape decodes v into the struct variable x, returning fail on
// error.
func (e *emitter) decodeShape(b *strings.Builder, sh shape, tag int, path, fail string) {
	ml := strconv.Quote(sh.mlName)
	switch {
	case sh.unboxed:
		e.imports["errors"] = true
		f := sh.fields[0]
		b.WriteString("var err error\n")
		fmt.Fprintf(b, "if x.%s, err = %s.DecodePath(rt, v, errors.PathWith(%s, %q)); err != nil {\nreturn %s, err\n}\n",
			f.Name, f.Codec, path, f.MLName, fail)
	case sh.floatArray:
		fmt.Fprintf(b, "fs, err := conv.FloatFields(rt, v, %s, %d, %s)\n", path, len(sh.fields), ml)
		fmt.Fprintf(b, "if err != nil {\nreturn %s, err\n}\n", fail)
		for i, f := range sh.fields {
			fmt.Fprintf(b, "x.%s = fs[%d]\n", f.Name, i)
		}
	default:
		e.imports["errors"] = true
		fmt.Fprintf(b, "f, err := conv.Fields(rt, v, %s, %d, %d, %s)\n", path, tag, len(sh.fields), ml)
		fmt.Fprintf(b, "if err != nil {\nreturn %s, err\n}\n", fail)
		for i, f := range sh.fields {
			fmt.Fprintf(b, "if x.%s, err = %s.DecodePath(rt, f[%d], errors.PathWith(%s, %q)); err != nil {\nreturn %s, err\n}\n",
				f.Name, f.Codec, i, path, f.MLName, fail)
		}
	}
}

func (e *emitter) encodeVariant(t TypeDecl, sh shape, consts, blocks []caseModel) string {
	var b strings.Builder
	if len(blocks) > 0 {
		b.WriteString("switch x := x.(type) {\n")
	} else {
		b.WriteString("switch x.(type) {\n")
	}
	for i, c := range consts {
		fmt.Fprintf(&b, "case %s:\nreturn value.OfInt(%d)\n", c.Name, i)
	}
	for i, c := range blocks {
		fmt.Fprintf(&b, "case %s:\n", c.Name)
		cs := sh
		cs.fields = c.Fields
		e.encodeShape(&b, cs, i)
	}
	b.WriteString("}\n")
	fmt.Fprintf(&b, "panic(errors.InvalidInput(errors.PhaseEncode, %q))\n", "nil or undeclared case of "+t.Name)
	return b.String()
}

func (e *emitter) decodeVariant(t TypeDecl, sh shape, consts, blocks []caseModel) string {
	var b strings.Builder
	if sh.unboxed || sh.floatArray {
		c := blocks[0]
		cs := sh
		cs.fields = c.Fields
		fmt.Fprintf(&b, "var x %s\n", c.Name)
		fmt.Fprintf(&b, "cp := errors.PathWith(path, %q)\n", c.Name)
		e.decodeShape(&b, cs, 0, "cp", "nil")
		b.WriteString("return x, nil\n")
		return b.String()
	}

	b.WriteString("if v.IsInt() {\n")
	if len(consts) > 0 {
		b.WriteString("switch v.Int() {\n")
		for i, c := range consts {
			fmt.Fprintf(&b, "case %d:\nreturn %s{}, nil\n", i, c.Name)
		}
		b.WriteString("}\n")
	}
	fmt.Fprintf(&b, "return nil, errors.InvalidDiscriminant(errors.PhaseDecode, path, int(v.Int()), true, %d)\n}\n", len(consts)-1)

	if len(blocks) > 0 {
		b.WriteString("switch rt.Heap().Tag(v) {\n")
		for i, c := range blocks {
			cs := sh
			cs.fields = c.Fields
			fmt.Fprintf(&b, "case %d:\nvar x %s\n", i, c.Name)
			fmt.Fprintf(&b, "cp := errors.PathWith(path, %q)\n", c.Name)
			e.decodeShape(&b, cs, i, "cp", "nil")
			b.WriteString("return x, nil\n")
		}
		b.WriteString("}\n")
	}
	fmt.Fprintf(&b, "return nil, errors.InvalidDiscriminant(errors.PhaseDecode, path, int(rt.Heap().Tag(v)), false, %d)\n", len(blocks)-1)
	return b.String()
}
