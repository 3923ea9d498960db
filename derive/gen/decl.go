// Package gen generates Go source for managed types from a YAML
// declaration file.
//
// A declaration file names the package and lists record and variant
// types:
//
//	package: shapes
//	types:
//	  - name: Point
//	    kind: record
//	    fields:
//	      - {name: X, type: int}
//	      - {name: Y, type: int}
//	  - name: Shape
//	    kind: variant
//	    cases:
//	      - name: Origin
//	      - name: Circle
//	        fields: [{name: Center, type: Point}, {name: R, type: float}]
//
// Field types are int, int32, int64, float, bool, string, bytes, char,
// unit or a declared type name, followed by any number of list, array or
// option suffixes ("Point list option"). A float array is stored flat.
//
// Records get ToValue and FromValue methods and a codec variable named
// after the type. Variants become an interface with one struct per case.
package gen

import (
	"bytes"
	"go/token"
	"strconv"
	"strings"

	"github.com/wippyai/mlbridge/errors"
	"gopkg.in/yaml.v3"
)

// Kinds of declared types.
const (
	KindRecord  = "record"
	KindVariant = "variant"
)

// maxBlockCases mirrors the number of block tags free for constructors.
const maxBlockCases = 246

// File is a parsed declaration file.
type File struct {
	Package string     `yaml:"package"`
	Types   []TypeDecl `yaml:"types"`
}

// TypeDecl declares one record or variant.
type TypeDecl struct {
	Name       string      `yaml:"name"`
	Kind       string      `yaml:"kind"`
	Unboxed    bool        `yaml:"unboxed"`
	FloatArray bool        `yaml:"float_array"`
	Fields     []FieldDecl `yaml:"fields"`
	Cases      []CaseDecl  `yaml:"cases"`
}

// FieldDecl is a record or case field.
type FieldDecl struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// CaseDecl is a variant constructor. A case without fields is constant.
type CaseDecl struct {
	Name   string      `yaml:"name"`
	Fields []FieldDecl `yaml:"fields"`
}

// Parse decodes a declaration file. Unknown keys are errors.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidData, err, "parse declarations")
	}
	return &f, nil
}

func declErr(name, detail string) error {
	return errors.Declaration(errors.PhaseGenerate, name, detail)
}

// Validate applies the declaration rules and reports every violation.
func (f *File) Validate() error {
	var errs []error
	if !token.IsIdentifier(f.Package) {
		errs = append(errs, declErr("package", "invalid package name "+strconv.Quote(f.Package)))
	}
	if len(f.Types) == 0 {
		errs = append(errs, declErr("types", "no types declared"))
	}

	// Types and cases share the package namespace.
	names := make(map[string]bool)
	declared := make(map[string]bool)
	for _, t := range f.Types {
		declared[t.Name] = true
	}
	claim := func(name, what string) {
		switch {
		case !token.IsIdentifier(name) || !token.IsExported(name):
			errs = append(errs, declErr(name, what+" name must be an exported identifier"))
		case names[name]:
			errs = append(errs, declErr(name, what+" name declared twice"))
		}
		names[name] = true
	}

	for _, t := range f.Types {
		claim(t.Name, t.Kind)
		if t.Unboxed && t.FloatArray {
			errs = append(errs, declErr(t.Name, "unboxed and float_array cannot be combined"))
		}
		switch t.Kind {
		case KindRecord:
			if len(t.Cases) > 0 {
				errs = append(errs, declErr(t.Name, "a record has no cases"))
			}
			if len(t.Fields) == 0 {
				errs = append(errs, declErr(t.Name, "a record needs at least one field"))
			}
			errs = append(errs, checkFields(t.Name, t, t.Fields, declared)...)
		case KindVariant:
			if len(t.Fields) > 0 {
				errs = append(errs, declErr(t.Name, "variant fields belong to its cases"))
			}
			if len(t.Cases) == 0 {
				errs = append(errs, declErr(t.Name, "a variant needs at least one case"))
			}
			if (t.Unboxed || t.FloatArray) && len(t.Cases) > 1 {
				errs = append(errs, declErr(t.Name, "unboxed and float_array variants take exactly one case"))
			}
			blocks := 0
			for _, c := range t.Cases {
				claim(c.Name, "case")
				if len(c.Fields) > 0 {
					blocks++
				}
				errs = append(errs, checkFields(t.Name+"."+c.Name, t, c.Fields, declared)...)
			}
			if blocks > maxBlockCases {
				errs = append(errs, declErr(t.Name, "more than "+strconv.Itoa(maxBlockCases)+" cases with fields"))
			}
		default:
			errs = append(errs, declErr(t.Name, "kind must be record or variant, got "+strconv.Quote(t.Kind)))
		}
	}
	errs = append(errs, recordCycles(f.Types)...)
	return errors.Join(errs...)
}

// recordCycles reports records that contain themselves through fields
// without a list, array or option in between.
func recordCycles(types []TypeDecl) []error {
	direct := make(map[string][]string)
	for _, t := range types {
		if t.Kind != KindRecord {
			continue
		}
		for _, fd := range t.Fields {
			if words := strings.Fields(fd.Type); len(words) == 1 {
				direct[t.Name] = append(direct[t.Name], words[0])
			}
		}
	}

	var errs []error
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return true
		case done:
			return false
		}
		state[name] = visiting
		for _, next := range direct[name] {
			if _, ok := direct[next]; ok && visit(next) {
				state[name] = done
				return true
			}
		}
		state[name] = done
		return false
	}
	for _, t := range types {
		if _, ok := direct[t.Name]; ok && state[t.Name] == 0 && visit(t.Name) {
			errs = append(errs, declErr(t.Name, "record contains itself; wrap the field in option or list"))
		}
	}
	return errs
}

func checkFields(owner string, t TypeDecl, fields []FieldDecl, declared map[string]bool) []error {
	var errs []error
	if t.Unboxed && len(fields) != 1 {
		errs = append(errs, declErr(owner, "unboxed needs exactly one field, got "+strconv.Itoa(len(fields))))
	}
	if t.FloatArray && len(fields) == 0 {
		errs = append(errs, declErr(owner, "float_array needs at least one field"))
	}
	seen := make(map[string]bool, len(fields))
	for _, fd := range fields {
		if !token.IsIdentifier(fd.Name) || !token.IsExported(fd.Name) {
			errs = append(errs, declErr(owner, "field name "+strconv.Quote(fd.Name)+" must be an exported identifier"))
		}
		if seen[fd.Name] {
			errs = append(errs, declErr(owner, "field "+fd.Name+" declared twice"))
		}
		seen[fd.Name] = true
		if _, err := parseType(fd.Type, declared); err != nil {
			errs = append(errs, declErr(owner, "field "+fd.Name+": "+err.Error()))
		}
		if t.FloatArray && strings.TrimSpace(fd.Type) != "float" {
			errs = append(errs, declErr(owner, "float_array field "+fd.Name+" is "+fd.Type+", not float"))
		}
	}
	return errs
}
