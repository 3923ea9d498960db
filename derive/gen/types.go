package gen

import (
	"fmt"
	"strings"
	"unicode"
)

// fieldType is a resolved field type: its Go spelling and the expression
// building its codec.
type fieldType struct {
	goType string
	codec  string
	float  bool
}

var builtins = map[string]fieldType{
	"int":    {goType: "int", codec: "conv.Int()"},
	"int32":  {goType: "int32", codec: "conv.Int32()"},
	"int64":  {goType: "int64", codec: "conv.Int64()"},
	"float":  {goType: "float64", codec: "conv.Float64()", float: true},
	"bool":   {goType: "bool", codec: "conv.Bool()"},
	"string": {goType: "string", codec: "conv.String()"},
	"bytes":  {goType: "[]byte", codec: "conv.Bytes()"},
	"char":   {goType: "rune", codec: "conv.Char()"},
	"unit":   {goType: "struct{}", codec: "conv.Unit()"},
}

// parseType resolves a type such as "Point list option".
func parseType(s string, declared map[string]bool) (fieldType, error) {
	words := strings.Fields(s)
	if len(words) == 0 {
		return fieldType{}, fmt.Errorf("missing type")
	}

	ft, ok := builtins[words[0]]
	if !ok {
		if !declared[words[0]] {
			return fieldType{}, fmt.Errorf("unknown type %q", words[0])
		}
		ft = fieldType{goType: words[0], codec: codecFunc(words[0]) + "()"}
	}

	for _, w := range words[1:] {
		switch w {
		case "list":
			ft = fieldType{goType: "[]" + ft.goType, codec: "conv.List(" + ft.codec + ")"}
		case "array":
			if ft.float {
				ft = fieldType{goType: "[]float64", codec: "conv.FloatArray()"}
				continue
			}
			ft = fieldType{goType: "[]" + ft.goType, codec: "conv.Array(" + ft.codec + ")"}
		case "option":
			ft = fieldType{goType: "*" + ft.goType, codec: "conv.Option(" + ft.codec + ")"}
		default:
			return fieldType{}, fmt.Errorf("unknown type constructor %q", w)
		}
	}
	return ft, nil
}

// codecFunc names the unexported constructor of a declared type's codec.
func codecFunc(name string) string {
	r := []rune(name)
	r[0] = unicode.ToLower(r[0])
	return string(r) + "Codec"
}
