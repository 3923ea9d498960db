package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/mlbridge/value"
)

// Limits for Describe output.
const (
	describeDepth  = 8
	describeFields = 16
)

// Describe renders v as a one-line tree: immediates as numbers, strings
// quoted, structured blocks as (tag: fields...).
func (r *Runtime) Describe(v value.Value) string {
	var b strings.Builder
	r.describe(&b, v, 0)
	return b.String()
}

func (r *Runtime) describe(b *strings.Builder, v value.Value, depth int) {
	if v.IsInt() {
		b.WriteString(strconv.FormatInt(v.Int(), 10))
		return
	}
	if depth >= describeDepth {
		b.WriteString("...")
		return
	}

	h := r.view
	hd := h.Header(v)
	switch tag := hd.Tag(); tag {
	case value.StringTag:
		b.WriteString(strconv.Quote(h.String(v)))
	case value.DoubleTag:
		b.WriteString(strconv.FormatFloat(h.Double(v), 'g', -1, 64))
	case value.DoubleArrayTag:
		b.WriteString("[|")
		for i := 0; i < hd.Wosize(); i++ {
			if i > 0 {
				b.WriteString("; ")
			}
			if i == describeFields {
				b.WriteString("...")
				break
			}
			b.WriteString(strconv.FormatFloat(h.DoubleField(v, i), 'g', -1, 64))
		}
		b.WriteString("|]")
	case value.ClosureTag:
		fmt.Fprintf(b, "<fun %s/%d>", r.ClosureName(v), r.Arity(v))
	case value.CustomTag:
		id := "?"
		if ops, ok := r.CustomOpsAt(h.CustomIndex(v)); ok {
			id = ops.Identifier
		}
		fmt.Fprintf(b, "<custom %s>", id)
	case value.AbstractTag:
		b.WriteString("<abstract>")
	case value.ObjectTag:
		if hd.Wosize() > 0 {
			if name := h.Field(v, 0); name.IsBlock() && h.Tag(name) == value.StringTag {
				fmt.Fprintf(b, "<exn %s>", h.String(name))
				return
			}
		}
		b.WriteString("<object>")
	default:
		if hd.Wosize() == 0 {
			fmt.Fprintf(b, "[|%d|]", tag)
			return
		}
		fmt.Fprintf(b, "(%d:", tag)
		for i := 0; i < hd.Wosize(); i++ {
			b.WriteByte(' ')
			if i == describeFields {
				b.WriteString("...")
				break
			}
			r.describe(b, h.Field(v, i), depth+1)
		}
		b.WriteByte(')')
	}
}
