// Package serializer renders a sieve/ast.Script back into canonical Sieve
// source text (spec section 4.4). The serializer never preserves source
// comments or original formatting -- it always produces its own layout.
package serializer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sieveforge/sievekit/sieve/ast"
	"github.com/sieveforge/sievekit/sieve/registry"
)

const indentUnit = "    "

// Serialize renders script as canonical Sieve text, with a leading
// `require […];` line listing the union of RequiredCapabilities sorted for
// determinism.
func Serialize(script *ast.Script) string {
	var b strings.Builder
	if len(script.RequiredCapabilities) > 0 {
		names := make([]string, 0, len(script.RequiredCapabilities))
		for n := range script.RequiredCapabilities {
			names = append(names, n)
		}
		sort.Strings(names)
		b.WriteString("require [")
		for i, n := range names {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q", n)
		}
		b.WriteString("];\n")
	}
	for _, cmd := range script.Body {
		writeCommand(&b, cmd, 0)
	}
	return b.String()
}

func writeIndent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString(indentUnit)
	}
}

func writeCommand(b *strings.Builder, cmd *ast.Command, depth int) {
	writeIndent(b, depth)
	b.WriteString(cmd.Def.Name)
	writeArguments(b, cmd)
	if cmd.Def.TakesBlock {
		b.WriteString(" {\n")
		for _, ch := range cmd.Children {
			writeCommand(b, ch, depth+1)
		}
		writeIndent(b, depth)
		b.WriteString("}\n")
	} else {
		b.WriteString(";\n")
	}
}

// writeArguments renders tag arguments before positional arguments, in the
// order declared by the command's schema (spec section 4.4). Mutually
// exclusive tag choices (e.g. match-type's :is/:contains/:matches/:regex
// vs. its :count/:value companion form) are modeled as multiple ArgSpecs
// sharing one Name, so a name already emitted is skipped rather than
// written once per spec.
func writeArguments(b *strings.Builder, cmd *ast.Command) {
	emitted := make(map[string]bool)
	for _, spec := range cmd.Def.Args {
		if len(spec.Kinds) != 1 || spec.Kinds[0] != registry.KindTag {
			continue
		}
		if emitted[spec.Name] {
			continue
		}
		val := cmd.Argument(spec.Name)
		if val == nil || val.Kind != ast.ValTag {
			continue
		}
		emitted[spec.Name] = true
		b.WriteString(" :")
		b.WriteString(val.Tag)
		if val.Companion != nil {
			b.WriteByte(' ')
			writeValue(b, val.Companion)
		}
	}
	for _, spec := range cmd.Def.Args {
		if len(spec.Kinds) == 1 && spec.Kinds[0] == registry.KindTag {
			continue
		}
		if emitted[spec.Name] {
			continue
		}
		val := cmd.Argument(spec.Name)
		if val == nil {
			continue
		}
		emitted[spec.Name] = true
		b.WriteByte(' ')
		writeValue(b, val)
	}
}

func writeValue(b *strings.Builder, v *ast.Value) {
	switch v.Kind {
	case ast.ValNumber:
		fmt.Fprintf(b, "%d", v.Number)
	case ast.ValString:
		writeQuoted(b, v.String)
	case ast.ValStringList:
		writeStringList(b, v.StringList)
	case ast.ValTest:
		writeTest(b, v.Test)
	case ast.ValTestList:
		b.WriteByte('(')
		for i, t := range v.TestList {
			if i > 0 {
				b.WriteString(", ")
			}
			writeTest(b, t)
		}
		b.WriteByte(')')
	case ast.ValTag:
		b.WriteByte(':')
		b.WriteString(v.Tag)
		if v.Companion != nil {
			b.WriteByte(' ')
			writeValue(b, v.Companion)
		}
	}
}

// writeStringList always emits brackets, even for a single-element list,
// per spec section 4.4 ("for readability, the serializer always emits
// brackets to be safe").
func writeStringList(b *strings.Builder, items []string) {
	b.WriteByte('[')
	for i, s := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		writeQuoted(b, s)
	}
	b.WriteByte(']')
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('"')
}

func writeTest(b *strings.Builder, cmd *ast.Command) {
	b.WriteString(cmd.Def.Name)
	writeArguments(b, cmd)
}
