// Package sieve is the top-level entry point for the Sieve language core:
// parsing, tree inspection, serialization, and extension registration
// (spec section 6, "Library API (abstract)").
package sieve

import (
	"fmt"
	"strings"

	"github.com/sieveforge/sievekit/sieve/ast"
	"github.com/sieveforge/sievekit/sieve/parser"
	"github.com/sieveforge/sievekit/sieve/registry"
	"github.com/sieveforge/sievekit/sieve/serializer"
)

// Script is the parsed, validated command tree. It is an alias for
// sieve/ast.Script so that callers building or mutating a tree by hand can
// use its builder methods (AddChild, RequireCapability, Walk, ...) directly.
type Script = ast.Script

// Command is a single node of a Script. Alias of sieve/ast.Command.
type Command = ast.Command

// Parse parses Sieve source text against the default command registry,
// returning a fully validated Script or the first ParseError/LexError
// encountered.
func Parse(text string) (*Script, error) {
	return parser.Parse(text)
}

// ParseWithRegistry parses text resolving command names against reg,
// letting callers parse scripts that use application-registered extension
// commands.
func ParseWithRegistry(text string, reg *registry.Registry) (*Script, error) {
	return parser.ParseWithRegistry(text, reg)
}

// ToSieve renders script as canonical Sieve source text.
func ToSieve(script *Script) string {
	return serializer.Serialize(script)
}

// Register adds def to the process-wide default registry, making it
// available to subsequent calls to Parse.
func Register(def registry.CommandDef) {
	registry.DefaultRegistry.Register(def)
}

// Dump renders script as an indented text tree for debugging, distinct from
// the canonical Sieve form ToSieve produces.
func Dump(script *Script) string {
	var b strings.Builder
	if len(script.RequiredCapabilities) > 0 {
		fmt.Fprintf(&b, "require: %v\n", sortedKeys(script.RequiredCapabilities))
	}
	for _, cmd := range script.Body {
		dumpCommand(&b, cmd, 0)
	}
	return b.String()
}

func dumpCommand(b *strings.Builder, cmd *Command, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, "%s (%s)\n", cmd.Def.Name, cmd.Def.Category)
	for _, name := range cmd.ArgOrder {
		val := cmd.Argument(name)
		b.WriteString(strings.Repeat("  ", depth+1))
		fmt.Fprintf(b, "%s: %s\n", name, dumpValue(val))
	}
	for _, ch := range cmd.Children {
		dumpCommand(b, ch, depth+1)
	}
}

func dumpValue(v *ast.Value) string {
	switch v.Kind {
	case ast.ValTag:
		if v.Companion != nil {
			return fmt.Sprintf(":%s %s", v.Tag, dumpValue(v.Companion))
		}
		return ":" + v.Tag
	case ast.ValNumber:
		return fmt.Sprintf("%d", v.Number)
	case ast.ValString:
		return fmt.Sprintf("%q", v.String)
	case ast.ValStringList:
		return fmt.Sprintf("%q", v.StringList)
	case ast.ValTest:
		return v.Test.Def.Name
	case ast.ValTestList:
		names := make([]string, len(v.TestList))
		for i, t := range v.TestList {
			names[i] = t.Def.Name
		}
		return strings.Join(names, ", ")
	default:
		return "?"
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
