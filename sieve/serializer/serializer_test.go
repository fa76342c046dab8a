package serializer

import (
	"strings"
	"testing"

	"github.com/sieveforge/sievekit/sieve/ast"
	"github.com/sieveforge/sievekit/sieve/registry"
)

func TestSerializeRequireOnly(t *testing.T) {
	script := ast.NewScript()
	script.RequireCapability("fileinto")
	got := Serialize(script)
	want := "require [\"fileinto\"];\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSerializeRequireSortedAndMultiple(t *testing.T) {
	script := ast.NewScript()
	script.RequireCapability("vacation")
	script.RequireCapability("fileinto")
	script.RequireCapability("reject")
	got := Serialize(script)
	want := "require [\"fileinto\", \"reject\", \"vacation\"];\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSerializeTagsBeforePositional(t *testing.T) {
	def, ok := registry.DefaultRegistry.Lookup("fileinto")
	if !ok {
		t.Fatal("fileinto not registered")
	}
	cmd := ast.NewCommand(def)
	// Set positional first, tag second, to prove schema order wins over bind order.
	cmd.SetArgument("mailbox", &ast.Value{Kind: ast.ValString, String: "Junk"})
	cmd.SetArgument("copy", &ast.Value{Kind: ast.ValTag, Tag: "copy"})

	script := ast.NewScript()
	script.RequireCapability("fileinto")
	script.AddChild(cmd)

	got := Serialize(script)
	want := "require [\"fileinto\"];\nfileinto :copy \"Junk\";\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSerializeSingleElementStringListKeepsBrackets(t *testing.T) {
	def, _ := registry.DefaultRegistry.Lookup("exists")
	cmd := ast.NewCommand(def)
	cmd.SetArgument("header-names", &ast.Value{Kind: ast.ValStringList, StringList: []string{"Subject"}})

	script := ast.NewScript()
	script.AddChild(cmd)
	got := Serialize(script)
	if !strings.Contains(got, `["Subject"]`) {
		t.Fatalf("expected bracketed single-element list, got %q", got)
	}
}

func TestSerializeBlockIndentation(t *testing.T) {
	ifDef, _ := registry.DefaultRegistry.Lookup("if")
	trueDef, _ := registry.DefaultRegistry.Lookup("true")
	stopDef, _ := registry.DefaultRegistry.Lookup("stop")

	ifCmd := ast.NewCommand(ifDef)
	ifCmd.SetArgument("test", &ast.Value{Kind: ast.ValTest, Test: ast.NewCommand(trueDef)})
	ifCmd.AddChild(ast.NewCommand(stopDef))

	script := ast.NewScript()
	script.AddChild(ifCmd)

	got := Serialize(script)
	want := "if true {\n    stop;\n}\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSerializeEscapesQuotesAndBackslashes(t *testing.T) {
	def, _ := registry.DefaultRegistry.Lookup("redirect")
	cmd := ast.NewCommand(def)
	cmd.SetArgument("address", &ast.Value{Kind: ast.ValString, String: `a"b\c`})

	script := ast.NewScript()
	script.AddChild(cmd)
	got := Serialize(script)
	want := "redirect \"a\\\"b\\\\c\";\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
