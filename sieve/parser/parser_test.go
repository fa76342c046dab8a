package parser

import (
	"testing"

	"github.com/sieveforge/sievekit/sieve/ast"
	"github.com/sieveforge/sievekit/sieve/serializer"
)

func TestParseRequireOnly(t *testing.T) {
	script, err := Parse(`require ["fileinto"];`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(script.Body) != 0 {
		t.Fatalf("expected empty body, got %d commands", len(script.Body))
	}
	if !script.RequiredCapabilities["fileinto"] {
		t.Fatalf("expected fileinto in RequiredCapabilities, got %v", script.RequiredCapabilities)
	}

	got := serializer.Serialize(script)
	want := "require [\"fileinto\"];\n"
	if got != want {
		t.Fatalf("serialize mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestParseRequireMissingSemicolon(t *testing.T) {
	_, err := Parse(`require ["fileinto"]`)
	if err == nil {
		t.Fatal("expected error for missing semicolon")
	}
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if perr.Line != 1 {
		t.Fatalf("expected error on line 1, got line %d", perr.Line)
	}
	if !containsFold(perr.Message, "semicolon") {
		t.Fatalf("expected message to mention semicolon, got %q", perr.Message)
	}
}

func TestParseIfHeaderFileinto(t *testing.T) {
	src := `require ["fileinto"];
if header :is "Sender" "a@b" {
    fileinto "X";
}`
	script, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(script.Body) != 1 {
		t.Fatalf("expected one top-level command, got %d", len(script.Body))
	}
	ifCmd := script.Body[0]
	if ifCmd.Def.Name != "if" {
		t.Fatalf("expected if command, got %q", ifCmd.Def.Name)
	}

	testVal := ifCmd.Argument("test")
	if testVal == nil || testVal.Kind != ast.ValTest {
		t.Fatalf("expected if to carry a bound test argument")
	}
	headerTest := testVal.Test
	if headerTest.Def.Name != "header" {
		t.Fatalf("expected header test, got %q", headerTest.Def.Name)
	}
	matchType := headerTest.Argument("match-type")
	if matchType == nil || matchType.Tag != "is" {
		t.Fatalf("expected :is match-type, got %+v", matchType)
	}
	names := headerTest.Argument("header-names")
	if names == nil || len(names.StringList) != 1 || names.StringList[0] != "Sender" {
		t.Fatalf("expected header-names [Sender], got %+v", names)
	}
	keys := headerTest.Argument("key-list")
	if keys == nil || len(keys.StringList) != 1 || keys.StringList[0] != "a@b" {
		t.Fatalf("expected key-list [a@b], got %+v", keys)
	}

	if len(ifCmd.Children) != 1 || ifCmd.Children[0].Def.Name != "fileinto" {
		t.Fatalf("expected one fileinto child, got %+v", ifCmd.Children)
	}
	if !script.RequiredCapabilities["fileinto"] {
		t.Fatalf("expected fileinto capability recorded")
	}
}

func TestParseFileintoWithoutRequireFails(t *testing.T) {
	_, err := Parse(`fileinto "INBOX.spam";`)
	if err == nil {
		t.Fatal("expected error for fileinto without require")
	}
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if !containsFold(perr.Message, "capability") {
		t.Fatalf("expected capability-related message, got %q", perr.Message)
	}
}

func TestParseRejectsElsifWithoutIf(t *testing.T) {
	_, err := Parse(`elsif true { stop; }`)
	if err == nil {
		t.Fatal("expected error for elsif without preceding if")
	}
}

func TestParseRejectsUnknownExtensionTest(t *testing.T) {
	_, err := Parse(`if mailboxexists "INBOX" { stop; }`)
	if err == nil {
		t.Fatal("expected error for mailboxexists without require")
	}
}

func TestRoundTripStructuralEquality(t *testing.T) {
	src := `require ["fileinto", "reject"];
if anyof (header :contains ["Subject"] ["free money"], size :over 100000) {
    fileinto :copy "Junk";
} elsif true {
    stop;
} else {
    keep;
}`
	first, err := Parse(src)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	rendered := serializer.Serialize(first)
	second, err := Parse(rendered)
	if err != nil {
		t.Fatalf("second parse of rendered output: %v\n%s", err, rendered)
	}
	if !scriptsEqual(first, second) {
		t.Fatalf("round trip not structurally equal:\nfirst:  %#v\nsecond: %#v", first, second)
	}
}

func containsFold(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if eqFold(s[i:i+len(substr)], substr) {
			return true
		}
	}
	return false
}

func scriptsEqual(a, b *ast.Script) bool {
	if len(a.RequiredCapabilities) != len(b.RequiredCapabilities) {
		return false
	}
	for k := range a.RequiredCapabilities {
		if !b.RequiredCapabilities[k] {
			return false
		}
	}
	if len(a.Body) != len(b.Body) {
		return false
	}
	for i := range a.Body {
		if !commandsEqual(a.Body[i], b.Body[i]) {
			return false
		}
	}
	return true
}

func commandsEqual(a, b *ast.Command) bool {
	if a.Def.Name != b.Def.Name {
		return false
	}
	if len(a.ArgOrder) != len(b.ArgOrder) {
		return false
	}
	for _, name := range a.ArgOrder {
		if !valuesEqual(a.Argument(name), b.Argument(name)) {
			return false
		}
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !commandsEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b *ast.Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ast.ValTag:
		return a.Tag == b.Tag && valuesEqual(a.Companion, b.Companion)
	case ast.ValNumber:
		return a.Number == b.Number
	case ast.ValString:
		return a.String == b.String
	case ast.ValStringList:
		if len(a.StringList) != len(b.StringList) {
			return false
		}
		for i := range a.StringList {
			if a.StringList[i] != b.StringList[i] {
				return false
			}
		}
		return true
	case ast.ValTest:
		return commandsEqual(a.Test, b.Test)
	case ast.ValTestList:
		if len(a.TestList) != len(b.TestList) {
			return false
		}
		for i := range a.TestList {
			if !commandsEqual(a.TestList[i], b.TestList[i]) {
				return false
			}
		}
		return true
	}
	return false
}
