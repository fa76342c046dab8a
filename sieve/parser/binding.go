package parser

import (
	"github.com/sieveforge/sievekit/sieve/ast"
	"github.com/sieveforge/sievekit/sieve/registry"
	"github.com/sieveforge/sievekit/sieve/token"
)

// isPositional reports whether spec is a plain positional slot rather than
// a tag (a tag-only spec has exactly one accepted kind: KindTag).
func isPositional(spec registry.ArgSpec) bool {
	return !(len(spec.Kinds) == 1 && spec.Kinds[0] == registry.KindTag)
}

func acceptsKind(kinds []registry.ArgKind, k registry.ArgKind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

// findTagSpec finds the ArgSpec among def.Args that recognizes the tag
// literal name (case-insensitive).
func findTagSpec(def registry.CommandDef, name string) (registry.ArgSpec, bool) {
	for _, spec := range def.Args {
		if len(spec.Kinds) == 1 && spec.Kinds[0] == registry.KindTag {
			for _, lit := range spec.Literals {
				if eqFold(lit, name) {
					return spec, true
				}
			}
		}
	}
	return registry.ArgSpec{}, false
}

// bindArguments consumes tokens filling cmd's argument slots according to
// cmd.Def.Args, stopping at the first token whose Kind is in stop. Tag
// arguments may appear in any order (subject to mutual exclusion);
// positional (non-tag) arguments must appear in declaration order.
func (p *Parser) bindArguments(cmd *ast.Command, stop map[token.Kind]bool) error {
	var positional []registry.ArgSpec
	for _, spec := range cmd.Def.Args {
		if isPositional(spec) {
			positional = append(positional, spec)
		}
	}
	posIdx := 0
	usedMutex := make(map[string]bool)

	for !stop[p.cur.Kind] && p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Tag {
			name := p.cur.Text
			spec, found := findTagSpec(cmd.Def, name)
			if !found {
				return p.errorf("%q does not accept tag :%s", cmd.Def.Name, name)
			}
			if spec.MutexGroup != "" {
				if usedMutex[spec.MutexGroup] {
					return p.errorf("tag :%s conflicts with an earlier mutually exclusive tag", name)
				}
				usedMutex[spec.MutexGroup] = true
			}
			if err := p.advance(); err != nil { // consume the tag token
				return err
			}
			val := &ast.Value{Kind: ast.ValTag, Tag: name}
			if spec.Companion != nil {
				companion, err := p.parseCompanionValue(*spec.Companion)
				if err != nil {
					return err
				}
				val.Companion = companion
			}
			cmd.SetArgument(spec.Name, val)
			continue
		}

		if posIdx >= len(positional) {
			return p.errorf("unexpected extra argument to %q", cmd.Def.Name)
		}
		spec := positional[posIdx]
		val, err := p.parseValueForSpec(spec)
		if err != nil {
			return err
		}
		cmd.SetArgument(spec.Name, val)
		posIdx++
	}

	for _, spec := range cmd.Def.Args {
		if !spec.Required {
			continue
		}
		if cmd.Argument(spec.Name) == nil {
			return p.errorf("missing required argument %q for %q", spec.Name, cmd.Def.Name)
		}
	}
	return nil
}

func (p *Parser) parseValueForSpec(spec registry.ArgSpec) (*ast.Value, error) {
	switch p.cur.Kind {
	case token.Number:
		if !acceptsKind(spec.Kinds, registry.KindNumber) {
			return nil, p.errorf("argument %q does not accept a number", spec.Name)
		}
		v := &ast.Value{Kind: ast.ValNumber, Number: p.cur.NumValue}
		return v, p.advance()
	case token.QuotedString, token.MultilineString:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if acceptsKind(spec.Kinds, registry.KindStringList) {
			return &ast.Value{Kind: ast.ValStringList, StringList: []string{text}}, nil
		}
		if acceptsKind(spec.Kinds, registry.KindString) {
			return &ast.Value{Kind: ast.ValString, String: text}, nil
		}
		return nil, p.errorf("argument %q does not accept a string", spec.Name)
	case token.LeftBracket:
		if !acceptsKind(spec.Kinds, registry.KindStringList) {
			return nil, p.errorf("argument %q does not accept a string list", spec.Name)
		}
		list, err := p.parseStringList()
		if err != nil {
			return nil, err
		}
		return &ast.Value{Kind: ast.ValStringList, StringList: list}, nil
	case token.Identifier:
		if !acceptsKind(spec.Kinds, registry.KindTest) {
			return nil, p.errorf("argument %q does not accept a test", spec.Name)
		}
		test, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		return &ast.Value{Kind: ast.ValTest, Test: test}, nil
	case token.LeftParen:
		if !acceptsKind(spec.Kinds, registry.KindTestList) {
			return nil, p.errorf("argument %q does not accept a test list", spec.Name)
		}
		tests, err := p.parseTestList()
		if err != nil {
			return nil, err
		}
		return &ast.Value{Kind: ast.ValTestList, TestList: tests}, nil
	default:
		return nil, p.errorf("unexpected token %s while parsing arguments for %q", p.cur.Kind, spec.Name)
	}
}

// parseCompanionValue parses the single value that must immediately follow
// a tag declaring a Companion kind (e.g. :comparator "i;ascii-casemap").
func (p *Parser) parseCompanionValue(kind registry.ArgKind) (*ast.Value, error) {
	switch kind {
	case registry.KindString:
		if p.cur.Kind != token.QuotedString && p.cur.Kind != token.MultilineString {
			return nil, p.errorf("expected string companion argument")
		}
		text := p.cur.Text
		return &ast.Value{Kind: ast.ValString, String: text}, p.advance()
	case registry.KindStringList:
		switch p.cur.Kind {
		case token.QuotedString, token.MultilineString:
			text := p.cur.Text
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &ast.Value{Kind: ast.ValStringList, StringList: []string{text}}, nil
		case token.LeftBracket:
			list, err := p.parseStringList()
			if err != nil {
				return nil, err
			}
			return &ast.Value{Kind: ast.ValStringList, StringList: list}, nil
		default:
			return nil, p.errorf("expected string list companion argument")
		}
	case registry.KindNumber:
		if p.cur.Kind != token.Number {
			return nil, p.errorf("expected number companion argument")
		}
		v := p.cur.NumValue
		return &ast.Value{Kind: ast.ValNumber, Number: v}, p.advance()
	default:
		return nil, p.errorf("unsupported companion argument kind")
	}
}

func (p *Parser) parseStringList() ([]string, error) {
	if p.cur.Kind != token.LeftBracket {
		return nil, p.errorf("expected '['")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var out []string
	if p.cur.Kind == token.RightBracket {
		return out, p.advance()
	}
	for {
		if p.cur.Kind != token.QuotedString && p.cur.Kind != token.MultilineString {
			return nil, p.errorf("expected string in string list")
		}
		out = append(out, p.cur.Text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == token.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != token.RightBracket {
		return nil, p.errorf("expected ']' to close string list")
	}
	return out, p.advance()
}

func (p *Parser) parseTestList() ([]*ast.Command, error) {
	if p.cur.Kind != token.LeftParen {
		return nil, p.errorf("expected '('")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var out []*ast.Command
	for {
		test, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		out = append(out, test)
		if p.cur.Kind == token.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != token.RightParen {
		return nil, p.errorf("expected ')' to close test list")
	}
	return out, p.advance()
}
