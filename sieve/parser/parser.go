// Package parser implements a single-pass recursive-descent parser that
// turns Sieve source into a validated sieve/ast.Script, consulting a
// sieve/registry.Registry for the grammar of each command it meets (spec
// section 4.3).
package parser

import (
	"fmt"

	"github.com/sieveforge/sievekit/sieve/ast"
	"github.com/sieveforge/sievekit/sieve/lexer"
	"github.com/sieveforge/sievekit/sieve/registry"
	"github.com/sieveforge/sievekit/sieve/token"
)

// ParseError reports a grammar, argument-schema, or capability-declaration
// violation, with the line of the first offending token.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Parser holds the mutable state of a single parse: the token source, the
// registry it consults, and the script tree being built.
type Parser struct {
	lex    *lexer.Lexer
	reg    *registry.Registry
	cur    token.Token
	script *ast.Script
}

// Parse parses src against the process-wide registry.DefaultRegistry.
func Parse(src string) (*ast.Script, error) {
	return ParseWithRegistry(src, registry.DefaultRegistry)
}

// ParseWithRegistry parses src, resolving command names against reg. Use
// this to parse with a registry that has had application-specific
// extensions registered on it.
func ParseWithRegistry(src string, reg *registry.Registry) (*ast.Script, error) {
	p := &Parser{lex: lexer.New(src), reg: reg, script: ast.NewScript()}
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseStatements(false)
	if err != nil {
		return nil, err
	}
	p.script.Body = body
	return p.script, nil
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Line: p.cur.Line, Message: fmt.Sprintf(format, args...)}
}

// parseStatements parses a sequence of commands, stopping at EOF, or at a
// '}' when stopAtBrace is true (i.e. we are inside a block). It tracks
// elsif/else-must-follow-if/elsif adjacency within this one block.
func (p *Parser) parseStatements(stopAtBrace bool) ([]*ast.Command, error) {
	var out []*ast.Command
	var lastWasIfFamily bool

	for {
		if p.cur.Kind == token.EOF {
			if stopAtBrace {
				return nil, p.errorf("unexpected end of input, expected '}'")
			}
			return out, nil
		}
		if stopAtBrace && p.cur.Kind == token.RightBrace {
			return out, nil
		}
		if p.cur.Kind != token.Identifier {
			return nil, p.errorf("expected command name, got %s", p.cur.Kind)
		}

		name := p.cur.Text
		if eqFold(name, "require") {
			if err := p.parseRequire(); err != nil {
				return nil, err
			}
			lastWasIfFamily = false
			continue
		}

		isElsifOrElse := eqFold(name, "elsif") || eqFold(name, "else")
		if isElsifOrElse && !lastWasIfFamily {
			return nil, p.errorf("%s must follow an if or elsif in the same block", name)
		}

		cmd, err := p.parseStatementCommand()
		if err != nil {
			return nil, err
		}
		out = append(out, cmd)
		lastWasIfFamily = eqFold(name, "if") || eqFold(name, "elsif")
	}
}

func (p *Parser) parseRequire() error {
	if err := p.advance(); err != nil { // consume 'require'
		return err
	}
	val, err := p.parseRequireValue()
	if err != nil {
		return err
	}
	if p.cur.Kind != token.Semicolon {
		return p.errorf("expected semicolon after require statement")
	}
	if err := p.advance(); err != nil { // consume ';'
		return err
	}
	caps := val.StringList
	if val.Kind == ast.ValString {
		caps = []string{val.String}
	}
	for _, c := range caps {
		p.script.RequireCapability(c)
	}
	return nil
}

// parseRequireValue parses the single positional argument of `require`,
// which may be a bare string or a bracketed string list.
func (p *Parser) parseRequireValue() (*ast.Value, error) {
	switch p.cur.Kind {
	case token.QuotedString, token.MultilineString:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Value{Kind: ast.ValString, String: text}, nil
	case token.LeftBracket:
		list, err := p.parseStringList()
		if err != nil {
			return nil, err
		}
		return &ast.Value{Kind: ast.ValStringList, StringList: list}, nil
	default:
		return nil, p.errorf("expected capability string or string list after require")
	}
}

// parseStatementCommand parses one non-require command appearing as a
// top-level or block statement: identifier, arguments, then ';' or a block.
func (p *Parser) parseStatementCommand() (*ast.Command, error) {
	line := p.cur.Line
	name := p.cur.Text
	def, ok := p.reg.Lookup(name)
	if !ok {
		return nil, &ParseError{Line: line, Message: fmt.Sprintf("unknown command %q", name)}
	}
	if def.Category == registry.Test {
		return nil, &ParseError{Line: line, Message: fmt.Sprintf("%q is a test, not a statement", name)}
	}
	if err := p.advance(); err != nil { // consume command name
		return nil, err
	}

	cmd := ast.NewCommand(def)
	stop := map[token.Kind]bool{token.Semicolon: true, token.LeftBrace: true}
	if err := p.bindArguments(cmd, stop); err != nil {
		return nil, err
	}
	if err := p.checkCapability(def, line); err != nil {
		return nil, err
	}

	if def.TakesBlock {
		if p.cur.Kind != token.LeftBrace {
			return nil, p.errorf("expected '{' to start block for %q", name)
		}
		if err := p.advance(); err != nil { // consume '{'
			return nil, err
		}
		children, err := p.parseStatements(true)
		if err != nil {
			return nil, err
		}
		if p.cur.Kind != token.RightBrace {
			return nil, p.errorf("expected '}' to close block for %q", name)
		}
		if err := p.advance(); err != nil { // consume '}'
			return nil, err
		}
		for _, ch := range children {
			cmd.AddChild(ch)
		}
	} else {
		if p.cur.Kind != token.Semicolon {
			return nil, p.errorf("expected ';' after %q", name)
		}
		if err := p.advance(); err != nil { // consume ';'
			return nil, err
		}
	}
	return cmd, nil
}

// parseTest parses a test command used as an argument value: identifier,
// arguments, with no terminator of its own -- bounded by the stop set the
// caller already established for the enclosing argument list.
func (p *Parser) parseTest() (*ast.Command, error) {
	line := p.cur.Line
	if p.cur.Kind != token.Identifier {
		return nil, p.errorf("expected test, got %s", p.cur.Kind)
	}
	name := p.cur.Text
	def, ok := p.reg.Lookup(name)
	if !ok {
		return nil, &ParseError{Line: line, Message: fmt.Sprintf("unknown test %q", name)}
	}
	if def.Category != registry.Test {
		return nil, &ParseError{Line: line, Message: fmt.Sprintf("%q cannot be used as a test", name)}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	cmd := ast.NewCommand(def)
	stop := map[token.Kind]bool{token.Semicolon: true, token.LeftBrace: true, token.Comma: true, token.RightParen: true}
	if err := p.bindArguments(cmd, stop); err != nil {
		return nil, err
	}
	if err := p.checkCapability(def, line); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (p *Parser) checkCapability(def registry.CommandDef, line int) error {
	if def.IsExtension && !p.script.RequiredCapabilities[def.ExtensionName] {
		return &ParseError{Line: line, Message: fmt.Sprintf("missing capability %q required by %q", def.ExtensionName, def.Name)}
	}
	return nil
}

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
