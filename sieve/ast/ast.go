// Package ast defines the Sieve command tree produced by sieve/parser and
// consumed by sieve/serializer. Parent back-references are modeled as plain
// pointers set only by the tree's own mutators, never forming ownership
// cycles the garbage collector can't break (spec section 9).
package ast

import "github.com/sieveforge/sievekit/sieve/registry"

// ValueKind tags the lexical type carried by an Argument.
type ValueKind int

const (
	ValTag ValueKind = iota
	ValNumber
	ValString
	ValStringList
	ValTest
	ValTestList
)

// Value is a single bound argument value. Exactly one of the fields
// matching its Kind is meaningful.
type Value struct {
	Kind       ValueKind
	Tag        string   // ValTag: the tag literal without leading ':'
	Companion  *Value   // ValTag: companion value for tags that take one (e.g. :comparator "...")
	Number     int64    // ValNumber
	String     string   // ValString
	StringList []string // ValStringList
	Test       *Command // ValTest
	TestList   []*Command
}

// Command is one node of the parsed Sieve tree: a command invocation with
// its bound arguments and, for control commands with a block, its children.
type Command struct {
	Def       registry.CommandDef
	Arguments map[string]*Value
	// ArgOrder preserves the order arguments were bound in, so the
	// serializer can reproduce tag-before-positional ordering deterministically.
	ArgOrder []string
	Children []*Command
	Parent   *Command
}

// NewCommand returns an empty Command for def.
func NewCommand(def registry.CommandDef) *Command {
	return &Command{Def: def, Arguments: make(map[string]*Value)}
}

// SetArgument binds name to v, recording insertion order the first time.
func (c *Command) SetArgument(name string, v *Value) {
	if _, exists := c.Arguments[name]; !exists {
		c.ArgOrder = append(c.ArgOrder, name)
	}
	c.Arguments[name] = v
}

// Argument returns the bound value for name, or nil if unset.
func (c *Command) Argument(name string) *Value {
	return c.Arguments[name]
}

// AddChild appends child to c's children and sets its parent back-reference.
// Only meaningful for control commands with a block.
func (c *Command) AddChild(child *Command) {
	child.Parent = c
	c.Children = append(c.Children, child)
}

// RemoveChild removes the first occurrence of child from c's children.
func (c *Command) RemoveChild(child *Command) {
	for i, ch := range c.Children {
		if ch == child {
			c.Children = append(c.Children[:i], c.Children[i+1:]...)
			child.Parent = nil
			return
		}
	}
}

// Walk invokes visit on c and every descendant, pre-order.
func (c *Command) Walk(visit func(*Command)) {
	visit(c)
	for _, ch := range c.Children {
		ch.Walk(visit)
	}
}

// Script is the top-level parse result: the set of declared extensions and
// the top-level command list.
type Script struct {
	RequiredCapabilities map[string]bool
	Body                 []*Command
}

// NewScript returns an empty Script.
func NewScript() *Script {
	return &Script{RequiredCapabilities: make(map[string]bool)}
}

// AddChild appends cmd to the script's top-level body.
func (s *Script) AddChild(cmd *Command) {
	s.Body = append(s.Body, cmd)
}

// RequireCapability adds name to the declared capability set.
func (s *Script) RequireCapability(name string) {
	if s.RequiredCapabilities == nil {
		s.RequiredCapabilities = make(map[string]bool)
	}
	s.RequiredCapabilities[name] = true
}

// Walk invokes visit on every command in the script, pre-order, depth first.
func (s *Script) Walk(visit func(*Command)) {
	for _, c := range s.Body {
		c.Walk(visit)
	}
}
