// Package registry holds the declarative command/argument grammar that
// sieve/parser consults while building a command tree. New commands can be
// registered at runtime, making the parser extensible without touching its
// code (spec section 4.2 / 9 "argument-schema as data, not code").
package registry

import (
	"strings"
	"sync"
)

// Category classifies a command for the purposes of parsing (does it take a
// block? can it appear where a test is expected?).
type Category int

const (
	Control Category = iota
	Action
	Test
)

func (c Category) String() string {
	switch c {
	case Control:
		return "control"
	case Action:
		return "action"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// ArgKind is the set of accepted syntactic shapes for an argument slot.
type ArgKind int

const (
	KindTag ArgKind = iota
	KindNumber
	KindString
	KindStringList
	KindTest
	KindTestList
)

func (k ArgKind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindStringList:
		return "stringlist"
	case KindTest:
		return "test"
	case KindTestList:
		return "testlist"
	default:
		return "unknown"
	}
}

// ArgSpec describes one named argument slot of a command.
type ArgSpec struct {
	// Name is the semantic name used as the key in Command.Arguments.
	Name string
	// Kinds lists the syntactic shapes this slot accepts. A tag slot whose
	// Literals is non-empty only accepts those specific tag spellings.
	Kinds []ArgKind
	// Required means the parser errors if the slot is never filled.
	Required bool
	// Literals restricts a KindTag slot to the given ":name" spellings
	// (without the leading colon), e.g. {"is", "contains", "matches"}.
	Literals []string
	// MutexGroup, when non-empty, means at most one ArgSpec sharing the
	// same group name may be supplied (e.g. match-type tags are mutually
	// exclusive with one another).
	MutexGroup string
	// Companion, when non-nil, is the syntactic shape of the value that
	// must immediately follow this tag, e.g. :comparator "i;ascii-casemap".
	Companion *ArgKind
}

func (a ArgSpec) acceptsKind(k ArgKind) bool {
	for _, kk := range a.Kinds {
		if kk == k {
			return true
		}
	}
	return false
}

func (a ArgSpec) acceptsTagLiteral(name string) bool {
	if !a.acceptsKind(KindTag) {
		return false
	}
	if len(a.Literals) == 0 {
		return true
	}
	for _, l := range a.Literals {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

// CommandDef is the schema for one known Sieve command.
type CommandDef struct {
	Name          string
	Category      Category
	IsExtension   bool
	ExtensionName string
	Args          []ArgSpec
	// TakesBlock is meaningful only for Category == Control: whether the
	// command is followed by a '{' ... '}' block instead of ';'.
	TakesBlock bool
}

// Registry is a name -> CommandDef table. Lookup is case-insensitive.
// The zero value is usable.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]CommandDef
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]CommandDef)}
}

// Register adds def to the registry. A duplicate name (case-insensitive)
// replaces the prior entry, matching spec section 4.2.
func (r *Registry) Register(def CommandDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defs == nil {
		r.defs = make(map[string]CommandDef)
	}
	r.defs[strings.ToLower(def.Name)] = def
}

// Lookup returns the CommandDef registered under name, case-insensitively.
func (r *Registry) Lookup(name string) (CommandDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[strings.ToLower(name)]
	return def, ok
}

// DefaultRegistry is the process-wide registry pre-populated at package init
// with the commands spec section 4.2 names. Applications may call Register
// on it before parsing to add extension commands; concurrent registration
// during parsing is the caller's responsibility to serialize (spec section
// 5).
var DefaultRegistry = NewRegistry()

func init() {
	for _, def := range builtinDefinitions() {
		DefaultRegistry.Register(def)
	}
}
