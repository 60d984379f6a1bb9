// Package globals implements the state shared between the compiler and the
// VM for global variables: a process-wide name->dense-index map, the
// parallel value array indexed by that dense index, and the set of names
// declared immutable.
//
// Kept as its own tiny package (rather than living in lang/vm) so that
// lang/compiler can resolve and reserve global slots at compile time without
// importing lang/vm, which itself imports lang/compiler to drive Compile.
package globals

import "github.com/Gawesomer/lox/lang/value"

// MaxGlobals bounds the dense-index space at 2^24, the widest index the
// long-form global opcodes can encode.
const MaxGlobals = 1 << 24

// Globals is the shared global-variable namespace. The zero value is not
// ready for use; construct with New.
type Globals struct {
	names     map[string]uint32
	Values    []value.Value
	Names     []string // parallel to Values, for runtime error messages
	immutable map[string]bool
}

// New returns an empty Globals table.
func New() *Globals {
	return &Globals{names: make(map[string]uint32)}
}

// Resolve returns the dense index for name, reserving a new one (and
// appending an Undefined slot) if name has not been seen before. created
// reports whether a new slot was reserved. An error is returned if the
// global space would exceed MaxGlobals.
func (g *Globals) Resolve(name string) (idx uint32, created bool, err error) {
	if i, ok := g.names[name]; ok {
		return i, false, nil
	}
	if len(g.Values) >= MaxGlobals {
		return 0, false, errTooManyGlobals
	}
	idx = uint32(len(g.Values))
	g.Values = append(g.Values, value.Undefined{})
	g.Names = append(g.Names, name)
	g.names[name] = idx
	return idx, true, nil
}

// NameOf returns the name registered for idx, for runtime error messages.
func (g *Globals) NameOf(idx uint32) string {
	if int(idx) < len(g.Names) {
		return g.Names[idx]
	}
	return "?"
}

// Lookup reports the dense index for name without reserving a new one.
func (g *Globals) Lookup(name string) (uint32, bool) {
	idx, ok := g.names[name]
	return idx, ok
}

// Get returns the value at idx.
func (g *Globals) Get(idx uint32) value.Value { return g.Values[idx] }

// Set stores val at idx unconditionally (DEFINE_GLOBAL: last definition
// wins for mutable globals).
func (g *Globals) Set(idx uint32, val value.Value) { g.Values[idx] = val }

// IsImmutable reports whether name was declared with `immut` at global
// scope.
func (g *Globals) IsImmutable(name string) bool { return g.immutable[name] }

// MarkImmutable records name as an immutable global. Called by the compiler
// when it compiles `immut x = ...;` at global scope.
func (g *Globals) MarkImmutable(name string) {
	if g.immutable == nil {
		g.immutable = make(map[string]bool)
	}
	g.immutable[name] = true
}

type tooManyGlobalsError struct{}

func (tooManyGlobalsError) Error() string { return "too many global variables" }

var errTooManyGlobals = tooManyGlobalsError{}
