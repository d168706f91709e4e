package realm

import (
	"context"
	"strings"
	"sync"

	"github.com/wippyai/realms/source"
)

// DefaultSymbolSuffix is appended to a symbol's slash path to find its resource.
const DefaultSymbolSuffix = ".wasm"

// Symbol is a materialized code unit. There is one Symbol per
// (defining realm, name) pair; every requester gets the same pointer.
type Symbol struct {
	// Resource is nil for host provided symbols.
	Resource *source.Resource
	// Value is whatever the world's Definer produced.
	Value any
	Name  string
	// Realm is the id of the defining realm, empty for host provided symbols.
	Realm string
}

func (s *Symbol) String() string {
	if s.Realm == "" {
		return s.Name + " (host)"
	}
	return s.Name + " (" + s.Realm + ")"
}

// Definer turns a located resource into a symbol value.
// Definers must not resolve the symbol they are defining.
type Definer interface {
	Define(ctx context.Context, r *Realm, name string, res *source.Resource) (any, error)
}

// DefinerFunc adapts a function to Definer.
type DefinerFunc func(ctx context.Context, r *Realm, name string, res *source.Resource) (any, error)

func (f DefinerFunc) Define(ctx context.Context, r *Realm, name string, res *source.Resource) (any, error) {
	return f(ctx, r, name, res)
}

// RawDefiner uses the resource bytes as the symbol value.
var RawDefiner Definer = DefinerFunc(func(_ context.Context, _ *Realm, _ string, res *source.Resource) (any, error) {
	return res.Bytes()
})

// ForeignResolver supplies process wide symbols before any realm local
// lookup runs. A miss is (nil, false, nil).
type ForeignResolver interface {
	ResolveSymbol(ctx context.Context, requester *Realm, name string) (*Symbol, bool, error)
}

// ForeignResourceResolver is optionally implemented by a ForeignResolver
// that also supplies resources.
type ForeignResourceResolver interface {
	ResolveResource(requester *Realm, name string) (*source.Resource, bool)
}

// Builtins is a ForeignResolver over a fixed table of host values.
// Thread-safe.
type Builtins struct {
	symbols map[string]*Symbol
	mu      sync.RWMutex
}

// NewBuiltins creates an empty table.
func NewBuiltins() *Builtins {
	return &Builtins{symbols: make(map[string]*Symbol)}
}

// Register adds or replaces a host symbol.
func (b *Builtins) Register(name string, value any) *Symbol {
	sym := &Symbol{Name: name, Value: value}
	b.mu.Lock()
	b.symbols[name] = sym
	b.mu.Unlock()
	return sym
}

// ResolveSymbol implements ForeignResolver.
func (b *Builtins) ResolveSymbol(_ context.Context, _ *Realm, name string) (*Symbol, bool, error) {
	b.mu.RLock()
	sym, ok := b.symbols[name]
	b.mu.RUnlock()
	return sym, ok, nil
}

// Names returns the registered names in no particular order.
func (b *Builtins) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.symbols))
	for name := range b.symbols {
		out = append(out, name)
	}
	return out
}

// SymbolResource maps a dotted symbol name to its resource name:
// "a.b.C" becomes "a/b/C" + suffix.
func SymbolResource(name, suffix string) string {
	return strings.ReplaceAll(name, ".", "/") + suffix
}
