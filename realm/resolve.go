package realm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/source"
)

// Order selects how ListResources aggregates matches.
type Order int

const (
	// SelfFirst lists imports, then the realm's own sources, then the parent.
	// A child's copy of a resource comes before the parent's.
	SelfFirst Order = iota
	// ParentFirst lists the parent, then imports, then the realm's own sources.
	ParentFirst
)

func (o Order) String() string {
	if o == ParentFirst {
		return "parent-first"
	}
	return "self-first"
}

// query abstracts over what is being resolved so symbols and resources share
// one walk.
type query[T any] interface {
	kind() string
	// scopeName is matched against import and parent scopes.
	scopeName() string
	// filterName is what filters see.
	filterName() string
	foreign(ctx context.Context, requester *Realm, f ForeignResolver) (T, bool, error)
	local(ctx context.Context, r *Realm) (T, bool, error)
}

type symbolQuery struct {
	name     string
	resource string
}

func (q symbolQuery) kind() string       { return "symbol" }
func (q symbolQuery) scopeName() string  { return q.name }
func (q symbolQuery) filterName() string { return q.resource }

func (q symbolQuery) foreign(ctx context.Context, requester *Realm, f ForeignResolver) (*Symbol, bool, error) {
	return f.ResolveSymbol(ctx, requester, q.name)
}

func (q symbolQuery) local(ctx context.Context, r *Realm) (*Symbol, bool, error) {
	sym, err := r.defineLocal(ctx, q.name)
	return sym, sym != nil, err
}

type resourceQuery struct {
	name string
}

func (q resourceQuery) kind() string       { return "resource" }
func (q resourceQuery) scopeName() string  { return q.name }
func (q resourceQuery) filterName() string { return q.name }

func (q resourceQuery) foreign(_ context.Context, requester *Realm, f ForeignResolver) (*source.Resource, bool, error) {
	if rr, ok := f.(ForeignResourceResolver); ok {
		res, found := rr.ResolveResource(requester, q.name)
		return res, found, nil
	}
	return nil, false, nil
}

func (q resourceQuery) local(_ context.Context, r *Realm) (*source.Resource, bool, error) {
	res, ok := r.findOwnResource(q.name)
	return res, ok, nil
}

func (r *Realm) symbolQuery(name string) symbolQuery {
	return symbolQuery{name: name, resource: SymbolResource(name, r.world.suffix)}
}

func resourceName(name string) string {
	return strings.TrimLeft(name, "/")
}

// visit records the realms a single lookup has entered. Full walks and
// delegated (self and parent) walks are tracked apart since a delegated
// walk covers less ground.
type visit map[visitKey]struct{}

type visitKey struct {
	r    *Realm
	full bool
}

func (v visit) enter(r *Realm, full bool) bool {
	k := visitKey{r: r, full: full}
	if _, ok := v[k]; ok {
		return false
	}
	v[k] = struct{}{}
	return true
}

func (r *Realm) foreignFor(s state) ForeignResolver {
	if s.foreign != nil {
		return s.foreign
	}
	return r.world.defaultForeign()
}

func admitsParent(scopes []Entry, name, suffix string) bool {
	if len(scopes) == 0 {
		return true
	}
	for _, e := range scopes {
		if e.matches(name, suffix) {
			return true
		}
	}
	return false
}

// resolve runs the full lookup: foreign resolver, filter, imports, own
// sources, parent.
func resolve[T any](ctx context.Context, r *Realm, q query[T], v visit) (T, outcome, error) {
	var zero T
	if !v.enter(r, true) {
		return zero, outcomeMiss, nil
	}
	s := r.snapshot()
	if s.disposed {
		return zero, outcomeMiss, nil
	}

	if f := r.foreignFor(s); f != nil {
		res, ok, err := q.foreign(ctx, r, f)
		if err != nil || ok {
			return res, outcomeForeign, err
		}
	}

	if s.filter != nil && !s.filter(q.filterName()) {
		return zero, outcomeMiss, nil
	}

	for _, imp := range s.imports {
		if !imp.admits(q.scopeName(), q.filterName(), r.world.suffix) {
			continue
		}
		target, ok := r.world.Lookup(imp.entry.realm)
		if !ok {
			continue
		}
		res, o, err := resolveDelegated(ctx, target, q, v)
		if err != nil {
			return zero, outcomeImport, err
		}
		if o != outcomeMiss {
			return res, outcomeImport, nil
		}
	}

	if res, ok, err := q.local(ctx, r); err != nil || ok {
		return res, outcomeSelf, err
	}

	return resolveParent(ctx, r, s, q, v)
}

// resolveDelegated serves a lookup arriving through an import: the target's
// own sources, then its parent. The target's imports and filter are not
// consulted.
func resolveDelegated[T any](ctx context.Context, r *Realm, q query[T], v visit) (T, outcome, error) {
	var zero T
	if !v.enter(r, false) {
		return zero, outcomeMiss, nil
	}
	s := r.snapshot()
	if s.disposed {
		return zero, outcomeMiss, nil
	}

	if res, ok, err := q.local(ctx, r); err != nil || ok {
		return res, outcomeSelf, err
	}
	return resolveParent(ctx, r, s, q, v)
}

func resolveParent[T any](ctx context.Context, r *Realm, s state, q query[T], v visit) (T, outcome, error) {
	var zero T
	if s.parent == "" || !admitsParent(s.parentImports, q.scopeName(), r.world.suffix) {
		return zero, outcomeMiss, nil
	}
	parent, ok := r.world.Lookup(s.parent)
	if !ok {
		return zero, outcomeMiss, nil
	}
	res, o, err := resolve(ctx, parent, q, v)
	if err != nil || o != outcomeMiss {
		return res, outcomeParent, err
	}
	return zero, outcomeMiss, nil
}

// LoadSymbol resolves a dotted symbol name. The lookup order is the foreign
// resolver, the filter, imports in declaration order, the realm's own
// sources and finally the parent. An absent symbol is a *errors.NotFoundError;
// any other error means a symbol was found but could not be defined.
func (r *Realm) LoadSymbol(ctx context.Context, name string) (*Symbol, error) {
	sym, o, err := resolve[*Symbol](ctx, r, r.symbolQuery(name), visit{})
	if err != nil {
		return nil, err
	}
	observe("symbol", o)
	if o == outcomeMiss {
		r.world.logger.Debug("symbol not found",
			zap.String("realm", r.id),
			zap.String("symbol", name))
		return nil, errors.NotFound(r.id, name)
	}
	r.world.logger.Debug("symbol resolved",
		zap.String("realm", r.id),
		zap.String("symbol", name),
		zap.Stringer("via", o),
		zap.String("defined_in", sym.Realm))
	return sym, nil
}

// LoadSymbolFromSelf resolves a symbol from the realm's own sources only.
func (r *Realm) LoadSymbolFromSelf(ctx context.Context, name string) (*Symbol, error) {
	q := r.symbolQuery(name)
	s := r.snapshot()
	if s.disposed || (s.filter != nil && !s.filter(q.filterName())) {
		return nil, errors.NotFound(r.id, name)
	}
	sym, err := r.defineLocal(ctx, name)
	if err != nil {
		return nil, err
	}
	if sym == nil {
		return nil, errors.NotFound(r.id, name)
	}
	return sym, nil
}

// ResolveResource finds a resource by slash separated name using the same
// order as LoadSymbol.
func (r *Realm) ResolveResource(name string) (*source.Resource, bool) {
	res, o, _ := resolve[*source.Resource](context.Background(), r, resourceQuery{name: resourceName(name)}, visit{})
	observe("resource", o)
	return res, o != outcomeMiss
}

// FindLocalResource looks only in the realm's own sources.
func (r *Realm) FindLocalResource(name string) (*source.Resource, bool) {
	name = resourceName(name)
	s := r.snapshot()
	if s.disposed || (s.filter != nil && !s.filter(name)) {
		return nil, false
	}
	return r.findOwnResource(name)
}

func (r *Realm) findOwnResource(name string) (*source.Resource, bool) {
	for _, src := range r.snapshot().sources {
		if res, ok := src.Find(name); ok {
			return res, true
		}
	}
	return nil, false
}

// ImportRealmFor returns the realm an import would route name to, or nil
// if no live import admits it. Names containing '/' are resource names.
func (r *Realm) ImportRealmFor(name string) *Realm {
	scope, filtered := name, name
	if !strings.Contains(name, "/") {
		filtered = SymbolResource(name, r.world.suffix)
	}
	for _, imp := range r.snapshot().imports {
		if !imp.admits(scope, filtered, r.world.suffix) {
			continue
		}
		if target, ok := r.world.Lookup(imp.entry.realm); ok {
			return target
		}
	}
	return nil
}

// ImportRealms returns the live realms the realm imports from, in
// declaration order, without duplicates.
func (r *Realm) ImportRealms() []*Realm {
	var out []*Realm
	seen := make(map[*Realm]bool)
	for _, imp := range r.snapshot().imports {
		target, ok := r.world.Lookup(imp.entry.realm)
		if !ok || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out
}

// collector gathers listed resources, dropping repeats by URL.
type collector struct {
	seen map[string]bool
	out  []*source.Resource
}

func (c *collector) add(res *source.Resource) {
	if c.seen[res.URL] {
		return
	}
	c.seen[res.URL] = true
	c.out = append(c.out, res)
}

// ListResources returns every resource called name visible from the realm.
// Each URL appears once, at its first position in the chosen order.
func (r *Realm) ListResources(name string, order Order) []*source.Resource {
	c := &collector{seen: make(map[string]bool)}
	r.listFull(resourceName(name), order, visit{}, c)
	return c.out
}

func (r *Realm) listFull(name string, order Order, v visit, c *collector) {
	if !v.enter(r, true) {
		return
	}
	s := r.snapshot()
	if s.disposed {
		return
	}

	if f := r.foreignFor(s); f != nil {
		if rr, ok := f.(ForeignResourceResolver); ok {
			if res, found := rr.ResolveResource(r, name); found {
				c.add(res)
			}
		}
	}

	if s.filter != nil && !s.filter(name) {
		return
	}

	imports := func() {
		for _, imp := range s.imports {
			if !imp.admits(name, name, r.world.suffix) {
				continue
			}
			if target, ok := r.world.Lookup(imp.entry.realm); ok {
				target.listDelegated(name, order, v, c)
			}
		}
	}

	switch order {
	case ParentFirst:
		r.listParent(s, name, order, v, c)
		imports()
		r.listOwn(s, name, c)
	default:
		imports()
		r.listOwn(s, name, c)
		r.listParent(s, name, order, v, c)
	}
}

func (r *Realm) listDelegated(name string, order Order, v visit, c *collector) {
	if !v.enter(r, false) {
		return
	}
	s := r.snapshot()
	if s.disposed {
		return
	}
	if order == ParentFirst {
		r.listParent(s, name, order, v, c)
		r.listOwn(s, name, c)
		return
	}
	r.listOwn(s, name, c)
	r.listParent(s, name, order, v, c)
}

func (r *Realm) listOwn(s state, name string, c *collector) {
	for _, src := range s.sources {
		if res, ok := src.Find(name); ok {
			c.add(res)
		}
	}
}

func (r *Realm) listParent(s state, name string, order Order, v visit, c *collector) {
	if s.parent == "" || !admitsParent(s.parentImports, name, r.world.suffix) {
		return
	}
	if parent, ok := r.world.Lookup(s.parent); ok {
		parent.listFull(name, order, v, c)
	}
}
