package realm

import (
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/source"
)

// Realm is an isolated namespace: an ordered list of content sources, an
// optional parent, import edges to other realms and an optional visibility
// filter. Edges to other realms are held by id and resolved through the
// world on every lookup.
//
// Thread-safe. Mutations append; lookups iterate a snapshot taken when they
// start.
type Realm struct {
	world *World
	memos map[string]*memo

	foreign       ForeignResolver
	filter        Filter
	id            string
	parent        string
	sources       []source.Source
	imports       []importEntry
	parentImports []Entry
	seq           uint64

	mu       sync.RWMutex
	memoMu   sync.Mutex
	disposed bool
}

// state is an immutable view of a realm taken under its read lock.
type state struct {
	foreign       ForeignResolver
	filter        Filter
	parent        string
	sources       []source.Source
	imports       []importEntry
	parentImports []Entry
	disposed      bool
}

func (r *Realm) snapshot() state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return state{
		foreign:       r.foreign,
		filter:        r.filter,
		parent:        r.parent,
		sources:       r.sources,
		imports:       r.imports,
		parentImports: r.parentImports,
		disposed:      r.disposed,
	}
}

// ID returns the realm's unique name.
func (r *Realm) ID() string { return r.id }

// World returns the world the realm belongs to.
func (r *Realm) World() *World { return r.world }

func (r *Realm) String() string { return r.id }

// Disposed reports whether the realm has been removed from its world.
func (r *Realm) Disposed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disposed
}

func (r *Realm) errDisposed() error {
	return errors.New(errors.PhaseRegistry, errors.KindInvalidInput).
		Realm(r.id).
		Detail("realm is disposed").
		Build()
}

// AddSource appends a content source parsed from locator. The backing store
// is not checked until the first lookup.
func (r *Realm) AddSource(locator string) (source.Source, error) {
	src, err := source.Parse(locator)
	if err != nil {
		return nil, err
	}
	if err := r.AddSourceValue(src); err != nil {
		return nil, err
	}
	return src, nil
}

// AddSourceValue appends an already constructed source. The realm takes
// ownership and closes it on disposal.
func (r *Realm) AddSourceValue(src source.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return r.errDisposed()
	}
	r.sources = append(r.sources, src)
	r.world.logger.Debug("source added",
		zap.String("realm", r.id),
		zap.String("locator", src.Locator()))
	return nil
}

// Sources returns the realm's content sources in search order.
func (r *Realm) Sources() []source.Source {
	s := r.snapshot()
	return append([]source.Source(nil), s.sources...)
}

// ImportFrom makes names matching scope resolve through the realm named
// realmID. The target must exist now; if it is disposed later the import
// silently stops matching. Imports are consulted in declaration order and a
// second import with an equal scope is ignored.
func (r *Realm) ImportFrom(realmID, scope string, opts ...ImportOption) error {
	if _, ok := r.world.Lookup(realmID); !ok {
		return errors.UnknownNamespace(realmID)
	}

	imp := importEntry{entry: NewEntry(realmID, scope)}
	for _, opt := range opts {
		opt(&imp)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return r.errDisposed()
	}
	for _, existing := range r.imports {
		if existing.entry.Equal(imp.entry) {
			r.world.logger.Debug("duplicate import scope ignored",
				zap.String("realm", r.id),
				zap.String("scope", scope),
				zap.String("from", realmID))
			return nil
		}
	}
	r.imports = append(r.imports, imp)
	r.world.logger.Debug("import added",
		zap.String("realm", r.id),
		zap.String("scope", scope),
		zap.String("from", realmID))
	return nil
}

// Imports returns the declared import entries in order.
func (r *Realm) Imports() []Entry {
	s := r.snapshot()
	out := make([]Entry, len(s.imports))
	for i, imp := range s.imports {
		out[i] = imp.entry
	}
	return out
}

// ImportFromParent restricts parent delegation to names matching scope.
// With no parent scopes declared, every name may reach the parent.
func (r *Realm) ImportFromParent(scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return r.errDisposed()
	}
	r.parentImports = append(r.parentImports, NewEntry("", scope))
	return nil
}

// SetParent links the realm to the realm named parentID. An empty id
// clears the link.
func (r *Realm) SetParent(parentID string) error {
	if parentID != "" {
		if _, ok := r.world.Lookup(parentID); !ok {
			return errors.UnknownNamespace(parentID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return r.errDisposed()
	}
	r.parent = parentID
	return nil
}

// Parent returns the parent realm, or nil when there is none or it has been
// disposed.
func (r *Realm) Parent() *Realm {
	s := r.snapshot()
	if s.parent == "" {
		return nil
	}
	p, _ := r.world.Lookup(s.parent)
	return p
}

// ParentID returns the id of the parent link, even if that realm is gone.
func (r *Realm) ParentID() string {
	return r.snapshot().parent
}

// SetFilter gates the realm's own lookups through f. A nil filter removes
// gating. Lookups delegated into the realm by another realm's import are
// not gated.
func (r *Realm) SetFilter(f Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = f
}

// Filtered reports whether the realm has a filter.
func (r *Realm) Filtered() bool {
	return r.snapshot().filter != nil
}

// SetForeign sets the realm's foreign resolver, overriding the world default.
func (r *Realm) SetForeign(f ForeignResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.foreign = f
}

// CreateChildRealm creates a realm in the same world whose parent is r.
func (r *Realm) CreateChildRealm(id string) (*Realm, error) {
	return r.world.CreateRealm(id, r.id)
}

// dispose marks the realm dead and releases its sources and memos.
func (r *Realm) dispose() error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil
	}
	r.disposed = true
	srcs := r.sources
	r.sources = nil
	r.mu.Unlock()

	r.memoMu.Lock()
	r.memos = nil
	r.memoMu.Unlock()

	var errs []error
	for _, src := range srcs {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.IO("close sources of "+r.id, stderrors.Join(errs...))
	}
	return nil
}
