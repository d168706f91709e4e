package realm

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/realms/errors"
)

// Listener observes realm lifecycle events. Callbacks run synchronously on
// the goroutine that created or disposed the realm, with no locks held.
type Listener interface {
	RealmCreated(r *Realm)
	RealmDisposed(r *Realm)
}

// ListenerFuncs adapts optional functions to Listener.
type ListenerFuncs struct {
	Created  func(r *Realm)
	Disposed func(r *Realm)
}

func (l ListenerFuncs) RealmCreated(r *Realm) {
	if l.Created != nil {
		l.Created(r)
	}
}

func (l ListenerFuncs) RealmDisposed(r *Realm) {
	if l.Disposed != nil {
		l.Disposed(r)
	}
}

// World is a registry of realms with unique ids. Worlds are independent of
// each other; realms only ever reference realms of their own world.
//
// Thread-safe.
type World struct {
	realms    map[string]*Realm
	logger    *zap.Logger
	definer   Definer
	foreign   ForeignResolver
	suffix    string
	listeners []Listener
	seq       uint64
	mu        sync.RWMutex
}

// NewWorld creates an empty world.
func NewWorld(opts ...Option) *World {
	w := &World{
		realms:  make(map[string]*Realm),
		logger:  Logger(),
		definer: RawDefiner,
		suffix:  DefaultSymbolSuffix,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SymbolSuffix returns the resource suffix used for symbol files.
func (w *World) SymbolSuffix() string {
	return w.suffix
}

// SetForeign replaces the world default foreign resolver.
func (w *World) SetForeign(f ForeignResolver) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.foreign = f
}

func (w *World) defaultForeign() ForeignResolver {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.foreign
}

// AddListener registers l for subsequent lifecycle events.
func (w *World) AddListener(l Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, l)
}

func (w *World) listenersSnapshot() []Listener {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.listeners
}

// NewRealm creates a realm without a parent.
func (w *World) NewRealm(id string) (*Realm, error) {
	return w.CreateRealm(id, "")
}

// CreateRealm creates a realm named id. A non-empty parentID must name an
// existing realm. Fails with a *errors.DuplicateNameError if id is taken.
func (w *World) CreateRealm(id, parentID string) (*Realm, error) {
	if id == "" {
		return nil, errors.InvalidInput(errors.PhaseRegistry, "realm id is empty")
	}

	w.mu.Lock()
	if _, ok := w.realms[id]; ok {
		w.mu.Unlock()
		return nil, errors.DuplicateName(id)
	}
	if parentID != "" {
		if _, ok := w.realms[parentID]; !ok {
			w.mu.Unlock()
			return nil, errors.UnknownNamespace(parentID)
		}
	}
	w.seq++
	r := &Realm{
		world:  w,
		id:     id,
		seq:    w.seq,
		parent: parentID,
		memos:  make(map[string]*memo),
	}
	w.realms[id] = r
	w.mu.Unlock()

	realmsLive.Inc()
	w.logger.Info("realm created",
		zap.String("realm", id),
		zap.String("parent", parentID))
	for _, l := range w.listenersSnapshot() {
		l.RealmCreated(r)
	}
	return r, nil
}

// Realm returns the realm named id or a *errors.UnknownNamespaceError.
func (w *World) Realm(id string) (*Realm, error) {
	if r, ok := w.Lookup(id); ok {
		return r, nil
	}
	return nil, errors.UnknownNamespace(id)
}

// Lookup returns the realm named id, if registered.
func (w *World) Lookup(id string) (*Realm, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.realms[id]
	return r, ok
}

// Realms returns all registered realms sorted by id.
func (w *World) Realms() []*Realm {
	w.mu.RLock()
	out := make([]*Realm, 0, len(w.realms))
	for _, r := range w.realms {
		out = append(out, r)
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// DisposeRealm removes the realm named id and closes its sources. The id
// becomes free. Realms importing from it are not touched; their imports
// simply stop matching.
func (w *World) DisposeRealm(id string) error {
	w.mu.Lock()
	r, ok := w.realms[id]
	if ok {
		delete(w.realms, id)
	}
	w.mu.Unlock()

	if !ok {
		return errors.UnknownNamespace(id)
	}
	return w.finish(r)
}

func (w *World) finish(r *Realm) error {
	err := r.dispose()
	realmsLive.Dec()
	if err != nil {
		w.logger.Warn("realm disposed with errors",
			zap.String("realm", r.id),
			zap.Error(err))
	} else {
		w.logger.Info("realm disposed", zap.String("realm", r.id))
	}
	for _, l := range w.listenersSnapshot() {
		l.RealmDisposed(r)
	}
	return err
}

// Close disposes every realm. Sources are closed concurrently; the first
// error is returned after all realms are gone.
func (w *World) Close() error {
	w.mu.Lock()
	all := make([]*Realm, 0, len(w.realms))
	for _, r := range w.realms {
		all = append(all, r)
	}
	w.realms = make(map[string]*Realm)
	w.mu.Unlock()

	var g errgroup.Group
	for _, r := range all {
		g.Go(func() error {
			return w.finish(r)
		})
	}
	return g.Wait()
}

// AssociateByNaming sets the parent of every realm whose id contains a '.'
// to the realm with the longest registered strict prefix ending at a '.'.
// "a.b.c" becomes a child of "a.b" if present, else of "a".
func (w *World) AssociateByNaming() {
	realms := w.Realms()
	ids := make(map[string]bool, len(realms))
	for _, r := range realms {
		ids[r.id] = true
	}

	for _, r := range realms {
		for prefix := r.id; ; {
			i := strings.LastIndexByte(prefix, '.')
			if i <= 0 {
				break
			}
			prefix = prefix[:i]
			if !ids[prefix] {
				continue
			}
			if err := r.SetParent(prefix); err != nil {
				w.logger.Debug("parent association skipped",
					zap.String("realm", r.id),
					zap.String("parent", prefix),
					zap.Error(err))
			}
			break
		}
	}
}
