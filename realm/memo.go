package realm

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/source"
)

type memoState int

const (
	memoPending memoState = iota
	memoResolved
	memoFailed
	memoAbandoned
)

// errAbandoned tells a waiter the definition it waited on was not recorded
// and it should try again.
var errAbandoned = stderrors.New("definition abandoned")

// memo is the materialization record for one (realm, name) pair.
// state, sym and err are written once by the defining goroutine before done
// is closed.
type memo struct {
	done  chan struct{}
	sym   *Symbol
	err   error
	state memoState
}

func (m *memo) wait(ctx context.Context) (*Symbol, error) {
	select {
	case <-m.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	switch m.state {
	case memoFailed:
		return nil, m.err
	case memoAbandoned:
		return nil, errAbandoned
	}
	return m.sym, nil
}

type memoKey struct {
	realm *Realm
	name  string
}

type definingKey struct{}

// definingChain is the set of memos the calling goroutine is currently
// defining, carried through ctx so a definer resolving its own symbol fails
// instead of waiting on itself.
type definingChain struct {
	parent *definingChain
	key    memoKey
}

func (c *definingChain) contains(k memoKey) bool {
	for ; c != nil; c = c.parent {
		if c.key == k {
			return true
		}
	}
	return false
}

func chainFrom(ctx context.Context) *definingChain {
	c, _ := ctx.Value(definingKey{}).(*definingChain)
	return c
}

// defineLocal materializes name from the realm's own sources. A miss returns
// (nil, nil) and is not remembered. Successes and failures are remembered
// for the realm's lifetime, except failures caused by cancellation or I/O.
func (r *Realm) defineLocal(ctx context.Context, name string) (*Symbol, error) {
	for {
		sym, err := r.defineOnce(ctx, name)
		if err != errAbandoned {
			return sym, err
		}
	}
}

func (r *Realm) defineOnce(ctx context.Context, name string) (*Symbol, error) {
	key := memoKey{realm: r, name: name}

	r.memoMu.Lock()
	if m, ok := r.memos[name]; ok {
		r.memoMu.Unlock()
		return r.await(ctx, m, key)
	}
	r.memoMu.Unlock()

	res, ok := r.findOwnResource(SymbolResource(name, r.world.suffix))
	if !ok {
		return nil, nil
	}

	r.memoMu.Lock()
	if r.memos == nil {
		r.memoMu.Unlock()
		return nil, nil // disposed meanwhile
	}
	if m, ok := r.memos[name]; ok {
		r.memoMu.Unlock()
		return r.await(ctx, m, key)
	}
	m := &memo{done: make(chan struct{})}
	r.memos[name] = m
	r.memoMu.Unlock()

	// Waiters must never be left on an open memo, even if the definer
	// exits the goroutine.
	settled := false
	defer func() {
		if !settled {
			r.abandon(name, m)
		}
	}()

	dctx := context.WithValue(ctx, definingKey{}, &definingChain{parent: chainFrom(ctx), key: key})
	value, err := r.runDefiner(dctx, name, res)
	switch {
	case err != nil && transient(err):
		settled = true
		r.abandon(name, m)
		materializations.WithLabelValues("abandoned").Inc()
		r.world.logger.Debug("symbol definition interrupted",
			zap.String("realm", r.id),
			zap.String("symbol", name),
			zap.Error(err))
		return nil, errors.Define(r.id, name, err)
	case err != nil:
		m.err = errors.Define(r.id, name, err)
		m.state = memoFailed
		materializations.WithLabelValues("failed").Inc()
		r.world.logger.Warn("symbol definition failed",
			zap.String("realm", r.id),
			zap.String("symbol", name),
			zap.Error(err))
	default:
		m.sym = &Symbol{Name: name, Realm: r.id, Resource: res, Value: value}
		m.state = memoResolved
		materializations.WithLabelValues("defined").Inc()
		r.world.logger.Debug("symbol defined",
			zap.String("realm", r.id),
			zap.String("symbol", name),
			zap.String("url", res.URL))
	}
	settled = true
	close(m.done)
	return m.sym, m.err
}

// runDefiner calls the world's definer, turning a panic into an error.
func (r *Realm) runDefiner(ctx context.Context, name string, res *source.Resource) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			value, err = nil, fmt.Errorf("definer panic: %v", p)
		}
	}()
	return r.world.definer.Define(ctx, r, name, res)
}

// abandon drops m from the memo table and releases its waiters so they
// define the symbol again.
func (r *Realm) abandon(name string, m *memo) {
	r.memoMu.Lock()
	if r.memos != nil && r.memos[name] == m {
		delete(r.memos, name)
	}
	r.memoMu.Unlock()
	m.state = memoAbandoned
	close(m.done)
}

// transient reports whether a definition failure says more about the
// request than about the symbol.
func transient(err error) bool {
	return stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, errors.ErrIO)
}

func (r *Realm) await(ctx context.Context, m *memo, key memoKey) (*Symbol, error) {
	select {
	case <-m.done:
	default:
		if chainFrom(ctx).contains(key) {
			return nil, errors.New(errors.PhaseDefine, errors.KindInvalidData).
				Realm(r.id).
				Name(key.name).
				Detail("definition of %s depends on itself", key.name).
				Build()
		}
	}
	return m.wait(ctx)
}
