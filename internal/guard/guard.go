// Package guard provides the non-reentrant lease shared by a vault and its strategy.
//
// A lease travels in the context. Mutating operations take the exclusive lease,
// views take a shared one; nested calls made with a leased context pass straight
// through. Contexts handed to external collaborators are marked so that any call
// they make back into the guarded pair fails with types.ErrReentrantCall, and while
// such a call is in flight under the exclusive lease, entries that do not carry the
// lease fail the same way instead of waiting on it.
package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/elys-network/autocompounder/internal/types"
)

type leaseKey struct{ g *Guard }
type externalKey struct{ g *Guard }

type lease struct {
	exclusive bool
}

// Guard serializes mutating operations on a vault/strategy pair.
type Guard struct {
	mu      sync.Mutex
	writer  bool
	readers int
	outside int // collaborator calls in flight under the exclusive lease
	changed chan struct{}
}

// New creates an unlocked guard.
func New() *Guard {
	return &Guard{changed: make(chan struct{})}
}

// Enter acquires the exclusive lease or joins the one already carried by ctx.
// The returned release func must be called exactly once; for a joined lease it is a no-op.
func (g *Guard) Enter(ctx context.Context) (context.Context, func(), error) {
	return g.enter(ctx, true)
}

// EnterShared acquires a shared lease for a read that must not observe an operation
// halfway through. Shared holders run together and exclude the exclusive holder.
func (g *Guard) EnterShared(ctx context.Context) (context.Context, func(), error) {
	return g.enter(ctx, false)
}

func (g *Guard) enter(ctx context.Context, exclusive bool) (context.Context, func(), error) {
	noop := func() {}
	if ctx.Value(externalKey{g}) != nil {
		return ctx, noop, fmt.Errorf("call from external collaborator: %w", types.ErrReentrantCall)
	}
	if held, ok := ctx.Value(leaseKey{g}).(*lease); ok {
		if exclusive && !held.exclusive {
			return ctx, noop, fmt.Errorf("mutation under a shared lease: %w", types.ErrReentrantCall)
		}
		return ctx, noop, nil
	}

	for {
		g.mu.Lock()
		if g.outside > 0 {
			g.mu.Unlock()
			return ctx, noop, fmt.Errorf("collaborator call in progress: %w", types.ErrReentrantCall)
		}
		if !g.writer && (!exclusive || g.readers == 0) {
			if exclusive {
				g.writer = true
			} else {
				g.readers++
			}
			g.mu.Unlock()
			break
		}
		wait := g.changed
		g.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx, noop, ctx.Err()
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() { g.release(exclusive) })
	}
	return context.WithValue(ctx, leaseKey{g}, &lease{exclusive: exclusive}), release, nil
}

func (g *Guard) release(exclusive bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if exclusive {
		g.writer = false
	} else {
		g.readers--
	}
	close(g.changed)
	g.changed = make(chan struct{})
}

// Held reports whether ctx carries a lease of this guard.
func (g *Guard) Held(ctx context.Context) bool {
	return ctx.Value(leaseKey{g}) != nil
}

// External marks ctx before it is handed to a collaborator outside the guarded pair.
// done must be called once the collaborator returns. Under the exclusive lease the
// guard rejects every entry without the lease until then.
func (g *Guard) External(ctx context.Context) (context.Context, func()) {
	marked := context.WithValue(ctx, externalKey{g}, true)
	if l, ok := ctx.Value(leaseKey{g}).(*lease); !ok || !l.exclusive {
		return marked, func() {}
	}

	g.mu.Lock()
	g.outside++
	g.mu.Unlock()

	var once sync.Once
	return marked, func() {
		once.Do(func() {
			g.mu.Lock()
			g.outside--
			g.mu.Unlock()
		})
	}
}
