// Package pool provides a bounded pool of reusable resources with FIFO
// waiters, used to share driver connections across queries.
package pool

import (
	"context"
	"errors"
	"sync"

	eloquent "github.com/satishbabariya/eloquent-go"
	"github.com/satishbabariya/eloquent-go/internal/debug"
)

// Factory creates a new pooled resource.
type Factory[T comparable] func(ctx context.Context) (T, error)

// Destructor disposes of a pooled resource during Drain.
type Destructor[T comparable] func(T) error

// Stats is a snapshot of pool occupancy.
type Stats struct {
	InUse   int
	Idle    int
	Waiting int
	Max     int
}

type result[T comparable] struct {
	res T
	err error
}

// waiter is a queued Acquire call. The channel is buffered so a release
// never blocks on handoff.
type waiter[T comparable] struct {
	ctx context.Context
	ch  chan result[T]
}

// Pool is a bounded resource pool. Acquire hands out an idle resource,
// creates one while under the bound, or queues the caller; Release hands
// the resource directly to the oldest waiter when one is queued. All state
// is mutex-guarded for concurrent use.
type Pool[T comparable] struct {
	mu      sync.Mutex
	create  Factory[T]
	destroy Destructor[T]
	max     int
	total   int // idle + in-use + creations in flight
	idle    []T
	inUse   map[T]struct{}
	waiters []*waiter[T]
	drained bool
}

// New creates a pool bounded to max resources. destroy may be nil.
func New[T comparable](max int, create Factory[T], destroy Destructor[T]) *Pool[T] {
	if max < 1 {
		max = 1
	}
	return &Pool[T]{
		create:  create,
		destroy: destroy,
		max:     max,
		inUse:   make(map[T]struct{}),
	}
}

// Acquire obtains a resource, suspending the caller in FIFO order when the
// pool is saturated. Cancelling ctx abandons the wait; a resource delivered
// in the cancellation race is returned to the pool.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	var zero T
	p.mu.Lock()
	if p.drained {
		p.mu.Unlock()
		return zero, eloquent.ErrPoolDrained
	}
	if len(p.idle) > 0 {
		res := p.idle[0]
		p.idle = p.idle[1:]
		p.inUse[res] = struct{}{}
		p.mu.Unlock()
		return res, nil
	}
	if p.total < p.max {
		p.total++
		p.mu.Unlock()
		res, err := p.create(ctx)
		p.mu.Lock()
		if err != nil {
			p.total--
			p.promote()
			p.mu.Unlock()
			return zero, err
		}
		p.inUse[res] = struct{}{}
		p.mu.Unlock()
		return res, nil
	}

	w := &waiter[T]{ctx: ctx, ch: make(chan result[T], 1)}
	p.waiters = append(p.waiters, w)
	debug.Debug("pool: acquire queued", "waiting", len(p.waiters))
	p.mu.Unlock()

	select {
	case r := <-w.ch:
		return r.res, r.err
	case <-ctx.Done():
		p.mu.Lock()
		removed := p.removeWaiter(w)
		p.mu.Unlock()
		if !removed {
			// Served between cancellation and dequeue: hand it back.
			if r := <-w.ch; r.err == nil {
				p.Release(r.res)
			}
		}
		return zero, ctx.Err()
	}
}

// Release returns a resource to the pool. Resources not tracked as in-use
// are ignored. When waiters are queued, the resource is handed directly to
// the oldest one and never re-enters the idle list.
func (p *Pool[T]) Release(res T) {
	p.mu.Lock()
	if _, ok := p.inUse[res]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.inUse, res)
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.inUse[res] = struct{}{}
		p.mu.Unlock()
		w.ch <- result[T]{res: res}
		return
	}
	p.idle = append(p.idle, res)
	p.mu.Unlock()
}

// Drain atomically snapshots all idle and in-use resources, clears the pool
// state, rejects every still-pending waiter with ErrPoolDrained, and then
// destroys each snapshot resource sequentially.
func (p *Pool[T]) Drain() error {
	p.mu.Lock()
	if p.drained {
		p.mu.Unlock()
		return nil
	}
	p.drained = true
	snapshot := append([]T(nil), p.idle...)
	for res := range p.inUse {
		snapshot = append(snapshot, res)
	}
	waiters := p.waiters
	p.idle = nil
	p.inUse = make(map[T]struct{})
	p.waiters = nil
	p.total = 0
	p.mu.Unlock()

	for _, w := range waiters {
		w.ch <- result[T]{err: eloquent.ErrPoolDrained}
	}
	debug.Debug("pool: drained", "destroyed", len(snapshot), "rejected", len(waiters))

	var errs []error
	if p.destroy != nil {
		for _, res := range snapshot {
			if err := p.destroy(res); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		InUse:   len(p.inUse),
		Idle:    len(p.idle),
		Waiting: len(p.waiters),
		Max:     p.max,
	}
}

// promote serves the oldest waiter after capacity frees up without a
// release, e.g. when a creation fails. Caller must hold the lock.
func (p *Pool[T]) promote() {
	if len(p.waiters) == 0 || p.total >= p.max || p.drained {
		return
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	p.total++
	go func() {
		res, err := p.create(w.ctx)
		p.mu.Lock()
		if p.drained {
			p.mu.Unlock()
			if err == nil && p.destroy != nil {
				_ = p.destroy(res)
			}
			w.ch <- result[T]{err: eloquent.ErrPoolDrained}
			return
		}
		if err != nil {
			p.total--
			p.promote()
			p.mu.Unlock()
			w.ch <- result[T]{err: err}
			return
		}
		p.inUse[res] = struct{}{}
		p.mu.Unlock()
		w.ch <- result[T]{res: res}
	}()
}

// removeWaiter dequeues w, reporting whether it was still queued.
func (p *Pool[T]) removeWaiter(w *waiter[T]) bool {
	for i, q := range p.waiters {
		if q == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}
