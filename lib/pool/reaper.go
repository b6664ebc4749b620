package pool

import (
	"sync/atomic"
	"time"
)

// reapLoop runs Reap immediately, to warm MinIdle connections, and then on
// every ReapInterval tick until Close.
func (p *Pool[T]) reapLoop() {
	defer close(p.reaperDone)

	p.Reap()

	ticker := time.NewTicker(p.opts.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopReaper:
			return
		case <-ticker.C:
			p.Reap()
		}
	}
}

// Reap evicts idle connections that exceeded IdleTimeout or MaxLifetime,
// or belong to an older generation, then creates replacements while fewer
// than MinIdle connections are live (bounded by MaxOpen). In-use
// connections are never touched. A replacement failure goes to the oldest
// queued Acquire, or to OnError when nobody waits.
func (p *Pool[T]) Reap() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	now := time.Now()
	kept := make([]*PooledConnection[T], 0, cap(p.idle))
	var evicted []*PooledConnection[T]
	for _, pc := range p.idle {
		if pc.generation != p.generation || pc.expired(now, p.opts.IdleTimeout, p.opts.MaxLifetime) {
			evicted = append(evicted, pc)
			continue
		}
		kept = append(kept, pc)
	}
	p.idle = kept
	for _, pc := range evicted {
		p.invalidateLocked(pc)
	}
	atomic.AddUint64(&p.evictCount, uint64(len(evicted)))
	PoolEvictedTotal.Add(uint64(len(evicted)))

	need := p.opts.MinIdle - p.numOpen
	if room := p.opts.MaxOpen - p.numOpen; need > room {
		need = room
	}
	if need < 0 {
		need = 0
	}
	p.numOpen += need
	factory, gen := p.factory, p.generation
	p.mu.Unlock()

	p.destroyAll(evicted)
	if len(evicted) > 0 {
		log.WithField("evicted", len(evicted)).Debug("reaper evicted idle connections")
	}

	for i := 0; i < need; i++ {
		pc, err := p.create(p.ctx, factory, gen)
		if err != nil {
			perr := newError(KindCreateConnection, err)
			p.mu.Lock()
			p.numOpen -= need - i
			// Callers that queued behind the reserved slots get the failure
			// and a fresh attempt at the freed capacity.
			w := p.popWaiterLocked()
			if w != nil {
				w.ch <- acquireResult[T]{err: perr}
			}
			p.replenishLocked()
			p.mu.Unlock()
			if w == nil {
				p.reportError(perr)
			}
			break
		}

		p.mu.Lock()
		toClose := p.putLocked(pc)
		p.mu.Unlock()
		if toClose != nil {
			p.closeRaw(toClose)
		}
	}
	if need > 0 {
		log.WithField("requested", need).Debug("reaper replenished connections")
	}

	UpdateMetrics(p.Stats())
}
